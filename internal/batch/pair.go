package batch

import (
	"change-detector/internal/loader"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
	"golang.org/x/xerrors"
)

// Pair is one image present under the same relative path in both trees.
type Pair struct {
	Name     string
	Baseline string
	Target   string
}

// Pairs walks both directories and matches images by relative path. Names
// found on one side only are returned as missing, sorted.
func Pairs(baselineDir string, targetDir string) ([]Pair, []string, []string, error) {
	baselines, err := images(baselineDir)
	if err != nil {
		return nil, nil, nil, err
	}
	targets, err := images(targetDir)
	if err != nil {
		return nil, nil, nil, err
	}

	var pairs []Pair
	var missingTarget []string
	for name, baseline := range baselines {
		target, ok := targets[name]
		if !ok {
			missingTarget = append(missingTarget, name)
			continue
		}
		pairs = append(pairs, Pair{
			Name:     name,
			Baseline: baseline,
			Target:   target,
		})
	}

	var missingBaseline []string
	for name := range targets {
		if _, ok := baselines[name]; !ok {
			missingBaseline = append(missingBaseline, name)
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Name < pairs[j].Name
	})
	sort.Strings(missingTarget)
	sort.Strings(missingBaseline)

	return pairs, missingBaseline, missingTarget, nil
}

// images maps slash separated paths relative to root to full paths.
func images(root string) (map[string]string, error) {
	root = filepath.Clean(root)
	found := map[string]string{}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(pathname string, de *godirwalk.Dirent) error {
			if de.IsDir() || !loader.IsImage(pathname) {
				return nil
			}
			rel, err := filepath.Rel(root, pathname)
			if err != nil {
				return xerrors.Errorf("failed to relate %s to %s: %w", pathname, root, err)
			}
			found[filepath.ToSlash(rel)] = pathname
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to walk %s: %w", root, err)
	}

	return found, nil
}
