package batch

import (
	"bytes"
	diffimage "change-detector/internal/diff/image"
	"change-detector/internal/loader"
	"change-detector/internal/storage"
	"context"
	"image/png"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type Status string

const (
	StatusUnchanged       Status = "unchanged"
	StatusChanged         Status = "changed"
	StatusMissingBaseline Status = "missing-baseline"
	StatusMissingTarget   Status = "missing-target"
	StatusFailed          Status = "failed"
)

type Result struct {
	Name       string                `json:"name"`
	Status     Status                `json:"status"`
	DiffPath   string                `json:"diffPath,omitempty"`
	DiffAmount float64               `json:"diffAmount"`
	Rectangles []diffimage.Rectangle `json:"rectangles"`
	Error      string                `json:"error,omitempty"`
}

type Report struct {
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Changed   int       `json:"changed"`
	Unchanged int       `json:"unchanged"`
	Missing   int       `json:"missing"`
	Failed    int       `json:"failed"`
	Results   []Result  `json:"results"`
}

type Runner struct {
	differ      diffimage.Differ
	storage     storage.Storage
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Runner)

// WithStorage uploads the rendered diff of every changed pair.
func WithStorage(s storage.Storage) Option {
	return func(r *Runner) {
		r.storage = s
	}
}

func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func NewRunner(differ diffimage.Differ, opts ...Option) *Runner {
	r := &Runner{
		differ:      differ,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

// Run compares every pair of baselineDir and targetDir. A pair that fails
// is reported in its Result; only walk errors and cancellation abort the run.
func (r *Runner) Run(ctx context.Context, baselineDir string, targetDir string) (*Report, error) {
	startedAt := r.now()

	pairs, missingBaseline, missingTarget, err := Pairs(baselineDir, targetDir)
	if err != nil {
		return nil, err
	}
	r.logger.Info("comparing directories", "baseline", baselineDir, "target", targetDir, "pairs", len(pairs))

	results := make([]Result, len(pairs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)
	for i, pair := range pairs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.compare(ctx, pair, startedAt)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, xerrors.Errorf("batch was interrupted: %w", err)
	}

	for _, name := range missingBaseline {
		results = append(results, Result{Name: name, Status: StatusMissingBaseline, Rectangles: []diffimage.Rectangle{}})
	}
	for _, name := range missingTarget {
		results = append(results, Result{Name: name, Status: StatusMissingTarget, Rectangles: []diffimage.Rectangle{}})
	}

	report := &Report{
		StartedAt: startedAt,
		Duration:  r.now().Sub(startedAt).String(),
		Results:   results,
	}
	for _, result := range results {
		switch result.Status {
		case StatusChanged:
			report.Changed++
		case StatusUnchanged:
			report.Unchanged++
		case StatusMissingBaseline, StatusMissingTarget:
			report.Missing++
		case StatusFailed:
			report.Failed++
		}
	}

	return report, nil
}

func (r *Runner) compare(ctx context.Context, pair Pair, at time.Time) Result {
	result, err := r.diff(ctx, pair, at)
	if err != nil {
		r.logger.Warn("failed to compare pair", "name", pair.Name, "error", err)
		return Result{
			Name:       pair.Name,
			Status:     StatusFailed,
			Rectangles: []diffimage.Rectangle{},
			Error:      err.Error(),
		}
	}
	return *result
}

func (r *Runner) diff(ctx context.Context, pair Pair, at time.Time) (*Result, error) {
	baseline, err := loader.Load(pair.Baseline)
	if err != nil {
		return nil, err
	}
	target, err := loader.Load(pair.Target)
	if err != nil {
		return nil, err
	}

	diffResult, err := r.differ.Calculate(baseline, target)
	if err != nil {
		return nil, xerrors.Errorf("failed to calculate diff: %w", err)
	}

	result := &Result{
		Name:       pair.Name,
		Status:     StatusUnchanged,
		DiffAmount: diffResult.DiffAmount,
		Rectangles: diffResult.Rectangles,
	}
	if len(diffResult.Rectangles) == 0 {
		return result, nil
	}
	result.Status = StatusChanged

	if r.storage == nil {
		return result, nil
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, diffResult.Image); err != nil {
		return nil, xerrors.Errorf("failed to encode diff image: %w", err)
	}
	diffPath, err := r.storage.Put(ctx, storage.DiffKey(pair.Baseline, pair.Target, at, "png"), buffer.Bytes())
	if err != nil {
		return nil, xerrors.Errorf("failed to save diff image: %w", err)
	}
	result.DiffPath = diffPath

	r.logger.Debug("pair changed", "name", pair.Name, "rectangles", len(diffResult.Rectangles), "diffPath", diffPath)
	return result, nil
}
