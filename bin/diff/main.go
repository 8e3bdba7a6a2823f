package main

import (
	"bytes"
	diffimage "change-detector/internal/diff/image"
	"change-detector/internal/env"
	"change-detector/internal/loader"
	"change-detector/internal/storage"
	"context"
	"encoding/json"
	"flag"
	"image/png"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/xerrors"
)

type DiffOutput struct {
	DiffPath   string                `json:"diffPath,omitempty"`
	DiffAmount float64               `json:"diffAmount"`
	Rectangles []diffimage.Rectangle `json:"rectangles"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("diff", flag.ContinueOnError)

	var directory string
	var format string
	var tolerance float64
	var accessor string
	var vectorized bool
	var strokeColor string
	var strokeWidth int
	flags.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "/tmp"), "Output directory")
	flags.StringVar(&format, "format", env.OrDefault("FORMAT", "image"), "Output format (image or json)")
	flags.Float64Var(&tolerance, "tolerance", env.OrDefault("TOLERANCE", 0.0), "Color distance tolerated as unchanged, between 0 and 1")
	flags.StringVar(&accessor, "accessor", env.OrDefault("ACCESSOR", "pointer"), "Pixel accessor (matrix, pointer or image)")
	flags.BoolVar(&vectorized, "vectorized", env.OrDefault("VECTORIZED", true), "Skip identical pixel blocks while scanning")
	flags.StringVar(&strokeColor, "stroke-color", env.OrDefault("STROKE_COLOR", "#ff0000"), "Outline color")
	flags.IntVar(&strokeWidth, "stroke-width", env.OrDefault("STROKE_WIDTH", 1), "Outline width in pixels")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() < 2 {
		return xerrors.New("baseline, target not specified")
	}
	baselinePath := flags.Arg(0)
	targetPath := flags.Arg(1)

	if format != "image" && format != "json" {
		return xerrors.Errorf("unknown output format: %s", format)
	}

	factory, err := diffimage.FactoryByName(accessor)
	if err != nil {
		return xerrors.Errorf("invalid accessor: %w", err)
	}
	stroke, err := diffimage.ParseHexColor(strokeColor)
	if err != nil {
		return xerrors.Errorf("invalid stroke color: %w", err)
	}
	differ, err := diffimage.NewRectangleDiff(tolerance,
		diffimage.WithSourceFactory(factory),
		diffimage.WithVectorized(vectorized),
		diffimage.WithStrokeColor(stroke),
		diffimage.WithStrokeWidth(strokeWidth),
	)
	if err != nil {
		return xerrors.Errorf("invalid diff configuration: %w", err)
	}

	baselineImage, err := loader.Load(baselinePath)
	if err != nil {
		return xerrors.Errorf("failed to load baseline image: %w", err)
	}
	targetImage, err := loader.Load(targetPath)
	if err != nil {
		return xerrors.Errorf("failed to load target image: %w", err)
	}

	diffResult, err := differ.Calculate(baselineImage, targetImage)
	if err != nil {
		return xerrors.Errorf("failed to calculate diff: %w", err)
	}

	output := DiffOutput{
		DiffAmount: diffResult.DiffAmount,
		Rectangles: diffResult.Rectangles,
	}

	if format == "image" {
		ctx := context.Background()
		s, err := storage.NewFileStorage(ctx, storage.FileConfig{
			Directory: directory,
		})
		if err != nil {
			return xerrors.Errorf("failed to create storage backend: %w", err)
		}

		var buffer bytes.Buffer
		if err := png.Encode(&buffer, diffResult.Image); err != nil {
			return xerrors.Errorf("failed to encode diff image: %w", err)
		}

		output.DiffPath, err = s.Put(ctx, storage.DiffKey(baselinePath, targetPath, time.Now(), "png"), buffer.Bytes())
		if err != nil {
			return xerrors.Errorf("failed to save diff image: %w", err)
		}
	}

	if err := json.NewEncoder(stdout).Encode(output); err != nil {
		return xerrors.Errorf("failed to encode result: %w", err)
	}
	return nil
}
