package main

import (
	"change-detector/internal/batch"
	"change-detector/internal/callback"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"golang.org/x/xerrors"
)

type Worker struct {
	Runner      *batch.Runner
	Callback    *callback.Client
	Output      io.Writer
	Logger      *slog.Logger
	BaselineDir string
	TargetDir   string
}

// Run compares the directories once and delivers the report to the callback
// when one is configured, to Output otherwise.
func (w *Worker) Run(ctx context.Context) error {
	report, err := w.Runner.Run(ctx, w.BaselineDir, w.TargetDir)
	if err != nil {
		return xerrors.Errorf("failed to compare directories: %w", err)
	}

	w.Logger.Info("comparison finished",
		"changed", report.Changed,
		"unchanged", report.Unchanged,
		"missing", report.Missing,
		"failed", report.Failed,
		"duration", report.Duration,
	)

	if w.Callback != nil {
		if err := w.Callback.Send(ctx, report); err != nil {
			return xerrors.Errorf("failed to send callback: %w", err)
		}
		return nil
	}

	j, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal report: %w", err)
	}
	if _, err := w.Output.Write(append(j, '\n')); err != nil {
		return xerrors.Errorf("failed to write report: %w", err)
	}
	return nil
}
