package main

import (
	"bytes"
	diffimage "change-detector/internal/diff/image"
	"change-detector/internal/loader"
	"change-detector/internal/myhttp"
	"change-detector/internal/storage"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/xerrors"
)

type DiffResponse struct {
	DiffData   string                `json:"diffData,omitempty"`
	DiffPath   string                `json:"diffPath,omitempty"`
	DiffAmount float64               `json:"diffAmount"`
	Rectangles []diffimage.Rectangle `json:"rectangles"`
}

type diffRequest struct {
	baseline     image.Image
	target       image.Image
	baselineName string
	targetName   string
	tolerance    float64
	factory      diffimage.SourceFactory
	vectorized   bool
	format       string
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	logger := myhttp.Logger(r.Context())

	request, err := s.parseDiffRequest(r)
	if err != nil {
		logger.Info("rejected diff request", "error", err)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "calculate diff", trace.WithAttributes(
		attribute.Float64("tolerance", request.tolerance),
		attribute.Bool("vectorized", request.vectorized),
		attribute.Int("baseline.width", request.baseline.Bounds().Dx()),
		attribute.Int("baseline.height", request.baseline.Bounds().Dy()),
		attribute.Int("target.width", request.target.Bounds().Dx()),
		attribute.Int("target.height", request.target.Bounds().Dy()),
	))
	differ, err := diffimage.NewRectangleDiff(request.tolerance,
		diffimage.WithSourceFactory(request.factory),
		diffimage.WithVectorized(request.vectorized),
	)
	if err != nil {
		span.End()
		logger.Info("rejected diff request", "error", err)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	diffResult, err := differ.Calculate(request.baseline, request.target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		logger.Error("failed to calculate diff", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.Int("rectangles", len(diffResult.Rectangles)))
	span.End()

	s.rectangleCount.Record(ctx, int64(len(diffResult.Rectangles)), metric.WithAttributes(
		attribute.Key("format").String(request.format),
	))

	response := DiffResponse{
		DiffAmount: diffResult.DiffAmount,
		Rectangles: diffResult.Rectangles,
	}
	if request.format == "image" {
		var buffer bytes.Buffer
		if err := png.Encode(&buffer, diffResult.Image); err != nil {
			logger.Error("failed to encode diff image", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		response.DiffData = base64.StdEncoding.EncodeToString(buffer.Bytes())

		if s.storage != nil && len(diffResult.Rectangles) > 0 {
			key := storage.DiffKey(request.baselineName, request.targetName, time.Now(), "png")
			if response.DiffPath, err = s.storage.Put(ctx, key, buffer.Bytes()); err != nil {
				logger.Error("failed to save diff image", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) parseDiffRequest(r *http.Request) (*diffRequest, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return nil, xerrors.Errorf("failed to parse form: %w", err)
	}

	request := &diffRequest{
		tolerance:  s.defaultTolerance,
		vectorized: true,
		format:     r.FormValue("format"),
	}
	if request.format == "" {
		request.format = "image"
	}
	if request.format != "image" && request.format != "json" {
		return nil, xerrors.Errorf("unknown format %q: %w", request.format, diffimage.ErrInvalidConfiguration)
	}

	var err error
	if v := r.FormValue("tolerance"); v != "" {
		if request.tolerance, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, xerrors.Errorf("invalid tolerance %q: %w", v, diffimage.ErrInvalidConfiguration)
		}
	}
	if v := r.FormValue("vectorized"); v != "" {
		if request.vectorized, err = strconv.ParseBool(v); err != nil {
			return nil, xerrors.Errorf("invalid vectorized %q: %w", v, diffimage.ErrInvalidConfiguration)
		}
	}
	accessor := r.FormValue("accessor")
	if accessor == "" {
		accessor = "pointer"
	}
	if request.factory, err = diffimage.FactoryByName(accessor); err != nil {
		return nil, err
	}

	if request.baseline, request.baselineName, err = formImage(r, "baseline"); err != nil {
		return nil, err
	}
	if request.target, request.targetName, err = formImage(r, "target"); err != nil {
		return nil, err
	}

	return request, nil
}

func formImage(r *http.Request, field string) (image.Image, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", xerrors.Errorf("missing %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", xerrors.Errorf("failed to read %s: %w", field, err)
	}

	img, err := loader.DecodeBytes(data)
	if err != nil {
		return nil, "", xerrors.Errorf("%s is not an image: %w", field, err)
	}
	return img, header.Filename, nil
}
