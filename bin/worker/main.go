package main

import (
	"change-detector/internal/batch"
	"change-detector/internal/callback"
	diffimage "change-detector/internal/diff/image"
	"change-detector/internal/env"
	"change-detector/internal/logging"
	"change-detector/internal/storage"
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(env.OrDefault("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load env file: %v", err)
	}

	var directory string
	var storageBackend string
	var bucket string
	var callbackURL string
	var retryOn string
	var tolerance float64
	var accessor string
	var vectorized bool
	var strokeColor string
	var strokeWidth int
	var concurrency int
	var schedule string
	flag.StringVar(&directory, "directory", env.OrDefault("DIRECTORY", "/tmp"), "Output directory of the file storage backend")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend (file or s3)")
	flag.StringVar(&bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "Bucket of the s3 storage backend")
	flag.StringVar(&callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "Callback URL to send reports to")
	flag.StringVar(&retryOn, "retry-on", env.OrDefault("RETRY_ON", "gateway-error,retriable-4xx,connect-failure"), "Conditions retrying a callback")
	flag.Float64Var(&tolerance, "tolerance", env.OrDefault("TOLERANCE", 0.0), "Color distance tolerated as unchanged, between 0 and 1")
	flag.StringVar(&accessor, "accessor", env.OrDefault("ACCESSOR", "pointer"), "Pixel accessor (matrix, pointer or image)")
	flag.BoolVar(&vectorized, "vectorized", env.OrDefault("VECTORIZED", true), "Skip identical pixel blocks while scanning")
	flag.StringVar(&strokeColor, "stroke-color", env.OrDefault("STROKE_COLOR", "#ff0000"), "Outline color")
	flag.IntVar(&strokeWidth, "stroke-width", env.OrDefault("STROKE_WIDTH", 1), "Outline width in pixels")
	flag.IntVar(&concurrency, "concurrency", env.OrDefault("CONCURRENCY", runtime.GOMAXPROCS(0)), "Pairs compared at once")
	flag.StringVar(&schedule, "schedule", env.OrDefault("SCHEDULE", ""), "Cron expression repeating the comparison, empty runs once")

	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		log.Fatalf("baseline and target directories not specified")
	}

	logger, err := logging.New(os.Stderr, false)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	factory, err := diffimage.FactoryByName(accessor)
	if err != nil {
		log.Fatalf("invalid accessor: %v", err)
	}
	stroke, err := diffimage.ParseHexColor(strokeColor)
	if err != nil {
		log.Fatalf("invalid stroke color: %v", err)
	}
	differ, err := diffimage.NewRectangleDiff(tolerance,
		diffimage.WithSourceFactory(factory),
		diffimage.WithVectorized(vectorized),
		diffimage.WithStrokeColor(stroke),
		diffimage.WithStrokeWidth(strokeWidth),
	)
	if err != nil {
		log.Fatalf("invalid diff configuration: %v", err)
	}

	ctx := context.Background()

	s, err := storage.New(ctx, storage.Config{
		Backend:   storageBackend,
		Directory: directory,
		Bucket:    bucket,
	})
	if err != nil {
		log.Fatalf("failed to create storage backend: %v", err)
	}

	worker := &Worker{
		Runner: batch.NewRunner(differ,
			batch.WithStorage(s),
			batch.WithConcurrency(concurrency),
			batch.WithLogger(logger),
		),
		Output:      os.Stdout,
		Logger:      logger,
		BaselineDir: args[0],
		TargetDir:   args[1],
	}

	if callbackURL != "" {
		policy, err := callback.ParsePolicy(retryOn)
		if err != nil {
			log.Fatalf("invalid retry conditions: %v", err)
		}
		worker.Callback = callback.NewClient(callbackURL, callback.WithHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
			Transport: &callback.Transport{
				Backoff: &callback.ExponentialBackoff{
					Base:       10 * time.Millisecond,
					Max:        1 * time.Second,
					MaxRetries: 3,
				},
				Policy: policy,
			},
		}))
	}

	if schedule == "" {
		if err := worker.Run(ctx); err != nil {
			log.Fatalf("failed to run worker: %v", err)
		}
		return
	}

	cronLogger := logging.Logr(logger)
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if err := worker.Run(ctx); err != nil {
			logger.Error("scheduled comparison failed", "error", err)
		}
	}); err != nil {
		log.Fatalf("invalid schedule %q: %v", schedule, err)
	}

	logger.Info("scheduled comparison", "schedule", schedule)
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	<-c.Stop().Done()
}
