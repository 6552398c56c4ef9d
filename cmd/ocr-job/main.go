// Command ocr-job runs the OCR processing stage for a single staged file.
// The job is read from the environment (FILEENV, OCR_BUCKET, OCR_SCRATCH_PATH,
// OCR_MIME_TYPE, OCR_INVOCATION_ID) and the OCRResult is written to stdout as JSON.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/documentocrflow/internal/config"
	"github.com/Lllllllleong/documentocrflow/internal/pipeline"
	"github.com/Lllllllleong/documentocrflow/internal/services"
	"github.com/joho/godotenv"
)

func main() {
	// stdout carries the result, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 2
	}
	job, err := pipeline.DecodeJobEnv(os.LookupEnv, cfg.ScratchRoot)
	if err != nil {
		slog.Error("Invalid job environment", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ocrJob, err := services.NewOCRJob(ctx, cfg)
	if err != nil {
		slog.Error("Critical error during job initialization", "error", err)
		return 1
	}
	result, err := ocrJob.Run(ctx, job)
	if err != nil {
		// Run has already logged the failure with context.
		return 1
	}
	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		slog.Error("Failed to write result", "error", err)
		return 1
	}
	return 0
}
