package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/documentocrflow/internal/config"
	"github.com/Lllllllleong/documentocrflow/internal/gcp"
	"github.com/Lllllllleong/documentocrflow/internal/models"
	"github.com/Lllllllleong/documentocrflow/internal/pipeline"
	"github.com/google/uuid"
)

// Pipeline stages reported in a StageError.
const (
	StageIngest  = "ingest"
	StageProcess = "process"
)

// StageError reports which pipeline stage failed for an invocation.
type StageError struct {
	Stage        string
	InvocationID string
	Err          error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for invocation %s: %v", e.Stage, e.InvocationID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IngestConfig holds configuration for the ingest stage.
type IngestConfig struct {
	ScratchRoot     string
	DefaultMimeType string
	OutputSuffix    string
	// CleanupScratch removes the invocation's scratch directory once the job returns.
	CleanupScratch bool
}

// IngestFunction copies a new object into scratch space and runs the OCR job on it.
type IngestFunction struct {
	store  ObjectStore
	runner pipeline.JobRunner
	runs   runTracker
	config IngestConfig
	newID  func() string
}

// NewIngest builds the ingest stage from cfg. The OCR job runs in-process or,
// with JOB_RUNNER=exec, as the JOB_COMMAND binary.
func NewIngest(ctx context.Context, cfg *config.Config) (*IngestFunction, error) {
	store, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := newRunStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var runner pipeline.JobRunner
	switch cfg.JobRunner {
	case config.RunnerExec:
		runner = &pipeline.ExecRunner{Path: cfg.JobCommand}
	default:
		job, err := newOCRJob(ctx, cfg, store, runs)
		if err != nil {
			return nil, fmt.Errorf("failed to create ocr job: %w", err)
		}
		runner = job
	}

	f := NewIngestWith(IngestConfig{
		ScratchRoot:     cfg.ScratchRoot,
		DefaultMimeType: cfg.DefaultMimeType,
		OutputSuffix:    cfg.OutputSuffix,
		CleanupScratch:  cfg.CleanupScratch,
	}, store, runner, runs)
	slog.Info("Ingest logic initialized.", "jobRunner", cfg.JobRunner, "scratchRoot", cfg.ScratchRoot)
	return f, nil
}

// NewIngestWith assembles an IngestFunction from existing dependencies. runs may be nil.
func NewIngestWith(cfg IngestConfig, store ObjectStore, runner pipeline.JobRunner, runs RunStore) *IngestFunction {
	return &IngestFunction{
		store:  store,
		runner: runner,
		runs:   runTracker{store: runs},
		config: cfg,
		newID:  uuid.NewString,
	}
}

// Process stages ref in scratch space and runs the OCR job on it. Objects that
// are themselves OCR output are skipped and yield a nil result.
func (f *IngestFunction) Process(ctx context.Context, ref models.StorageObjectRef) (*models.OCRResult, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	logCtx := slog.With("gcsBucket", ref.Bucket, "gcsObject", ref.Name)
	if f.config.OutputSuffix != "" && strings.HasSuffix(ref.Name, f.config.OutputSuffix) {
		logCtx.Info("Object is OCR output. Skipping.")
		return nil, nil
	}

	invocationID := f.newID()
	logCtx = logCtx.With("invocationId", invocationID)
	logCtx.Info("Processing new GCS object.")
	f.runs.start(ctx, logCtx, invocationID, ref)

	scratchDir := filepath.Join(f.config.ScratchRoot, invocationID)
	scratchPath, err := f.stage(ctx, ref, scratchDir)
	if err != nil {
		logCtx.Error("Failed to stage object in scratch space", "error", err)
		f.runs.fail(ctx, logCtx, invocationID, err.Error())
		return nil, &StageError{Stage: StageIngest, InvocationID: invocationID, Err: err}
	}
	if f.config.CleanupScratch {
		defer os.RemoveAll(scratchDir)
	}
	logCtx.Info("File copied to scratch space.", "scratchPath", scratchPath)

	job := models.OCRJob{
		InvocationID: invocationID,
		Bucket:       ref.Bucket,
		ObjectName:   ref.Name,
		ScratchPath:  scratchPath,
		MimeType:     resolveMimeType(ref.ContentType, f.config.DefaultMimeType),
	}
	result, err := f.runner.Run(ctx, job)
	if err != nil {
		logCtx.Error("OCR job failed", "error", err)
		f.runs.fail(ctx, logCtx, invocationID, err.Error())
		return nil, &StageError{Stage: StageProcess, InvocationID: invocationID, Err: err}
	}
	if result == nil {
		err := fmt.Errorf("ocr job returned no result")
		logCtx.Error("OCR job failed", "error", err)
		f.runs.fail(ctx, logCtx, invocationID, err.Error())
		return nil, &StageError{Stage: StageProcess, InvocationID: invocationID, Err: err}
	}

	logCtx.Info("Pipeline complete.", "outputUri", result.OutputURI)
	return result, nil
}

// stage downloads ref into a unique temp file, then moves it into scratchDir.
func (f *IngestFunction) stage(ctx context.Context, ref models.StorageObjectRef, scratchDir string) (string, error) {
	tmp, err := os.CreateTemp("", "ocr-ingest-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := f.store.Download(ctx, ref.Bucket, ref.Name, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to create scratch dir %s: %w", scratchDir, err)
	}
	dest := filepath.Join(scratchDir, ScratchName(ref.Name))
	if err := moveFile(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		// Only removes the directory if nothing else landed in it.
		os.Remove(scratchDir)
		return "", err
	}
	return dest, nil
}

// moveFile renames src to dst, copying when they sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", dst, err)
	}
	return os.Remove(src)
}

func resolveMimeType(contentType, fallback string) string {
	if contentType == "" {
		return fallback
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "application/octet-stream" {
		return fallback
	}
	return mediaType
}
