package services

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/documentocrflow/internal/models"
)

// RunStore persists per-invocation run records.
type RunStore interface {
	Create(ctx context.Context, invocationID string, run models.OCRRun) error
	Update(ctx context.Context, invocationID string, fields map[string]interface{}) error
}

// runTracker records run status when a store is configured. Tracking failures
// are logged and never fail the pipeline.
type runTracker struct {
	store RunStore
}

func (t runTracker) start(ctx context.Context, logCtx *slog.Logger, invocationID string, ref models.StorageObjectRef) {
	if t.store == nil {
		return
	}
	run := models.OCRRun{
		SourceBucket: ref.Bucket,
		SourceObject: ref.Name,
		Status:       models.StatusDownloading,
	}
	if err := t.store.Create(ctx, invocationID, run); err != nil {
		logCtx.Warn("Failed to create run record.", "error", err)
	}
}

func (t runTracker) update(ctx context.Context, logCtx *slog.Logger, invocationID string, fields map[string]interface{}) {
	if t.store == nil {
		return
	}
	if err := t.store.Update(ctx, invocationID, fields); err != nil {
		logCtx.Warn("Failed to update run record.", "error", err, "fields", fields)
	}
}

func (t runTracker) fail(ctx context.Context, logCtx *slog.Logger, invocationID, details string) {
	if t.store == nil {
		return
	}
	fields := map[string]interface{}{
		"status":       models.StatusFailed,
		"errorDetails": details,
	}
	if err := t.store.Update(ctx, invocationID, fields); err != nil {
		logCtx.Error("CRITICAL: Failed to update run status to FAILED after a processing error.", "updateError", err)
	}
}
