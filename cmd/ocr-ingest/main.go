package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/documentocrflow/internal/config"
	"github.com/Lllllllleong/documentocrflow/internal/gcp"
	"github.com/Lllllllleong/documentocrflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	ingestInstance *services.IngestFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("CopyAndProcess", copyAndProcess)
}

// main serves the registered function locally; Cloud Functions ignores it.
func main() {
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("funcframework.Start failed", "error", err)
		os.Exit(1)
	}
}

// copyAndProcess is the Cloud Function entry point for object-finalized events.
func copyAndProcess(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		ingestInstance, initErr = services.NewIngest(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	ref, err := services.DecodeStorageEvent(e)
	if err != nil {
		slog.Error("Failed to decode storage event", "error", err, "data", string(e.Data()))
		return err
	}

	// Errors are logged with context inside Process; returning one marks the invocation failed.
	_, err = ingestInstance.Process(ctx, ref)
	return err
}
