package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/documentocrflow/internal/config"
	"github.com/Lllllllleong/documentocrflow/internal/gcp"
	"github.com/Lllllllleong/documentocrflow/internal/models"
	"github.com/Lllllllleong/documentocrflow/internal/services"
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

	// "HandleProcessDocument" is the entry point name configured in GCP.
	functions.HTTP("HandleProcessDocument", handleProcessDocument)
}

// main serves the registered function locally; Cloud Functions ignores it.
func main() {
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("funcframework.Start failed", "error", err)
		os.Exit(1)
	}
}

// handleProcessDocument runs the pipeline for an object named in the request body.
func handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		ingestInstance, initErr = services.NewIngest(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical: OCR processor initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ProcessDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.Bucket == "" || req.Name == "" {
		http.Error(w, "Bad Request: bucket and name are required", http.StatusBadRequest)
		return
	}

	res, err := ingestInstance.Process(r.Context(), models.StorageObjectRef{
		Bucket:      req.Bucket,
		Name:        req.Name,
		ContentType: req.ContentType,
	})
	if err != nil {
		// The specific error is already logged inside Process.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	resp := models.ProcessDocumentResponse{Status: "success", Result: res}
	if res == nil {
		resp.Status = "skipped"
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write response", "error", err, "gcsBucket", req.Bucket, "gcsObject", req.Name)
	}
}
