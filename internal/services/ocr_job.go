package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/Lllllllleong/documentocrflow/internal/config"
	"github.com/Lllllllleong/documentocrflow/internal/docai"
	"github.com/Lllllllleong/documentocrflow/internal/gcp"
	"github.com/Lllllllleong/documentocrflow/internal/models"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Function instances have no writable home directory for pdfcpu's config.
	api.DisableConfigDir()
}

const jsonContentType = "application/json"

// ObjectStore is the object storage the pipeline reads sources from and writes results to.
type ObjectStore interface {
	Download(ctx context.Context, bucket, object string, w io.Writer) (int64, error)
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error
}

// WorkflowTrigger starts a downstream workflow with a JSON payload.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, payload interface{}) (string, error)
}

// OCRJobConfig holds configuration for the processing stage.
type OCRJobConfig struct {
	ProcessorDisplayName string
	OutputBucket         string
	OutputSuffix         string
	DefaultMimeType      string
}

// OCRJobFunction submits a staged file to Document AI and stores the extracted lines.
type OCRJobFunction struct {
	store    ObjectStore
	docs     *docai.Service
	runs     runTracker
	workflow WorkflowTrigger
	config   OCRJobConfig
}

// NewOCRJob builds the processing stage and its cloud clients from cfg.
func NewOCRJob(ctx context.Context, cfg *config.Config) (*OCRJobFunction, error) {
	store, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := newRunStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newOCRJob(ctx, cfg, store, runs)
}

// newOCRJob builds the processing stage around an existing store and run store,
// so an in-process ingest stage can share its clients.
func newOCRJob(ctx context.Context, cfg *config.Config, store ObjectStore, runs RunStore) (*OCRJobFunction, error) {
	docClient, err := gcp.NewDocumentAIClient(ctx, cfg.DocumentAILocation)
	if err != nil {
		return nil, fmt.Errorf("failed to create document ai client: %w", err)
	}

	var workflow WorkflowTrigger
	if cfg.WorkflowID != "" {
		launcher, err := gcp.NewWorkflowLauncher(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			return nil, err
		}
		workflow = launcher
	}

	f := NewOCRJobWith(OCRJobConfig{
		ProcessorDisplayName: cfg.ProcessorDisplayName,
		OutputBucket:         cfg.OutputBucket,
		OutputSuffix:         cfg.OutputSuffix,
		DefaultMimeType:      cfg.DefaultMimeType,
	}, store, docai.NewService(docClient, gcp.LocationParent(cfg.ProjectID, cfg.DocumentAILocation)), runs, workflow)
	slog.Info("OCR job logic initialized.", "processor", cfg.ProcessorDisplayName, "location", cfg.DocumentAILocation)
	return f, nil
}

// NewOCRJobWith assembles an OCRJobFunction from existing dependencies.
// runs and workflow may be nil to disable run tracking and the downstream hand-off.
func NewOCRJobWith(cfg OCRJobConfig, store ObjectStore, docs *docai.Service, runs RunStore, workflow WorkflowTrigger) *OCRJobFunction {
	return &OCRJobFunction{
		store:    store,
		docs:     docs,
		runs:     runTracker{store: runs},
		workflow: workflow,
		config:   cfg,
	}
}

// Run processes one staged file and uploads its lines as JSON.
func (f *OCRJobFunction) Run(ctx context.Context, job models.OCRJob) (*models.OCRResult, error) {
	if job.InvocationID == "" {
		job.InvocationID = uuid.NewString()
		f.runs.start(ctx, slog.Default(), job.InvocationID, models.StorageObjectRef{Bucket: job.Bucket, Name: job.ObjectName})
	}
	if job.MimeType == "" {
		job.MimeType = f.config.DefaultMimeType
	}
	logCtx := slog.With("gcsBucket", job.Bucket, "gcsObject", job.ObjectName, "invocationId", job.InvocationID)
	logCtx.Info("Starting OCR job.", "scratchPath", job.ScratchPath, "mimeType", job.MimeType)

	processor, err := f.docs.SelectProcessor(ctx, f.config.ProcessorDisplayName)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, job.InvocationID, "failed to select processor", err)
	}
	logCtx = logCtx.With("processor", processor.GetName())

	pageCount := countPages(logCtx, job)
	f.runs.update(ctx, logCtx, job.InvocationID, map[string]interface{}{
		"status":        models.StatusProcessing,
		"processorName": processor.GetName(),
		"pageCount":     pageCount,
	})

	doc, err := f.docs.ProcessFile(ctx, processor, job.ScratchPath, job.MimeType)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, job.InvocationID, "failed to process document", err)
	}

	result, err := f.saveLines(ctx, logCtx, job, doc)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, job.InvocationID, "failed to save OCR output", err)
	}
	result.ProcessorName = processor.GetName()
	result.PageCount = pageCount

	if f.workflow != nil {
		execName, err := f.workflow.Trigger(ctx, map[string]interface{}{
			"invocationId": result.InvocationID,
			"bucket":       result.Bucket,
			"outputObject": result.OutputObject,
			"outputUri":    result.OutputURI,
			"lineCount":    result.LineCount,
		})
		if err != nil {
			return nil, f.handleError(ctx, logCtx, job.InvocationID, "failed to trigger workflow execution", err)
		}
		logCtx.Info("Triggered downstream workflow.", "execution", execName)
	}

	f.runs.update(ctx, logCtx, job.InvocationID, map[string]interface{}{
		"status":    models.StatusComplete,
		"lineCount": result.LineCount,
		"outputUri": result.OutputURI,
	})
	logCtx.Info("OCR job complete.", "outputUri", result.OutputURI, "lineCount", result.LineCount)
	return result, nil
}

func (f *OCRJobFunction) saveLines(ctx context.Context, logCtx *slog.Logger, job models.OCRJob, doc *documentaipb.Document) (*models.OCRResult, error) {
	lines := SplitLines(doc.GetText())
	data, err := EncodeLines(lines)
	if err != nil {
		return nil, err
	}

	bucket := job.Bucket
	if f.config.OutputBucket != "" {
		bucket = f.config.OutputBucket
	}
	object := OutputObjectName(job.ObjectName, f.config.OutputSuffix)
	if err := f.store.Upload(ctx, bucket, object, data, jsonContentType); err != nil {
		return nil, err
	}
	logCtx.Info("Uploaded OCR output.", "outputBucket", bucket, "outputObject", object, "bytes", len(data))

	return &models.OCRResult{
		InvocationID: job.InvocationID,
		Bucket:       bucket,
		OutputObject: object,
		OutputURI:    fmt.Sprintf("gs://%s/%s", bucket, object),
		LineCount:    len(lines),
	}, nil
}

func (f *OCRJobFunction) handleError(ctx context.Context, logCtx *slog.Logger, invocationID, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	f.runs.fail(ctx, logCtx, invocationID, fmt.Sprintf("%s: %v", message, originalErr))
	return fmt.Errorf("%s: %w", message, originalErr)
}

// countPages reports the page count of PDF inputs. It is informational only,
// so unreadable files yield 0.
func countPages(logCtx *slog.Logger, job models.OCRJob) int {
	if job.MimeType != "application/pdf" {
		return 0
	}
	file, err := os.Open(job.ScratchPath)
	if err != nil {
		logCtx.Warn("Could not open file to count PDF pages.", "error", err)
		return 0
	}
	defer file.Close()

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(file, cfg)
	if err != nil {
		logCtx.Warn("Could not count PDF pages.", "error", err)
		return 0
	}
	return n
}

func newRunStore(ctx context.Context, cfg *config.Config) (RunStore, error) {
	if cfg.CollectionName == "" {
		return nil, nil
	}
	client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return gcp.NewFirestoreRunStore(client, cfg.CollectionName), nil
}
