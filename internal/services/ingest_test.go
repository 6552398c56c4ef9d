package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/documentocrflow/internal/docai"
	"github.com/Lllllllleong/documentocrflow/internal/gcp"
	"github.com/Lllllllleong/documentocrflow/internal/models"
	"github.com/Lllllllleong/documentocrflow/internal/pipeline"
)

func testIngestConfig(t *testing.T) IngestConfig {
	return IngestConfig{
		ScratchRoot:     t.TempDir(),
		DefaultMimeType: "application/pdf",
		OutputSuffix:    "ocroutput.json",
	}
}

func fixedIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestIngestEndToEnd(t *testing.T) {
	store := newMemStore()
	source := []byte("%PDF-1.7 form body")
	store.put("b", "form.pdf", source)
	api := &fakeDocAI{processors: testProcessors(), text: "Name: X"}
	runs := newMemRuns()
	job := newTestJob(store, api, runs, nil)

	cfg := testIngestConfig(t)
	ingest := NewIngestWith(cfg, store, job, runs)
	ingest.newID = fixedIDs("inv-1")

	res, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: "form.pdf"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	scratch := filepath.Join(cfg.ScratchRoot, "inv-1", "form.pdf")
	staged, err := os.ReadFile(scratch)
	if err != nil {
		t.Fatalf("expected scratch file at %s: %v", scratch, err)
	}
	if !bytes.Equal(staged, source) {
		t.Fatal("scratch file differs from source object")
	}
	entries, err := os.ReadDir(filepath.Join(cfg.ScratchRoot, "inv-1"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected exactly one scratch file, got %d (%v)", len(entries), err)
	}

	if !bytes.Equal(api.requests[0].GetRawDocument().GetContent(), source) {
		t.Fatal("submitted bytes differ from source object")
	}
	if mt := api.requests[0].GetRawDocument().GetMimeType(); mt != "application/pdf" {
		t.Fatalf("unexpected mime type %q", mt)
	}
	out, ok := store.get("b", "form.pdfocroutput.json")
	if !ok || string(out) != `["Name: X"]` {
		t.Fatalf("unexpected output %s (found=%t)", out, ok)
	}
	if res.OutputObject != "form.pdfocroutput.json" || res.InvocationID != "inv-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if s := runs.status("inv-1"); s != models.StatusComplete {
		t.Fatalf("expected COMPLETE run, got %v", s)
	}
}

func TestIngestPassesJobExplicitly(t *testing.T) {
	store := newMemStore()
	store.put("b", "scans/form.png", []byte("png bytes"))
	cfg := testIngestConfig(t)

	var seen models.OCRJob
	runner := pipeline.RunnerFunc(func(_ context.Context, job models.OCRJob) (*models.OCRResult, error) {
		seen = job
		data, err := os.ReadFile(job.ScratchPath)
		if err != nil {
			return nil, err
		}
		if string(data) != "png bytes" {
			return nil, fmt.Errorf("unexpected scratch content %q", data)
		}
		return &models.OCRResult{InvocationID: job.InvocationID}, nil
	})
	ingest := NewIngestWith(cfg, store, runner, nil)
	ingest.newID = fixedIDs("inv-9")

	_, err := ingest.Process(context.Background(), models.StorageObjectRef{
		Bucket:      "b",
		Name:        "scans/form.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := models.OCRJob{
		InvocationID: "inv-9",
		Bucket:       "b",
		ObjectName:   "scans/form.png",
		ScratchPath:  filepath.Join(cfg.ScratchRoot, "inv-9", "scans_form.png"),
		MimeType:     "image/png",
	}
	if seen != want {
		t.Fatalf("job = %+v, want %+v", seen, want)
	}
	if _, ok := os.LookupEnv(pipeline.EnvObjectName); ok {
		t.Fatalf("%s must not be set on the handler process", pipeline.EnvObjectName)
	}
}

func TestIngestSameNameDistinctScratch(t *testing.T) {
	store := newMemStore()
	store.put("b1", "form.pdf", []byte("one"))
	store.put("b2", "form.pdf", []byte("two"))
	var paths []string
	runner := pipeline.RunnerFunc(func(_ context.Context, job models.OCRJob) (*models.OCRResult, error) {
		paths = append(paths, job.ScratchPath)
		return &models.OCRResult{}, nil
	})
	ingest := NewIngestWith(testIngestConfig(t), store, runner, nil)
	ingest.newID = fixedIDs("inv-a", "inv-b")

	for _, bucket := range []string{"b1", "b2"} {
		if _, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: bucket, Name: "form.pdf"}); err != nil {
			t.Fatalf("Process(%s): %v", bucket, err)
		}
	}
	if paths[0] == paths[1] {
		t.Fatalf("expected distinct scratch paths, got %q twice", paths[0])
	}
	first, _ := os.ReadFile(paths[0])
	if string(first) != "one" {
		t.Fatalf("first scratch file overwritten: %q", first)
	}
}

func TestIngestDownloadFailure(t *testing.T) {
	called := false
	runner := pipeline.RunnerFunc(func(context.Context, models.OCRJob) (*models.OCRResult, error) {
		called = true
		return &models.OCRResult{}, nil
	})
	runs := newMemRuns()
	ingest := NewIngestWith(testIngestConfig(t), newMemStore(), runner, runs)
	ingest.newID = fixedIDs("inv-x")

	_, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: "missing.pdf"})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageIngest {
		t.Fatalf("expected ingest StageError, got %v", err)
	}
	if !errors.Is(err, gcp.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound in chain, got %v", err)
	}
	if called {
		t.Fatal("job must not run when staging fails")
	}
	if s := runs.status("inv-x"); s != models.StatusFailed {
		t.Fatalf("expected FAILED run, got %v", s)
	}
}

func TestIngestJobFailure(t *testing.T) {
	store := newMemStore()
	store.put("b", "form.pdf", []byte("data"))
	job := newTestJob(store, &fakeDocAI{processors: nil}, nil, nil)
	ingest := NewIngestWith(testIngestConfig(t), store, job, nil)

	_, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: "form.pdf"})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageProcess {
		t.Fatalf("expected process StageError, got %v", err)
	}
	if !errors.Is(err, docai.ErrProcessorNotFound) {
		t.Fatalf("expected ErrProcessorNotFound in chain, got %v", err)
	}
}

func TestIngestJobExitMarksRunFailed(t *testing.T) {
	store := newMemStore()
	store.put("b", "form.pdf", []byte("data"))
	runner := pipeline.RunnerFunc(func(context.Context, models.OCRJob) (*models.OCRResult, error) {
		return nil, &pipeline.JobExitError{ExitCode: 2, Err: errors.New("exit status 2")}
	})
	runs := newMemRuns()
	ingest := NewIngestWith(testIngestConfig(t), store, runner, runs)
	ingest.newID = fixedIDs("inv-exit")

	_, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: "form.pdf"})
	var exitErr *pipeline.JobExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected JobExitError in chain, got %v", err)
	}
	if s := runs.status("inv-exit"); s != models.StatusFailed {
		t.Fatalf("expected FAILED run, got %v", s)
	}
}

func TestIngestNilResultIsFailure(t *testing.T) {
	store := newMemStore()
	store.put("b", "form.pdf", []byte("data"))
	runner := pipeline.RunnerFunc(func(context.Context, models.OCRJob) (*models.OCRResult, error) {
		return nil, nil
	})
	runs := newMemRuns()
	ingest := NewIngestWith(testIngestConfig(t), store, runner, runs)
	ingest.newID = fixedIDs("inv-nil")
	_, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: "form.pdf"})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageProcess {
		t.Fatalf("expected process StageError, got %v", err)
	}
	if s := runs.status("inv-nil"); s != models.StatusFailed {
		t.Fatalf("expected FAILED run, got %v", s)
	}
}

func TestIngestMoveFailureRemovesScratchDir(t *testing.T) {
	name := strings.Repeat("a", 300) + ".pdf"
	store := newMemStore()
	store.put("b", name, []byte("data"))
	cfg := testIngestConfig(t)
	ingest := NewIngestWith(cfg, store, nil, nil)
	ingest.newID = fixedIDs("inv-long")

	_, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: name})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageIngest {
		t.Fatalf("expected ingest StageError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.ScratchRoot, "inv-long")); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, stat err = %v", err)
	}
}

func TestIngestSkipsOwnOutput(t *testing.T) {
	runner := pipeline.RunnerFunc(func(context.Context, models.OCRJob) (*models.OCRResult, error) {
		t.Fatal("runner must not be called for OCR output objects")
		return nil, nil
	})
	ingest := NewIngestWith(testIngestConfig(t), newMemStore(), runner, nil)
	res, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: "form.pdfocroutput.json"})
	if err != nil || res != nil {
		t.Fatalf("expected skip, got %+v %v", res, err)
	}
}

func TestIngestRejectsIncompleteRef(t *testing.T) {
	ingest := NewIngestWith(testIngestConfig(t), newMemStore(), nil, nil)
	if _, err := ingest.Process(context.Background(), models.StorageObjectRef{Name: "form.pdf"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestIngestCleanupScratch(t *testing.T) {
	store := newMemStore()
	store.put("b", "form.pdf", []byte("data"))
	cfg := testIngestConfig(t)
	cfg.CleanupScratch = true
	runner := pipeline.RunnerFunc(func(context.Context, models.OCRJob) (*models.OCRResult, error) {
		return &models.OCRResult{}, nil
	})
	ingest := NewIngestWith(cfg, store, runner, nil)
	ingest.newID = fixedIDs("inv-c")

	if _, err := ingest.Process(context.Background(), models.StorageObjectRef{Bucket: "b", Name: "form.pdf"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.ScratchRoot, "inv-c")); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, stat err = %v", err)
	}
}

func TestResolveMimeType(t *testing.T) {
	cases := map[string]string{
		"":                          "application/pdf",
		"application/octet-stream":  "application/pdf",
		"image/tiff":                "image/tiff",
		"text/plain; charset=utf-8": "text/plain",
		"not a media type;;":        "application/pdf",
	}
	for in, want := range cases {
		if got := resolveMimeType(in, "application/pdf"); got != want {
			t.Fatalf("resolveMimeType(%q) = %q, want %q", in, got, want)
		}
	}
}
