package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/Lllllllleong/documentocrflow/internal/gcp"
	"github.com/Lllllllleong/documentocrflow/internal/models"
)

type memStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	uploadErr    error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memStore) put(bucket, object string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+object] = data
}

func (m *memStore) get(bucket, object string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+object]
	return data, ok
}

func (m *memStore) Download(_ context.Context, bucket, object string, w io.Writer) (int64, error) {
	data, ok := m.get(bucket, object)
	if !ok {
		return 0, fmt.Errorf("gs://%s/%s: %w", bucket, object, gcp.ErrObjectNotFound)
	}
	return io.Copy(w, bytes.NewReader(data))
}

func (m *memStore) Upload(_ context.Context, bucket, object string, data []byte, contentType string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.put(bucket, object, append([]byte(nil), data...))
	m.mu.Lock()
	m.contentTypes[bucket+"/"+object] = contentType
	m.mu.Unlock()
	return nil
}

type fakeDocAI struct {
	processors []*documentaipb.Processor
	text       string
	processErr error
	requests   []*documentaipb.ProcessRequest
}

func (f *fakeDocAI) FetchProcessorTypes(context.Context, string) ([]*documentaipb.ProcessorType, error) {
	return nil, nil
}

func (f *fakeDocAI) ListProcessors(context.Context, string) ([]*documentaipb.Processor, error) {
	return f.processors, nil
}

func (f *fakeDocAI) ProcessDocument(_ context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
	f.requests = append(f.requests, req)
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &documentaipb.Document{Text: f.text}, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs map[string]map[string]interface{}
}

func newMemRuns() *memRuns {
	return &memRuns{runs: map[string]map[string]interface{}{}}
}

func (m *memRuns) Create(_ context.Context, id string, run models.OCRRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id] = map[string]interface{}{
		"sourceBucket": run.SourceBucket,
		"sourceObject": run.SourceObject,
		"status":       run.Status,
	}
	return nil
}

func (m *memRuns) Update(_ context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run %s does not exist", id)
	}
	for k, v := range fields {
		run[k] = v
	}
	return nil
}

func (m *memRuns) status(id string) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]["status"]
}

type recordingWorkflow struct {
	payloads []interface{}
	err      error
}

func (r *recordingWorkflow) Trigger(_ context.Context, payload interface{}) (string, error) {
	r.payloads = append(r.payloads, payload)
	return "executions/1", r.err
}
