package gcp

import (
	"context"
	"errors"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DocumentAIEndpoint returns the regional API endpoint for a Document AI location.
func DocumentAIEndpoint(location string) string {
	return fmt.Sprintf("%s-documentai.googleapis.com:443", location)
}

// LocationParent returns the resource name processors are scoped under.
func LocationParent(projectID, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s", projectID, location)
}

// DocumentAI adapts the generated Document AI client to the calls the pipeline makes.
type DocumentAI struct {
	client *documentai.DocumentProcessorClient
}

// NewDocumentAIClient creates a processor client bound to the location's regional endpoint.
func NewDocumentAIClient(ctx context.Context, location string) (*DocumentAI, error) {
	if location == "" {
		return nil, fmt.Errorf("NewDocumentAIClient: location cannot be empty")
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(DocumentAIEndpoint(location)))
	if err != nil {
		return nil, fmt.Errorf("documentai.NewDocumentProcessorClient: %w", err)
	}
	return &DocumentAI{client: client}, nil
}

// FetchProcessorTypes lists the processor types that can be used under parent.
func (d *DocumentAI) FetchProcessorTypes(ctx context.Context, parent string) ([]*documentaipb.ProcessorType, error) {
	resp, err := d.client.FetchProcessorTypes(ctx, &documentaipb.FetchProcessorTypesRequest{Parent: parent})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch processor types for %s: %w", parent, err)
	}
	return resp.GetProcessorTypes(), nil
}

// ListProcessors returns every processor configured under parent.
func (d *DocumentAI) ListProcessors(ctx context.Context, parent string) ([]*documentaipb.Processor, error) {
	it := d.client.ListProcessors(ctx, &documentaipb.ListProcessorsRequest{Parent: parent})
	var processors []*documentaipb.Processor
	for {
		p, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list processors for %s: %w", parent, err)
		}
		processors = append(processors, p)
	}
	return processors, nil
}

// ProcessDocument sends a synchronous process request and returns the extracted document.
func (d *DocumentAI) ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document with %s: %w", req.GetName(), err)
	}
	return resp.GetDocument(), nil
}

// Close releases the underlying client.
func (d *DocumentAI) Close() error {
	return d.client.Close()
}
