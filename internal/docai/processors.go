// Package docai discovers, selects and calls Document AI processors.
package docai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"golang.org/x/sync/errgroup"
)

// ErrProcessorNotFound matches any *ProcessorNotFoundError.
var ErrProcessorNotFound = errors.New("processor not found")

// ProcessorNotFoundError reports that no processor has the requested display name.
type ProcessorNotFoundError struct {
	DisplayName string
}

func (e *ProcessorNotFoundError) Error() string {
	return fmt.Sprintf("no processor with display name %q", e.DisplayName)
}

func (e *ProcessorNotFoundError) Is(target error) bool {
	return target == ErrProcessorNotFound
}

// API is the subset of the Document AI service the pipeline depends on.
type API interface {
	FetchProcessorTypes(ctx context.Context, parent string) ([]*documentaipb.ProcessorType, error)
	ListProcessors(ctx context.Context, parent string) ([]*documentaipb.Processor, error)
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error)
}

// Service runs discovery and processing calls against one project/location.
type Service struct {
	api    API
	parent string
}

// NewService returns a Service scoped to parent, e.g. "projects/p/locations/us".
func NewService(api API, parent string) *Service {
	return &Service{api: api, parent: parent}
}

// Parent returns the location resource name the service is scoped to.
func (s *Service) Parent() string {
	return s.parent
}

// FetchProcessorTypes returns the processor types available in the configured location.
func (s *Service) FetchProcessorTypes(ctx context.Context) ([]*documentaipb.ProcessorType, error) {
	return s.api.FetchProcessorTypes(ctx, s.parent)
}

// ListProcessors returns the processors configured in the project and location.
func (s *Service) ListProcessors(ctx context.Context) ([]*documentaipb.Processor, error) {
	return s.api.ListProcessors(ctx, s.parent)
}

// SelectProcessor lists processors and returns the one named displayName.
func (s *Service) SelectProcessor(ctx context.Context, displayName string) (*documentaipb.Processor, error) {
	processors, err := s.ListProcessors(ctx)
	if err != nil {
		return nil, err
	}
	return GetProcessor(processors, displayName)
}

// Catalog fetches processor types and configured processors concurrently.
func (s *Service) Catalog(ctx context.Context) ([]*documentaipb.ProcessorType, []*documentaipb.Processor, error) {
	var (
		types      []*documentaipb.ProcessorType
		processors []*documentaipb.Processor
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		types, err = s.FetchProcessorTypes(gctx)
		return err
	})
	eg.Go(func() error {
		var err error
		processors, err = s.ListProcessors(gctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return types, processors, nil
}

// GetProcessor returns the first processor whose display name equals displayName.
// Duplicates are logged and the first one in listing order wins.
func GetProcessor(processors []*documentaipb.Processor, displayName string) (*documentaipb.Processor, error) {
	var found *documentaipb.Processor
	matches := 0
	for _, p := range processors {
		if p.GetDisplayName() != displayName {
			continue
		}
		if found == nil {
			found = p
		}
		matches++
	}
	if found == nil {
		return nil, &ProcessorNotFoundError{DisplayName: displayName}
	}
	if matches > 1 {
		slog.Warn("Multiple processors share a display name; using the first.",
			"displayName", displayName, "matches", matches, "processor", found.GetName())
	}
	return found, nil
}

// ProcessFile reads path and submits its bytes to processor as a raw document.
func (s *Service) ProcessFile(ctx context.Context, processor *documentaipb.Processor, path, mimeType string) (*documentaipb.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	req := &documentaipb.ProcessRequest{
		Name: processor.GetName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
	}
	doc, err := s.api.ProcessDocument(ctx, req)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("processor %s returned no document", processor.GetName())
	}
	return doc, nil
}

// SortProcessorTypes orders types creatable-first, then by category, then by type.
func SortProcessorTypes(types []*documentaipb.ProcessorType) []*documentaipb.ProcessorType {
	sorted := append([]*documentaipb.ProcessorType(nil), types...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.GetAllowCreation() != b.GetAllowCreation() {
			return a.GetAllowCreation()
		}
		if a.GetCategory() != b.GetCategory() {
			return a.GetCategory() < b.GetCategory()
		}
		return a.GetType() < b.GetType()
	})
	return sorted
}

// SortProcessors orders processors by display name.
func SortProcessors(processors []*documentaipb.Processor) []*documentaipb.Processor {
	sorted := append([]*documentaipb.Processor(nil), processors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GetDisplayName() < sorted[j].GetDisplayName()
	})
	return sorted
}
