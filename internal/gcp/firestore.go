package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/documentocrflow/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreRunStore persists OCRRun records, one document per invocation.
type FirestoreRunStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRunStore returns a run store writing to the named collection.
func NewFirestoreRunStore(client *firestore.Client, collection string) *FirestoreRunStore {
	return &FirestoreRunStore{client: client, collection: collection}
}

// Create writes the initial record for an invocation.
func (s *FirestoreRunStore) Create(ctx context.Context, invocationID string, run models.OCRRun) error {
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	if _, err := s.client.Collection(s.collection).Doc(invocationID).Set(ctx, run); err != nil {
		return fmt.Errorf("failed to create run document %s: %w", invocationID, err)
	}
	return nil
}

// Update sets the given fields on an existing run record and bumps updatedAt.
func (s *FirestoreRunStore) Update(ctx context.Context, invocationID string, fields map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now()})
	if _, err := s.client.Collection(s.collection).Doc(invocationID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update run document %s: %w", invocationID, err)
	}
	return nil
}
