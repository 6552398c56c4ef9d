package services

import (
	"encoding/json"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/Lllllllleong/documentocrflow/internal/models"
)

// GCSEvent is the data payload of a Cloud Storage object CloudEvent.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Generation  string `json:"generation"`
}

// DecodeStorageEvent extracts the object reference from a storage CloudEvent.
func DecodeStorageEvent(e cloudevents.Event) (models.StorageObjectRef, error) {
	var gcsEvent GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		return models.StorageObjectRef{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	ref := models.StorageObjectRef{
		Bucket:      gcsEvent.Bucket,
		Name:        gcsEvent.Name,
		ContentType: gcsEvent.ContentType,
		Generation:  gcsEvent.Generation,
	}
	if err := validateRef(ref); err != nil {
		return models.StorageObjectRef{}, fmt.Errorf("event %s: %w", e.ID(), err)
	}
	return ref, nil
}

func validateRef(ref models.StorageObjectRef) error {
	if ref.Bucket == "" {
		return fmt.Errorf("storage object reference has no bucket")
	}
	if ref.Name == "" {
		return fmt.Errorf("storage object reference has no object name")
	}
	return nil
}
