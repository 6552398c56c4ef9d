package models

import "time"

// Run statuses recorded on an OCRRun as it moves through the pipeline.
const (
	StatusDownloading = "DOWNLOADING"
	StatusProcessing  = "PROCESSING"
	StatusComplete    = "COMPLETE"
	StatusFailed      = "FAILED"
)

// OCRRun is the Firestore record for a single pipeline invocation.
// The document ID is the invocation ID.
type OCRRun struct {
	SourceBucket  string    `firestore:"sourceBucket,omitempty"`
	SourceObject  string    `firestore:"sourceObject,omitempty"`
	Status        string    `firestore:"status,omitempty"`
	ErrorDetails  string    `firestore:"errorDetails,omitempty"`
	ProcessorName string    `firestore:"processorName,omitempty"`
	PageCount     int       `firestore:"pageCount,omitempty"`
	LineCount     int       `firestore:"lineCount,omitempty"`
	OutputURI     string    `firestore:"outputUri,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt     time.Time `firestore:"updatedAt,omitempty"`
}
