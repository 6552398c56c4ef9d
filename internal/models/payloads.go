package models

// These structs define the payloads passed between the ingest handler,
// the OCR job and anything calling the pipeline over HTTP.

// StorageObjectRef identifies an object in Cloud Storage. It is built from the
// storage notification that triggers the pipeline.
type StorageObjectRef struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Generation  string `json:"generation,omitempty"`
}

// OCRJob is the hand-off from the ingest stage to the processing stage.
type OCRJob struct {
	InvocationID string `json:"invocationId"`
	Bucket       string `json:"bucket"`
	ObjectName   string `json:"objectName"`
	ScratchPath  string `json:"scratchPath"`
	MimeType     string `json:"mimeType"`
}

// OCRResult describes the JSON object written by a successful OCR job.
type OCRResult struct {
	InvocationID  string `json:"invocationId"`
	Bucket        string `json:"bucket"`
	OutputObject  string `json:"outputObject"`
	OutputURI     string `json:"outputUri"`
	ProcessorName string `json:"processorName"`
	LineCount     int    `json:"lineCount"`
	PageCount     int    `json:"pageCount,omitempty"`
}

// ProcessDocumentRequest is the input for the ocr-processor HTTP function.
type ProcessDocumentRequest struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
}

// ProcessDocumentResponse is the output of the ocr-processor HTTP function.
type ProcessDocumentResponse struct {
	Status string     `json:"status"`
	Result *OCRResult `json:"result,omitempty"`
}
