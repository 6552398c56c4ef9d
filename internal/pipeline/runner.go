// Package pipeline hands an OCR job from the ingest stage to the processing stage.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Lllllllleong/documentocrflow/internal/models"
)

// Environment keys carrying a job to a child process.
const (
	EnvObjectName   = "FILEENV"
	EnvBucket       = "OCR_BUCKET"
	EnvScratchPath  = "OCR_SCRATCH_PATH"
	EnvMimeType     = "OCR_MIME_TYPE"
	EnvInvocationID = "OCR_INVOCATION_ID"
)

// JobRunner runs the processing stage for one job and waits for it to finish.
type JobRunner interface {
	Run(ctx context.Context, job models.OCRJob) (*models.OCRResult, error)
}

// RunnerFunc adapts a function to JobRunner.
type RunnerFunc func(ctx context.Context, job models.OCRJob) (*models.OCRResult, error)

func (f RunnerFunc) Run(ctx context.Context, job models.OCRJob) (*models.OCRResult, error) {
	return f(ctx, job)
}

// JobExitError is returned when the job process exits unsuccessfully.
type JobExitError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *JobExitError) Error() string {
	return fmt.Sprintf("ocr job exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *JobExitError) Unwrap() error {
	return e.Err
}

// ExecRunner runs the job as a separate process. The job is passed only in
// the child's environment; the parent's environment is left untouched.
type ExecRunner struct {
	Path string
	Args []string
	// Env is appended to the parent environment before the job variables.
	Env []string
}

// Run starts the job process, waits for it and decodes the OCRResult it prints on stdout.
func (r *ExecRunner) Run(ctx context.Context, job models.OCRJob) (*models.OCRResult, error) {
	cmd := exec.CommandContext(ctx, r.Path, r.Args...)
	cmd.Env = append(append(os.Environ(), r.Env...), EncodeJobEnv(job)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("Starting OCR job process.", "command", r.Path, "invocationId", job.InvocationID)
	if err := cmd.Run(); err != nil {
		// Job logs are JSON lines on stderr; forward them so they reach the function's log stream.
		_, _ = os.Stderr.Write(stderr.Bytes())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &JobExitError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
		}
		return nil, fmt.Errorf("failed to run ocr job %s: %w", r.Path, err)
	}
	_, _ = os.Stderr.Write(stderr.Bytes())

	var result models.OCRResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		return nil, fmt.Errorf("failed to decode ocr job result: %w", err)
	}
	return &result, nil
}

// EncodeJobEnv renders a job as KEY=value pairs for a child process.
func EncodeJobEnv(job models.OCRJob) []string {
	return []string{
		EnvObjectName + "=" + job.ObjectName,
		EnvBucket + "=" + job.Bucket,
		EnvScratchPath + "=" + job.ScratchPath,
		EnvMimeType + "=" + job.MimeType,
		EnvInvocationID + "=" + job.InvocationID,
	}
}

// DecodeJobEnv rebuilds a job from environment lookups. When no scratch path is
// given the file is expected at scratchRoot/FILEENV.
func DecodeJobEnv(lookup func(string) (string, bool), scratchRoot string) (models.OCRJob, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	job := models.OCRJob{
		InvocationID: get(EnvInvocationID),
		Bucket:       get(EnvBucket),
		ObjectName:   get(EnvObjectName),
		ScratchPath:  get(EnvScratchPath),
		MimeType:     get(EnvMimeType),
	}
	if job.ObjectName == "" {
		return models.OCRJob{}, fmt.Errorf("%s environment variable must be set", EnvObjectName)
	}
	if job.Bucket == "" {
		return models.OCRJob{}, fmt.Errorf("%s environment variable must be set", EnvBucket)
	}
	if job.ScratchPath == "" {
		job.ScratchPath = filepath.Join(scratchRoot, job.ObjectName)
	}
	return job, nil
}
