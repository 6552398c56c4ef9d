// Package config loads pipeline settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Job runner modes.
const (
	RunnerInProcess = "inprocess"
	RunnerExec      = "exec"
)

// Config holds every setting shared by the pipeline's functions and binaries.
type Config struct {
	ProjectID            string `env:"PROJECT_ID,required"`
	DocumentAILocation   string `env:"DOCUMENTAI_LOCATION" envDefault:"us"`
	ProcessorDisplayName string `env:"PROCESSOR_DISPLAY_NAME" envDefault:"form-parser"`
	OutputBucket         string `env:"OUTPUT_BUCKET"`
	OutputSuffix         string `env:"OUTPUT_SUFFIX" envDefault:"ocroutput.json"`
	ScratchRoot          string `env:"SCRATCH_ROOT" envDefault:"/tmp"`
	CleanupScratch       bool   `env:"SCRATCH_CLEANUP" envDefault:"false"`
	DefaultMimeType      string `env:"DEFAULT_MIME_TYPE" envDefault:"application/pdf"`
	JobRunner            string `env:"JOB_RUNNER" envDefault:"inprocess"`
	JobCommand           string `env:"JOB_COMMAND" envDefault:"ocr-job"`
	CollectionName       string `env:"FIRESTORE_COLLECTION"`
	WorkflowID           string `env:"WORKFLOW_ID"`
	WorkflowLocation     string `env:"WORKFLOW_LOCATION" envDefault:"us-central1"`
}

// Load reads the process environment into a Config and validates it.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom is Load over an explicit variable map instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if c.DocumentAILocation != "us" && c.DocumentAILocation != "eu" {
		return fmt.Errorf("DOCUMENTAI_LOCATION must be \"us\" or \"eu\", got %q", c.DocumentAILocation)
	}
	if c.ProcessorDisplayName == "" {
		return fmt.Errorf("PROCESSOR_DISPLAY_NAME must not be empty")
	}
	if c.OutputSuffix == "" {
		return fmt.Errorf("OUTPUT_SUFFIX must not be empty")
	}
	switch c.JobRunner {
	case RunnerInProcess:
	case RunnerExec:
		if c.JobCommand == "" {
			return fmt.Errorf("JOB_COMMAND must be set when JOB_RUNNER=%s", RunnerExec)
		}
	default:
		return fmt.Errorf("JOB_RUNNER must be %q or %q, got %q", RunnerInProcess, RunnerExec, c.JobRunner)
	}
	return nil
}
