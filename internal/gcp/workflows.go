package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowLauncher starts executions of a single Cloud Workflow.
type WorkflowLauncher struct {
	client   *executions.Client
	workflow string
}

// NewWorkflowLauncher creates an executions client for the given workflow.
func NewWorkflowLauncher(ctx context.Context, projectID, location, workflowID string) (*WorkflowLauncher, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("NewWorkflowLauncher: projectID, location and workflowID cannot be empty")
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &WorkflowLauncher{
		client:   client,
		workflow: WorkflowName(projectID, location, workflowID),
	}, nil
}

// WorkflowName returns the full resource name of a workflow.
func WorkflowName(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

// Trigger starts a workflow execution with payload as its JSON argument and
// returns the execution name.
func (l *WorkflowLauncher) Trigger(ctx context.Context, payload interface{}) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	exec, err := l.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent: l.workflow,
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}

// Close releases the underlying client.
func (l *WorkflowLauncher) Close() error {
	return l.client.Close()
}
