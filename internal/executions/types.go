// Package executions records workflow runs and hands them to the execution
// engine through the event bus.
package executions

import (
	"encoding/json"
	"time"
)

// Mode is what triggered an execution.
type Mode string

const (
	ModeWebhook  Mode = "WEBHOOK"
	ModeSchedule Mode = "SCHEDULE"
	ModeManual   Mode = "MANUAL"
)

// Status is where an execution is in its lifecycle.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// EventExecute is the event published for every new execution.
const EventExecute = "workflow/execute"

// ExecutePayload is the body of a workflow/execute event.
type ExecutePayload struct {
	WorkflowID  string          `json:"workflowId"`
	ExecutionID string          `json:"executionId"`
	TriggerData json.RawMessage `json:"triggerData"`
}

// Execution is one run of a workflow.
type Execution struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflowId"`
	Mode         Mode            `json:"mode"`
	Status       Status          `json:"status"`
	InputData    json.RawMessage `json:"inputData"`
	Error        string          `json:"error,omitempty"`
	DispatchedAt *time.Time      `json:"dispatchedAt,omitempty"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
