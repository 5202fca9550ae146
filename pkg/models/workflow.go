// Package models defines the domain models for the orchestration engine.
package models

import (
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Terminal reports whether the status is final. A workflow never leaves
// completed or failed.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// TaskSpec is a single step of a workflow: the agent to invoke and the
// opaque payload handed to it. Immutable once the workflow is created.
type TaskSpec struct {
	AgentID     string         `json:"agent_id"`
	TaskDetails map[string]any `json:"task_details"`
}

// TaskResult is the structured payload returned by an agent on success.
type TaskResult map[string]any

// Workflow is a named, ordered list of tasks tracked through
// pending/running/completed/failed. Results is always an in-order prefix
// of completed task outcomes; only the execution engine mutates Status
// and Results after creation.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"owner_id"`
	Tasks     []TaskSpec     `json:"tasks"`
	Status    WorkflowStatus `json:"status"`
	Results   []TaskResult   `json:"results"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
