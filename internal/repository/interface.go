package repository

import (
	"context"
	"errors"

	"agent-orchestrator/pkg/models"
)

// ErrNotFound is returned when a workflow id does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("not found")

// WorkflowStore is the narrow persistence contract for workflow records.
// Workflows are never deleted by this subsystem.
type WorkflowStore interface {
	// CreateWorkflow persists a new workflow. It must complete before the
	// workflow id is handed to the dispatcher.
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	// GetWorkflow retrieves a workflow by id.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// GetWorkflowForOwner retrieves a workflow only if it belongs to owner.
	GetWorkflowForOwner(ctx context.Context, id, ownerID string) (*models.Workflow, error)
	// ClaimWorkflow transitions pending -> running atomically. It reports
	// false when the workflow was already claimed or is past pending, so a
	// redelivered id is executed at most once.
	ClaimWorkflow(ctx context.Context, id string) (bool, error)
	// SetWorkflowStatus records a status transition.
	SetWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error
	// AppendResult appends one task result, preserving task order.
	AppendResult(ctx context.Context, id string, result models.TaskResult) error
}

// EventStore persists best-effort analytics events.
type EventStore interface {
	InsertEvent(ctx context.Context, event *models.AnalyticsEvent) error
	EventsForUser(ctx context.Context, userID string) ([]*models.AnalyticsEvent, error)
}
