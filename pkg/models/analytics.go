package models

import (
	"time"
)

// Analytics event types emitted by the execution engine.
const (
	EventWorkflowDispatched = "workflow_dispatched"
	EventWorkflowStarted    = "workflow_started"
	EventWorkflowCompleted  = "workflow_completed"
	EventWorkflowFailed     = "workflow_failed"
	EventTaskCompleted      = "task_completed"
	EventTaskFailed         = "task_failed"
)

// AnalyticsEvent records a lifecycle transition or task outcome. Events
// are best-effort: losing one never affects workflow state.
type AnalyticsEvent struct {
	ID         int64     `json:"id,omitempty"`
	EventType  string    `json:"event_type"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Duration   float64   `json:"duration,omitempty"` // seconds
	UserID     string    `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
