// Package analytics records workflow lifecycle events as a best-effort
// side effect. Losing an event never affects workflow state.
package analytics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"agent-orchestrator/internal/repository"
	"agent-orchestrator/pkg/models"
)

// Logger defines the logging interface compatible with the application
// logger.
type Logger interface {
	Error(msg string, args ...any)
}

// Recorder persists analytics events and maintains workflow counters.
type Recorder struct {
	store  repository.EventStore
	logger Logger

	workflowEvents metric.Int64Counter
	taskEvents     metric.Int64Counter
}

// NewRecorder creates a Recorder over the given event store.
func NewRecorder(store repository.EventStore, logger Logger) *Recorder {
	meter := otel.Meter("agent-orchestrator/analytics")

	workflowEvents, err := meter.Int64Counter("orchestrator.workflow.events",
		metric.WithDescription("Workflow lifecycle events by type"))
	if err != nil {
		logger.Error("failed to create workflow event counter", "error", err)
	}
	taskEvents, err := meter.Int64Counter("orchestrator.task.events",
		metric.WithDescription("Task outcomes by type and agent"))
	if err != nil {
		logger.Error("failed to create task event counter", "error", err)
	}

	return &Recorder{
		store:          store,
		logger:         logger,
		workflowEvents: workflowEvents,
		taskEvents:     taskEvents,
	}
}

// Event records one analytics event. Errors are logged and swallowed.
func (r *Recorder) Event(ctx context.Context, event models.AnalyticsEvent) {
	switch event.EventType {
	case models.EventTaskCompleted, models.EventTaskFailed:
		if r.taskEvents != nil {
			r.taskEvents.Add(ctx, 1, metric.WithAttributes(
				attribute.String("event_type", event.EventType),
				attribute.String("agent_id", event.AgentID),
			))
		}
	default:
		if r.workflowEvents != nil {
			r.workflowEvents.Add(ctx, 1, metric.WithAttributes(
				attribute.String("event_type", event.EventType),
			))
		}
	}

	if r.store == nil {
		return
	}
	if err := r.store.InsertEvent(ctx, &event); err != nil {
		r.logger.Error("failed to record analytics event", "event_type", event.EventType, "error", err)
	}
}

// EventsForUser retrieves the caller's analytics events.
func (r *Recorder) EventsForUser(ctx context.Context, userID string) ([]*models.AnalyticsEvent, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.EventsForUser(ctx, userID)
}
