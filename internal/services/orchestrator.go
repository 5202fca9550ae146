// Package services wires the orchestration operations used by both the
// REST API and the MCP tool surface.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agent-orchestrator/internal/repository"
	"agent-orchestrator/pkg/models"
)

// ErrInvalidWorkflow is returned when a create request is missing its
// name or task list.
var ErrInvalidWorkflow = errors.New("workflow name and tasks are required")

// Dispatcher hands a persisted workflow id to the background execution
// context.
type Dispatcher interface {
	Submit(id string) error
}

// AgentDirectory lists registered agents for discovery.
type AgentDirectory interface {
	List() []models.AgentDescriptor
}

// EventRecorder receives best-effort lifecycle events.
type EventRecorder interface {
	Event(ctx context.Context, event models.AnalyticsEvent)
}

// Logger defines the logging interface compatible with the application
// logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Orchestrator coordinates workflow creation, dispatch and reads.
type Orchestrator struct {
	store      repository.WorkflowStore
	agents     AgentDirectory
	dispatcher Dispatcher
	events     EventRecorder
	logger     Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store repository.WorkflowStore, agents AgentDirectory,
	dispatcher Dispatcher, events EventRecorder, logger Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		agents:     agents,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
	}
}

// CreateWorkflow persists a new pending workflow and enqueues it for
// asynchronous execution. The record is durable before the dispatcher is
// signaled, so the returned id is always resolvable immediately.
func (s *Orchestrator) CreateWorkflow(ctx context.Context, ownerID, name string,
	tasks []models.TaskSpec) (*models.Workflow, error) {
	if name == "" || len(tasks) == 0 {
		return nil, ErrInvalidWorkflow
	}

	now := time.Now()
	wf := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		Tasks:     tasks,
		Status:    models.WorkflowPending,
		Results:   []models.TaskResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to persist workflow: %w", err)
	}

	if err := s.dispatcher.Submit(wf.ID); err != nil {
		// The workflow stays pending; surface the backpressure to the
		// caller instead of dropping the id.
		return nil, fmt.Errorf("failed to dispatch workflow %s: %w", wf.ID, err)
	}

	s.events.Event(ctx, models.AnalyticsEvent{
		EventType:  models.EventWorkflowDispatched,
		WorkflowID: wf.ID,
		UserID:     ownerID,
	})
	s.logger.Info("workflow created and dispatched", "workflow_id", wf.ID, "name", name, "tasks", len(tasks))
	return wf, nil
}

// GetWorkflow retrieves a workflow scoped to its owner.
func (s *Orchestrator) GetWorkflow(ctx context.Context, ownerID, id string) (*models.Workflow, error) {
	return s.store.GetWorkflowForOwner(ctx, id, ownerID)
}

// ListAgents returns all registered agent descriptors.
func (s *Orchestrator) ListAgents() []models.AgentDescriptor {
	return s.agents.List()
}
