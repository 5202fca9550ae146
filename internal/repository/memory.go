package repository

import (
	"context"
	"sync"
	"time"

	"agent-orchestrator/pkg/models"
)

// MemoryStore is an in-process implementation of WorkflowStore and
// EventStore used when no database is configured (dev mode) and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow
	events    []*models.AnalyticsEvent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workflows: make(map[string]*models.Workflow)}
}

// CreateWorkflow persists a new workflow.
func (s *MemoryStore) CreateWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[workflow.ID] = copyWorkflow(workflow)
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (s *MemoryStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyWorkflow(wf), nil
}

// GetWorkflowForOwner retrieves a workflow only if it belongs to owner.
func (s *MemoryStore) GetWorkflowForOwner(_ context.Context, id, ownerID string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok || wf.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return copyWorkflow(wf), nil
}

// ClaimWorkflow transitions pending -> running atomically.
func (s *MemoryStore) ClaimWorkflow(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok || wf.Status != models.WorkflowPending {
		return false, nil
	}
	wf.Status = models.WorkflowRunning
	wf.UpdatedAt = time.Now()
	return true, nil
}

// SetWorkflowStatus records a status transition.
func (s *MemoryStore) SetWorkflowStatus(_ context.Context, id string, status models.WorkflowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	wf.Status = status
	wf.UpdatedAt = time.Now()
	return nil
}

// AppendResult appends one task result.
func (s *MemoryStore) AppendResult(_ context.Context, id string, result models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	wf.Results = append(wf.Results, result)
	wf.UpdatedAt = time.Now()
	return nil
}

// InsertEvent records an analytics event.
func (s *MemoryStore) InsertEvent(_ context.Context, event *models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := *event
	ev.ID = int64(len(s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	s.events = append(s.events, &ev)
	return nil
}

// EventsForUser retrieves a user's analytics events, newest first.
func (s *MemoryStore) EventsForUser(_ context.Context, userID string) ([]*models.AnalyticsEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*models.AnalyticsEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID == userID {
			ev := *s.events[i]
			events = append(events, &ev)
		}
	}
	return events, nil
}

// copyWorkflow guards callers against aliasing the stored record.
func copyWorkflow(wf *models.Workflow) *models.Workflow {
	out := *wf
	out.Tasks = append([]models.TaskSpec(nil), wf.Tasks...)
	out.Results = append([]models.TaskResult(nil), wf.Results...)
	return &out
}
