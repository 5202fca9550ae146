package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-orchestrator/internal/executor"
	"agent-orchestrator/internal/logging"
	"agent-orchestrator/internal/registry"
	"agent-orchestrator/internal/repository"
	"agent-orchestrator/internal/services"
	"agent-orchestrator/pkg/models"
)

// checkingDispatcher asserts the workflow is already durable when the id
// reaches the dispatcher, the create-then-enqueue ordering the status
// endpoint depends on.
type checkingDispatcher struct {
	t     *testing.T
	store repository.WorkflowStore
	ids   []string
	err   error
}

func (d *checkingDispatcher) Submit(id string) error {
	if d.err != nil {
		return d.err
	}
	wf, err := d.store.GetWorkflow(context.Background(), id)
	require.NoError(d.t, err, "workflow must be persisted before dispatch")
	require.Equal(d.t, models.WorkflowPending, wf.Status)
	d.ids = append(d.ids, id)
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Event(context.Context, models.AnalyticsEvent) {}

func newOrchestrator(t *testing.T, dispatcher services.Dispatcher) (*services.Orchestrator, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	return services.NewOrchestrator(store, registry.New(logging.NewLogger()),
		dispatcher, nopRecorder{}, logging.NewLogger()), store
}

func TestCreateWorkflowPersistsBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	dispatcher := &checkingDispatcher{t: t, store: store}
	svc := services.NewOrchestrator(store, registry.New(logging.NewLogger()),
		dispatcher, nopRecorder{}, logging.NewLogger())

	wf, err := svc.CreateWorkflow(ctx, "alice@example.com", "wf",
		[]models.TaskSpec{{AgentID: "A", TaskDetails: map[string]any{"x": 1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{wf.ID}, dispatcher.ids)

	got, err := store.GetWorkflowForOwner(ctx, wf.ID, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowPending, got.Status)
	assert.Empty(t, got.Results)
}

func TestCreateWorkflowValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newOrchestrator(t, &checkingDispatcher{t: t})

	_, err := svc.CreateWorkflow(ctx, "alice@example.com", "",
		[]models.TaskSpec{{AgentID: "A"}})
	assert.ErrorIs(t, err, services.ErrInvalidWorkflow)

	_, err = svc.CreateWorkflow(ctx, "alice@example.com", "wf", nil)
	assert.ErrorIs(t, err, services.ErrInvalidWorkflow)
}

func TestCreateWorkflowSurfacesQueueBackpressure(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	dispatcher := &checkingDispatcher{t: t, store: store, err: executor.ErrQueueFull}
	svc := services.NewOrchestrator(store, registry.New(logging.NewLogger()),
		dispatcher, nopRecorder{}, logging.NewLogger())

	_, err := svc.CreateWorkflow(ctx, "alice@example.com", "wf",
		[]models.TaskSpec{{AgentID: "A"}})
	assert.ErrorIs(t, err, executor.ErrQueueFull)
}

func TestGetWorkflowScopedToOwner(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	dispatcher := &checkingDispatcher{t: t, store: store}
	svc := services.NewOrchestrator(store, registry.New(logging.NewLogger()),
		dispatcher, nopRecorder{}, logging.NewLogger())

	wf, err := svc.CreateWorkflow(ctx, "alice@example.com", "wf",
		[]models.TaskSpec{{AgentID: "A"}})
	require.NoError(t, err)

	_, err = svc.GetWorkflow(ctx, "mallory@example.com", wf.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := svc.GetWorkflow(ctx, "alice@example.com", wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, got.ID)
}
