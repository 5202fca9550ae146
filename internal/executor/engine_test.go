package executor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-orchestrator/internal/agent"
	"agent-orchestrator/internal/executor"
	"agent-orchestrator/internal/logging"
	"agent-orchestrator/internal/registry"
	"agent-orchestrator/internal/repository"
	"agent-orchestrator/pkg/models"
)

// eventSink captures analytics events for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent
}

func (s *eventSink) Event(_ context.Context, event models.AnalyticsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

// jsonAgent is an httptest agent answering POST /execute with body.
func jsonAgent(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/execute", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func newWorkflow(tasks ...models.TaskSpec) *models.Workflow {
	now := time.Now()
	return &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "test workflow",
		OwnerID:   "owner@example.com",
		Tasks:     tasks,
		Status:    models.WorkflowPending,
		Results:   []models.TaskResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newEngine(store repository.WorkflowStore, agents *registry.Registry,
	sink *eventSink, taskTimeout time.Duration) *executor.Engine {
	return executor.NewEngine(store, agents, agent.NewHTTPClient(), sink, taskTimeout, logging.NewLogger())
}

func TestEngineCompletesWorkflowInTaskOrder(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewLogger()

	agentA := jsonAgent(t, http.StatusOK, `{"ok": true}`)
	defer agentA.Close()
	agentB := jsonAgent(t, http.StatusOK, `{"score": 42}`)
	defer agentB.Close()

	agents := registry.New(logger)
	require.NoError(t, agents.Register(models.AgentDescriptor{ID: "A", Endpoint: agentA.URL}))
	require.NoError(t, agents.Register(models.AgentDescriptor{ID: "B", Endpoint: agentB.URL}))

	store := repository.NewMemoryStore()
	wf := newWorkflow(
		models.TaskSpec{AgentID: "A", TaskDetails: map[string]any{"x": 1}},
		models.TaskSpec{AgentID: "B", TaskDetails: map[string]any{"y": 2}},
	)
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	sink := &eventSink{}
	newEngine(store, agents, sink, time.Minute).ExecuteWorkflow(ctx, wf.ID)

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowCompleted, got.Status)
	require.Len(t, got.Results, 2)
	assert.Equal(t, true, got.Results[0]["ok"])
	assert.Equal(t, float64(42), got.Results[1]["score"])

	assert.Equal(t, []string{
		models.EventWorkflowStarted,
		models.EventTaskCompleted,
		models.EventTaskCompleted,
		models.EventWorkflowCompleted,
	}, sink.types())
}

func TestEngineFailsOnUnknownAgent(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewLogger()

	agentA := jsonAgent(t, http.StatusOK, `{"ok": true}`)
	defer agentA.Close()

	agents := registry.New(logger)
	require.NoError(t, agents.Register(models.AgentDescriptor{ID: "A", Endpoint: agentA.URL}))

	store := repository.NewMemoryStore()
	wf := newWorkflow(
		models.TaskSpec{AgentID: "A", TaskDetails: map[string]any{"x": 1}},
		models.TaskSpec{AgentID: "B", TaskDetails: map[string]any{"y": 2}},
	)
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	sink := &eventSink{}
	newEngine(store, agents, sink, time.Minute).ExecuteWorkflow(ctx, wf.ID)

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowFailed, got.Status)
	// The result of the task before the failure is kept, nothing after it.
	require.Len(t, got.Results, 1)
	assert.Equal(t, true, got.Results[0]["ok"])
	assert.Contains(t, sink.types(), models.EventWorkflowFailed)
}

func TestEngineFailsOnAgentError(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewLogger()

	broken := jsonAgent(t, http.StatusInternalServerError, `{"error": "boom"}`)
	defer broken.Close()

	agents := registry.New(logger)
	require.NoError(t, agents.Register(models.AgentDescriptor{ID: "A", Endpoint: broken.URL}))

	store := repository.NewMemoryStore()
	wf := newWorkflow(models.TaskSpec{AgentID: "A", TaskDetails: map[string]any{"x": 1}})
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	sink := &eventSink{}
	newEngine(store, agents, sink, time.Minute).ExecuteWorkflow(ctx, wf.ID)

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowFailed, got.Status)
	assert.Empty(t, got.Results)
	assert.Contains(t, sink.types(), models.EventTaskFailed)
}

func TestEngineFailsOnTaskTimeout(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewLogger()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer slow.Close()

	agents := registry.New(logger)
	require.NoError(t, agents.Register(models.AgentDescriptor{ID: "A", Endpoint: slow.URL}))

	store := repository.NewMemoryStore()
	wf := newWorkflow(models.TaskSpec{AgentID: "A", TaskDetails: map[string]any{"x": 1}})
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	newEngine(store, agents, &eventSink{}, 50*time.Millisecond).ExecuteWorkflow(ctx, wf.ID)

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowFailed, got.Status)
	assert.Empty(t, got.Results)
}

func TestEngineExecutesEachWorkflowOnce(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewLogger()

	var calls int
	var mu sync.Mutex
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Write([]byte(`{"ok": true}`))
	}))
	defer counting.Close()

	agents := registry.New(logger)
	require.NoError(t, agents.Register(models.AgentDescriptor{ID: "A", Endpoint: counting.URL}))

	store := repository.NewMemoryStore()
	wf := newWorkflow(models.TaskSpec{AgentID: "A", TaskDetails: map[string]any{"x": 1}})
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	engine := newEngine(store, agents, &eventSink{}, time.Minute)
	engine.ExecuteWorkflow(ctx, wf.ID)
	// A redelivered id finds the workflow past pending and is skipped.
	engine.ExecuteWorkflow(ctx, wf.ID)

	got, err := store.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowCompleted, got.Status)
	assert.Len(t, got.Results, 1)
	assert.Equal(t, 1, calls)
}
