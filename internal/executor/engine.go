package executor

import (
	"context"
	"time"

	"agent-orchestrator/internal/agent"
	"agent-orchestrator/internal/repository"
	"agent-orchestrator/pkg/models"
)

// AgentResolver maps an agent id to its endpoint.
type AgentResolver interface {
	Resolve(id string) (string, error)
}

// EventRecorder receives best-effort lifecycle events.
type EventRecorder interface {
	Event(ctx context.Context, event models.AnalyticsEvent)
}

// Engine executes workflows sequentially: one worker owns a workflow for
// its whole run, tasks never interleave, and the first failure aborts the
// rest with no retry and no rollback of persisted results.
type Engine struct {
	store       repository.WorkflowStore
	agents      AgentResolver
	invoker     agent.Invoker
	events      EventRecorder
	taskTimeout time.Duration
	logger      Logger
}

// NewEngine creates an Engine.
func NewEngine(store repository.WorkflowStore, agents AgentResolver, invoker agent.Invoker,
	events EventRecorder, taskTimeout time.Duration, logger Logger) *Engine {
	return &Engine{
		store:       store,
		agents:      agents,
		invoker:     invoker,
		events:      events,
		taskTimeout: taskTimeout,
		logger:      logger,
	}
}

// ExecuteWorkflow runs one execution attempt for a workflow id. The
// pending -> running claim is a compare-and-swap, so a redelivered or
// duplicated id is executed at most once.
func (e *Engine) ExecuteWorkflow(ctx context.Context, id string) {
	claimed, err := e.store.ClaimWorkflow(ctx, id)
	if err != nil {
		e.logger.Error("failed to claim workflow", "workflow_id", id, "error", err)
		return
	}
	if !claimed {
		e.logger.Warn("workflow not claimable, skipping", "workflow_id", id)
		return
	}

	wf, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		e.logger.Error("failed to load claimed workflow", "workflow_id", id, "error", err)
		return
	}

	e.logger.Info("executing workflow", "workflow_id", id, "name", wf.Name, "tasks", len(wf.Tasks))
	started := time.Now()
	e.events.Event(ctx, models.AnalyticsEvent{
		EventType:  models.EventWorkflowStarted,
		WorkflowID: id,
		UserID:     wf.OwnerID,
	})

	for i, task := range wf.Tasks {
		endpoint, err := e.agents.Resolve(task.AgentID)
		if err != nil {
			e.logger.Error("task aborted workflow", "workflow_id", id, "task", i+1,
				"agent_id", task.AgentID, "error", err)
			e.fail(ctx, wf, task.AgentID, started)
			return
		}

		taskStarted := time.Now()
		result, err := e.invokeTask(ctx, endpoint, task)
		if err != nil {
			e.logger.Error("task failed, aborting workflow", "workflow_id", id, "task", i+1,
				"agent_id", task.AgentID, "error", err)
			e.events.Event(ctx, models.AnalyticsEvent{
				EventType:  models.EventTaskFailed,
				WorkflowID: id,
				AgentID:    task.AgentID,
				Duration:   time.Since(taskStarted).Seconds(),
				UserID:     wf.OwnerID,
			})
			e.fail(ctx, wf, task.AgentID, started)
			return
		}

		// Persist each result as it lands so a concurrent status read
		// always observes a consistent prefix.
		if err := e.store.AppendResult(ctx, id, result); err != nil {
			e.logger.Error("failed to persist task result, aborting workflow",
				"workflow_id", id, "task", i+1, "error", err)
			e.fail(ctx, wf, task.AgentID, started)
			return
		}

		e.events.Event(ctx, models.AnalyticsEvent{
			EventType:  models.EventTaskCompleted,
			WorkflowID: id,
			AgentID:    task.AgentID,
			Duration:   time.Since(taskStarted).Seconds(),
			UserID:     wf.OwnerID,
		})
		e.logger.Info("task completed", "workflow_id", id, "task", i+1, "agent_id", task.AgentID)
	}

	if err := e.store.SetWorkflowStatus(ctx, id, models.WorkflowCompleted); err != nil {
		e.logger.Error("failed to mark workflow completed", "workflow_id", id, "error", err)
		return
	}
	e.events.Event(ctx, models.AnalyticsEvent{
		EventType:  models.EventWorkflowCompleted,
		WorkflowID: id,
		Status:     string(models.WorkflowCompleted),
		Duration:   time.Since(started).Seconds(),
		UserID:     wf.OwnerID,
	})
	e.logger.Info("workflow completed", "workflow_id", id, "name", wf.Name)
}

func (e *Engine) invokeTask(ctx context.Context, endpoint string, task models.TaskSpec) (models.TaskResult, error) {
	taskCtx, cancel := context.WithTimeout(ctx, e.taskTimeout)
	defer cancel()
	return e.invoker.Invoke(taskCtx, endpoint, task.TaskDetails)
}

// fail moves the workflow to its terminal failed state. Already-persisted
// results are kept; tasks after the failing one are never attempted.
func (e *Engine) fail(ctx context.Context, wf *models.Workflow, agentID string, started time.Time) {
	if err := e.store.SetWorkflowStatus(ctx, wf.ID, models.WorkflowFailed); err != nil {
		e.logger.Error("failed to mark workflow failed", "workflow_id", wf.ID, "error", err)
	}
	e.events.Event(ctx, models.AnalyticsEvent{
		EventType:  models.EventWorkflowFailed,
		WorkflowID: wf.ID,
		AgentID:    agentID,
		Status:     string(models.WorkflowFailed),
		Duration:   time.Since(started).Seconds(),
		UserID:     wf.OwnerID,
	})
}
