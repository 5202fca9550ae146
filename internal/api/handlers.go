// Package api contains the HTTP handlers for the orchestration engine.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"agent-orchestrator/internal/analytics"
	"agent-orchestrator/internal/auth"
	"agent-orchestrator/internal/executor"
	"agent-orchestrator/internal/repository"
	"agent-orchestrator/internal/services"
	"agent-orchestrator/pkg/models"
)

// Server holds the dependencies for the API handlers.
type Server struct {
	svc    *services.Orchestrator
	events *analytics.Recorder
}

// NewServer creates a new Server.
func NewServer(svc *services.Orchestrator, events *analytics.Recorder) *Server {
	return &Server{svc: svc, events: events}
}

// CreateWorkflowRequest is the body of POST /api/v1/workflows.
type CreateWorkflowRequest struct {
	Name  string            `json:"name"`
	Tasks []models.TaskSpec `json:"tasks"`
}

// CreateWorkflowResponse is returned with the 202 accepted status.
type CreateWorkflowResponse struct {
	Message    string `json:"message"`
	WorkflowID string `json:"workflow_id"`
	StatusURL  string `json:"status_url"`
}

// WorkflowStatusResponse is the body of GET /api/v1/workflows/:id.
type WorkflowStatusResponse struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Status  models.WorkflowStatus `json:"status"`
	Results []models.TaskResult   `json:"results"`
}

// CreateWorkflow creates a workflow and dispatches it for execution.
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, ok := auth.UserID(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller identity not found")
	}

	var req CreateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	wf, err := s.svc.CreateWorkflow(ctx, ownerID, req.Name, req.Tasks)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidWorkflow):
			return echo.NewHTTPError(http.StatusBadRequest, "Missing 'name' or 'tasks' in request body")
		case errors.Is(err, executor.ErrQueueFull):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Execution queue is full, try again later")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create workflow: "+err.Error())
		}
	}

	return c.JSON(http.StatusAccepted, CreateWorkflowResponse{
		Message:    "Workflow created and dispatched for execution.",
		WorkflowID: wf.ID,
		StatusURL:  "/api/v1/workflows/" + wf.ID,
	})
}

// GetWorkflow returns the status and accumulated results of a workflow.
// A workflow owned by another user is reported as not found.
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	ownerID, ok := auth.UserID(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller identity not found")
	}

	wf, err := s.svc.GetWorkflow(ctx, ownerID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, WorkflowStatusResponse{
		ID:      wf.ID,
		Name:    wf.Name,
		Status:  wf.Status,
		Results: wf.Results,
	})
}

// ListAgents returns all registered agents with their ids attached.
// (GET /api/v1/agents)
func (s *Server) ListAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"agents": s.svc.ListAgents()})
}

// ListEvents returns the caller's analytics events, newest first.
// (GET /api/v1/analytics/events)
func (s *Server) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := auth.UserID(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller identity not found")
	}

	events, err := s.events.EventsForUser(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// Health returns basic health status (always 200 OK).
// (GET /healthz)
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "agent-orchestrator",
		Version:   "1.0.0",
	})
}
