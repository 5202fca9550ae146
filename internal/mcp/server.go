// Package mcp exposes the orchestrator's operations as MCP tools so
// LLM-driven clients can create and inspect workflows.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"agent-orchestrator/internal/auth"
	"agent-orchestrator/internal/services"
	"agent-orchestrator/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	svc       *services.Orchestrator
}

func NewServer(svc *services.Orchestrator) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Agent Orchestrator",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		svc: svc,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_workflow",
			mcp.WithDescription("Create a workflow and dispatch it for asynchronous execution"),
			mcp.WithString("name", mcp.Required(), mcp.Description("The workflow name")),
			mcp.WithString("tasks", mcp.Required(), mcp.Description(`JSON array of tasks, e.g. [{"agent_id":"seo_agent_001","task_details":{"url":"..."}}]`)),
		),
		s.handleCreateWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get the status and accumulated results of a workflow"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The workflow id")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_agents",
			mcp.WithDescription("List all registered agents"),
		),
		s.handleListAgents,
	)
}

// owner resolves the principal for MCP calls. The transport carries no
// per-request identity, so calls fall back to the dev user.
func owner(ctx context.Context) string {
	if userID, ok := auth.UserID(ctx); ok {
		return userID
	}
	return auth.DevUserID
}

func (s *Server) handleCreateWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}
	tasksJSON, ok := args["tasks"].(string)
	if !ok || tasksJSON == "" {
		return mcp.NewToolResultError("Missing required parameter: tasks"), nil
	}

	var tasks []models.TaskSpec
	if err := json.Unmarshal([]byte(tasksJSON), &tasks); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid tasks payload: %v", err)), nil
	}

	wf, err := s.svc.CreateWorkflow(ctx, owner(ctx), name, tasks)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(map[string]string{
		"workflow_id": wf.ID,
		"status":      string(wf.Status),
	})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	wf, err := s.svc.GetWorkflow(ctx, owner(ctx), id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(wf)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListAgents(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, _ := json.Marshal(s.svc.ListAgents())
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
