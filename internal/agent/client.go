// Package agent invokes downstream agent services over HTTP. Each agent
// is an opaque endpoint that accepts a task payload and returns a result
// payload or an error.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"agent-orchestrator/pkg/models"
)

// Invoker executes one task against an agent endpoint.
type Invoker interface {
	// Invoke POSTs the opaque task payload to the agent. A 2xx response
	// body is the task result; any other outcome is a task failure.
	Invoke(ctx context.Context, endpoint string, payload map[string]any) (models.TaskResult, error)
}

// HTTPClient is the HTTP implementation of Invoker.
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTPClient. Per-task deadlines come from
// the caller's context, so the underlying client carries no timeout of
// its own.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{httpClient: &http.Client{}}
}

// Invoke executes one task against the agent's execute endpoint.
func (c *HTTPClient) Invoke(ctx context.Context, endpoint string, payload map[string]any) (models.TaskResult, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/execute", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	var result models.TaskResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}
	return result, nil
}
