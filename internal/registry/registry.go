// Package registry maintains the mapping from agent id to reachable
// endpoint. Definitions are loaded from a directory of YAML files at
// startup and may be re-registered at runtime.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"agent-orchestrator/pkg/models"
)

// ErrUnknownAgent is returned when an agent id is not registered. The
// execution engine treats it as a per-task abort reason, not a server
// error.
var ErrUnknownAgent = errors.New("unknown agent")

// Logger defines the logging interface compatible with the application
// logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Registry holds the registered agent descriptors. Reads and writes may
// interleave; last-committed-value visibility is all callers need.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]models.AgentDescriptor
	order  []string
	logger Logger
}

// New creates an empty Registry.
func New(logger Logger) *Registry {
	return &Registry{
		agents: make(map[string]models.AgentDescriptor),
		logger: logger,
	}
}

// Register inserts or overwrites a descriptor. Overwriting is allowed and
// logged as a warning, never rejected.
func (r *Registry) Register(desc models.AgentDescriptor) error {
	if desc.ID == "" || desc.Endpoint == "" {
		return fmt.Errorf("agent definition missing id or endpoint")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[desc.ID]; exists {
		r.logger.Warn("agent already registered, overwriting", "agent_id", desc.ID)
	} else {
		r.order = append(r.order, desc.ID)
	}
	r.agents[desc.ID] = desc
	r.logger.Info("agent registered", "agent_id", desc.ID, "endpoint", desc.Endpoint)
	return nil
}

// Resolve returns the endpoint for an agent id, or ErrUnknownAgent.
func (r *Registry) Resolve(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.agents[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return desc.Endpoint, nil
}

// List returns all registered descriptors in registration order. Used for
// discovery only, never for execution.
func (r *Registry) List() []models.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// LoadDir reads every YAML definition in dir and registers it. A malformed
// definition is logged and skipped; it does not abort loading the rest.
// Only an unreadable directory is an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read agent definitions dir %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.loadFile(path); err != nil {
			r.logger.Warn("skipping malformed agent definition", "file", path, "error", err)
			continue
		}
		loaded++
	}

	r.logger.Info("agent definitions loaded", "dir", dir, "count", loaded)
	return nil
}

func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var desc models.AgentDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return err
	}
	return r.Register(desc)
}

func isDefinitionFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
