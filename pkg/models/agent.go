package models

// AgentDescriptor describes a registered downstream agent service. The
// schemas are free-form metadata from the agent catalog and are not
// enforced by the orchestrator.
type AgentDescriptor struct {
	ID           string         `json:"id" yaml:"id"`
	Endpoint     string         `json:"endpoint" yaml:"endpoint"`
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description" yaml:"description"`
	Category     string         `json:"category" yaml:"category"`
	InputSchema  map[string]any `json:"input_schema,omitempty" yaml:"input_schema"`
	OutputSchema map[string]any `json:"output_schema,omitempty" yaml:"output_schema"`
}
