package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"agent-orchestrator/internal/config"
	"agent-orchestrator/internal/logging"
	"agent-orchestrator/pkg/models"
)

// seedAgents are the starter definitions written into the definitions
// directory so a fresh checkout has something to orchestrate.
var seedAgents = []models.AgentDescriptor{
	{
		ID:          "seo_agent_001",
		Endpoint:    "http://seo-agent:5001",
		Name:        "SEO Content Optimization Agent",
		Description: "Optimizes content for search engines.",
		Category:    "Marketing",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
		},
		OutputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"optimized_text": map[string]any{"type": "string"}},
		},
	},
	{
		ID:          "lead_scoring_agent_001",
		Endpoint:    "http://lead-scoring-agent:5002",
		Name:        "Lead Scoring Agent",
		Description: "Scores leads based on provided data.",
		Category:    "Lead Generation",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"lead_data": map[string]any{"type": "object"}},
		},
		OutputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"score": map[string]any{"type": "integer"}},
		},
	},
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write example agent definitions into the definitions directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed()
		},
	}
}

func seed() error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dir := cfg.Agents.DefinitionsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create definitions dir: %w", err)
	}

	for _, desc := range seedAgents {
		path := filepath.Join(dir, desc.ID+".yaml")
		if _, err := os.Stat(path); err == nil {
			logger.Info("definition already exists, skipping", "file", path)
			continue
		}

		data, err := yaml.Marshal(desc)
		if err != nil {
			return fmt.Errorf("failed to marshal definition %s: %w", desc.ID, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write definition %s: %w", path, err)
		}
		logger.Info("definition written", "file", path)
	}

	return nil
}
