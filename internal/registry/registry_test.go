package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-orchestrator/internal/logging"
	"agent-orchestrator/pkg/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDirSkipsMalformedDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "seo.yaml", `
id: seo_agent_001
endpoint: http://seo-agent:5001
name: SEO Content Optimization Agent
category: Marketing
`)
	writeFile(t, dir, "broken.yaml", "id: [not: valid yaml\n")
	writeFile(t, dir, "incomplete.yaml", "name: missing id and endpoint\n")
	writeFile(t, dir, "notes.txt", "not a definition\n")

	r := New(logging.NewLogger())
	require.NoError(t, r.LoadDir(dir), "malformed definitions must not abort loading")

	assert.Len(t, r.List(), 1)
	endpoint, err := r.Resolve("seo_agent_001")
	require.NoError(t, err)
	assert.Equal(t, "http://seo-agent:5001", endpoint)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	r := New(logging.NewLogger())
	err := r.LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestRegisterOverwrites(t *testing.T) {
	r := New(logging.NewLogger())
	require.NoError(t, r.Register(models.AgentDescriptor{ID: "a", Endpoint: "http://old:1"}))
	require.NoError(t, r.Register(models.AgentDescriptor{ID: "a", Endpoint: "http://new:2"}))

	endpoint, err := r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, "http://new:2", endpoint, "re-registration is last write wins")
	assert.Len(t, r.List(), 1)
}

func TestRegisterRejectsIncompleteDescriptor(t *testing.T) {
	r := New(logging.NewLogger())
	assert.Error(t, r.Register(models.AgentDescriptor{ID: "a"}))
	assert.Error(t, r.Register(models.AgentDescriptor{Endpoint: "http://x:1"}))
}

func TestResolveUnknownAgent(t *testing.T) {
	r := New(logging.NewLogger())
	_, err := r.Resolve("ghost")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := New(logging.NewLogger())
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(models.AgentDescriptor{ID: id, Endpoint: "http://" + id}))
	}

	var ids []string
	for _, desc := range r.List() {
		ids = append(ids, desc.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}
