package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agent-orchestrator/pkg/models"
)

// PostgresStore is the PostgreSQL implementation of WorkflowStore and
// EventStore.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			tasks JSONB NOT NULL,
			status TEXT NOT NULL,
			results JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS analytics_events (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			workflow_id TEXT,
			agent_id TEXT,
			status TEXT,
			duration DOUBLE PRECISION,
			user_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// CreateWorkflow persists a new workflow.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	tasks, err := json.Marshal(workflow.Tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO workflows (id, name, owner_id, tasks, status, results, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, '[]'::jsonb, $6, $6)`,
		workflow.ID, workflow.Name, workflow.OwnerID, tasks, workflow.Status, workflow.CreatedAt,
	)
	return err
}

// GetWorkflow retrieves a workflow by id.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, name, owner_id, tasks, status, results, created_at, updated_at
		 FROM workflows WHERE id = $1`, id)
	return scanWorkflow(row)
}

// GetWorkflowForOwner retrieves a workflow only if it belongs to owner.
// An id owned by another user is indistinguishable from a missing one.
func (s *PostgresStore) GetWorkflowForOwner(ctx context.Context, id, ownerID string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, name, owner_id, tasks, status, results, created_at, updated_at
		 FROM workflows WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanWorkflow(row)
}

// ClaimWorkflow transitions pending -> running atomically.
func (s *PostgresStore) ClaimWorkflow(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE workflows SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		models.WorkflowRunning, id, models.WorkflowPending,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetWorkflowStatus records a status transition.
func (s *PostgresStore) SetWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE workflows SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendResult appends one task result to the workflow's results array.
// The server-side jsonb concatenation keeps concurrent status reads
// consistent: they always observe a complete prefix.
func (s *PostgresStore) AppendResult(ctx context.Context, id string, result models.TaskResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE workflows
		 SET results = results || jsonb_build_array($1::jsonb), updated_at = now()
		 WHERE id = $2`,
		payload, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertEvent records an analytics event.
func (s *PostgresStore) InsertEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO analytics_events (event_type, workflow_id, agent_id, status, duration, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.EventType, event.WorkflowID, event.AgentID, event.Status, event.Duration, event.UserID,
	)
	return err
}

// EventsForUser retrieves a user's analytics events, newest first.
func (s *PostgresStore) EventsForUser(ctx context.Context, userID string) ([]*models.AnalyticsEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, event_type, workflow_id, agent_id, status, duration, user_id, created_at
		 FROM analytics_events WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.AnalyticsEvent
	for rows.Next() {
		var ev models.AnalyticsEvent
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.WorkflowID, &ev.AgentID,
			&ev.Status, &ev.Duration, &ev.UserID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var wf models.Workflow
	var tasks, results []byte

	err := row.Scan(&wf.ID, &wf.Name, &wf.OwnerID, &tasks, &wf.Status, &results,
		&wf.CreatedAt, &wf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tasks, &wf.Tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tasks: %w", err)
	}
	if err := json.Unmarshal(results, &wf.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return &wf, nil
}
