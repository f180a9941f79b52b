package actions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskCreator persists tasks produced by create_task actions.
type TaskCreator interface {
	CreateTask(ctx context.Context, owner, title, sourceEvent string) (string, error)
}

type PostgresTaskStore struct {
	db *sql.DB
}

func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

func (s *PostgresTaskStore) CreateTask(ctx context.Context, owner, title, sourceEvent string) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO tasks (id, owner_id, title, source_event_id, status, created_at)
		VALUES ($1, $2, $3, $4, 'open', $5)
	`
	_, err := s.db.ExecContext(ctx, query, id, owner, title, sourceEvent, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}
	return id, nil
}
