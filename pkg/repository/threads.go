package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
)

const threadColumns = `thread_id, initiator_user_id, model, context_length, created_at`

type threadsRepository struct {
	db *sql.DB
}

func NewThreadsRepository(db *sql.DB) *threadsRepository {
	return &threadsRepository{db: db}
}

func (r *threadsRepository) Create(ctx context.Context, thread domain.Thread) (*domain.Thread, error) {
	query := `
		INSERT INTO threads (thread_id, initiator_user_id, model, context_length)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + threadColumns

	row := r.db.QueryRowContext(ctx, query,
		thread.ID, thread.InitiatorUserID, thread.Model, thread.ContextLength)

	created, err := scanThread(row)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	return created, nil
}

func (r *threadsRepository) FetchOne(ctx context.Context, threadID int64) (*domain.Thread, error) {
	query := `
		SELECT ` + threadColumns + `
		FROM threads
		WHERE thread_id = $1
	`

	thread, err := scanThread(r.db.QueryRowContext(ctx, query, threadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching thread: %w", err)
	}
	return thread, nil
}

func (r *threadsRepository) PartialUpdate(ctx context.Context, threadID int64, update domain.ThreadUpdate) (*domain.Thread, error) {
	query := `
		UPDATE threads
		SET model = COALESCE($2, model),
		    context_length = COALESCE($3, context_length)
		WHERE thread_id = $1
		RETURNING ` + threadColumns

	thread, err := scanThread(r.db.QueryRowContext(ctx, query, threadID, update.Model, update.ContextLength))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("updating thread: %w", err)
	}
	return thread, nil
}

func scanThread(row *sql.Row) (*domain.Thread, error) {
	var t domain.Thread
	if err := row.Scan(&t.ID, &t.InitiatorUserID, &t.Model, &t.ContextLength, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
