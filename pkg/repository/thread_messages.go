package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
)

const threadMessageColumns = `thread_message_id, thread_id, content, user_id, role, tokens_used, function_name, function_args, created_at`

type threadMessagesRepository struct {
	db *sql.DB
}

func NewThreadMessagesRepository(db *sql.DB) *threadMessagesRepository {
	return &threadMessagesRepository{db: db}
}

func (r *threadMessagesRepository) Create(ctx context.Context, msg domain.ThreadMessage) (*domain.ThreadMessage, error) {
	query := `
		INSERT INTO thread_messages (thread_id, content, user_id, role, tokens_used, function_name, function_args)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING ` + threadMessageColumns

	row := r.db.QueryRowContext(ctx, query,
		msg.ThreadID, msg.Content, msg.UserID, msg.Role, msg.TokensUsed, msg.FunctionName, msg.FunctionArgs)

	created, err := scanThreadMessage(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("creating thread message: %w", err)
	}
	return created, nil
}

// FetchMany returns the thread's messages in creation order, optionally
// narrowed by role, creation time and page.
func (r *threadMessagesRepository) FetchMany(ctx context.Context, threadID int64, filter domain.ThreadMessageFilter) ([]domain.ThreadMessage, error) {
	query := `
		SELECT ` + threadMessageColumns + `
		FROM thread_messages
		WHERE thread_id = $1
	`
	args := []any{threadID}

	if filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if !filter.CreatedAtGte.IsZero() {
		args = append(args, filter.CreatedAtGte)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	query += " ORDER BY thread_message_id"

	if filter.Page > 0 && filter.PageSize > 0 {
		args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching thread messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ThreadMessage
	for rows.Next() {
		msg, err := scanThreadMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning thread message: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func scanThreadMessage(scan func(...any) error) (*domain.ThreadMessage, error) {
	var m domain.ThreadMessage
	var functionName, functionArgs sql.NullString
	if err := scan(&m.ID, &m.ThreadID, &m.Content, &m.UserID, &m.Role, &m.TokensUsed,
		&functionName, &functionArgs, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.FunctionName = functionName.String
	m.FunctionArgs = functionArgs.String
	return &m, nil
}
