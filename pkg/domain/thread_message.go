package domain

import "time"

const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleFunction  = "function"
)

// ThreadMessage is one persisted side of a turn. Records are created once and
// never mutated.
type ThreadMessage struct {
	ID           int64
	ThreadID     int64
	Content      string
	UserID       int64
	Role         string
	TokensUsed   int
	FunctionName string
	FunctionArgs string
	CreatedAt    time.Time
}

// ThreadMessageFilter narrows FetchMany. Zero values mean "no filter";
// pagination applies only when both Page and PageSize are positive.
type ThreadMessageFilter struct {
	Role         string
	CreatedAtGte time.Time
	Page         int
	PageSize     int
}
