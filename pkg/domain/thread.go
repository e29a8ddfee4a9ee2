package domain

import "time"

const (
	DefaultModel         = "gpt-4"
	DefaultContextLength = 20
)

var SupportedModels = []string{
	"gpt-4",
	"gpt-4-0613",
	"gpt-3.5-turbo",
	"gpt-3.5-turbo-0613",
}

// Thread is a tracked conversation. ContextLength bounds how many trailing
// messages are replayed into the next completion request.
type Thread struct {
	ID              int64
	InitiatorUserID int64
	Model           string
	ContextLength   int
	CreatedAt       time.Time
}

// ThreadUpdate carries the fields of a partial thread update. Nil fields are
// left untouched.
type ThreadUpdate struct {
	Model         *string
	ContextLength *int
}
