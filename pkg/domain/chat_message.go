package domain

import "github.com/sashabaranov/go-openai/jsonschema"

// ChatMessage is the chat-completions wire shape. Content is either a plain
// string (assistant and function messages) or a []Content parts list (user
// messages carrying text and image references).
type ChatMessage struct {
	Role         string        `json:"role"`
	Content      any           `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionSchema describes one callable the model may request.
type FunctionSchema struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  jsonschema.Definition `json:"parameters"`
}

const (
	FinishReasonStop         = "stop"
	FinishReasonFunctionCall = "function_call"
)

// Completion is the transport's view of one chat-completions response: the
// first choice plus token accounting.
type Completion struct {
	Message          ChatMessage
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// ContentText returns the message content when it is plain text.
func (m ChatMessage) ContentText() string {
	s, _ := m.Content.(string)
	return s
}
