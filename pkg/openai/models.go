package openai

import "github.com/mkorobkov/gpt-thread-bot/pkg/domain"

type chatCompletionsRequest struct {
	Model     string                  `json:"model"`
	Messages  []domain.ChatMessage    `json:"messages"`
	Functions []domain.FunctionSchema `json:"functions,omitempty"`
}

type chatCompletionsResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int                    `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   usage                  `json:"usage"`
}

type chatCompletionChoice struct {
	Index        int                `json:"index"`
	Message      domain.ChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
