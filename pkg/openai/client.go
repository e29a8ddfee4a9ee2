package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

const maxBackoffTime = 16 * time.Second

type Client struct {
	token string
	url   string
	hc    *retryablehttp.Client
}

func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	hc := retryablehttp.NewClient()
	hc.Logger = nil
	hc.RetryMax = 5
	hc.RetryWaitMin = time.Second
	hc.RetryWaitMax = maxBackoffTime
	hc.CheckRetry = checkRetry

	return &Client{
		token: token,
		url:   completionsURL,
		hc:    hc,
	}, nil
}

// checkRetry classifies failures: transient connectivity and rate-limit or
// server-side statuses are retried, client errors are not, and a status
// outside both classes aborts the request as a contract defect.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}

	switch resp.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}

	switch resp.StatusCode {
	case http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusUnprocessableEntity:
		return false, nil
	}

	return false, fmt.Errorf("unhandled response status: %d", resp.StatusCode)
}

// CreateChatCompletion sends one chat-completions request. Pass functions on
// the first call of a turn only; the post-tool call goes without them.
func (c *Client) CreateChatCompletion(
	ctx context.Context,
	model string,
	messages []domain.ChatMessage,
	functions []domain.FunctionSchema,
) (*domain.Completion, error) {
	if model == "gpt-4" {
		// the dated snapshot is the one with function-calling support
		model = "gpt-4-0613"
	}

	body, err := json.Marshal(chatCompletionsRequest{
		Model:     model,
		Messages:  messages,
		Functions: functions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResponse chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResponse); err != nil {
		return nil, fmt.Errorf("decoding response data: %w", err)
	}

	if len(chatResponse.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := chatResponse.Choices[0]
	return &domain.Completion{
		Message:          choice.Message,
		FinishReason:     choice.FinishReason,
		PromptTokens:     chatResponse.Usage.PromptTokens,
		CompletionTokens: chatResponse.Usage.CompletionTokens,
	}, nil
}
