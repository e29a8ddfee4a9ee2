package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/mkorobkov/gpt-thread-bot/pkg/chunk"
	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
)

type threadService struct {
	llm         ChatCompleter
	threadRepo  ThreadRepository
	messageRepo ThreadMessageRepository
	auth        Authenticator
	identity    Identity
}

func NewThreadService(
	llm ChatCompleter,
	threadRepo ThreadRepository,
	messageRepo ThreadMessageRepository,
	authenticator Authenticator,
	identity Identity,
) *threadService {
	return &threadService{
		llm:         llm,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		auth:        authenticator,
		identity:    identity,
	}
}

// StartThread opens a tracked thread with a history-free, tool-free first
// exchange and persists both of its sides.
func (s *threadService) StartThread(ctx context.Context, threadID, userID int64, prompt, model string) (*domain.TurnResult, error) {
	selfID, _, ready := s.identity.Self()
	if !ready {
		return nil, domain.NewError(domain.ErrorCodeNotReady, "The server is not ready to handle requests")
	}
	if !s.auth.IsAuthorized(userID) {
		return nil, domain.NewError(domain.ErrorCodeUnauthorized, "You are not allowed to use this command")
	}

	model = lo.Ternary(model == "", domain.DefaultModel, model)
	if !lo.Contains(domain.SupportedModels, model) {
		return nil, domain.NewError(domain.ErrorCodeInvalidInput, "Unsupported model: "+model)
	}

	completion, err := s.llm.CreateChatCompletion(ctx, model, []domain.ChatMessage{userMessage(prompt, nil)}, nil)
	if err != nil {
		return nil, openAIFailure(err)
	}
	if completion.FinishReason != domain.FinishReasonStop {
		return nil, fmt.Errorf("unhandled finish reason: %q", completion.FinishReason)
	}

	thread, err := s.threadRepo.Create(ctx, domain.Thread{
		ID:              threadID,
		InitiatorUserID: userID,
		Model:           model,
		ContextLength:   domain.DefaultContextLength,
	})
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	slog.InfoContext(ctx, "Thread created", "threadID", thread.ID, "model", thread.Model)

	responseContent := completion.Message.ContentText()

	if _, err := s.messageRepo.Create(ctx, domain.ThreadMessage{
		ThreadID:   thread.ID,
		Content:    prompt,
		UserID:     userID,
		Role:       domain.MessageRoleUser,
		TokensUsed: completion.PromptTokens,
	}); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}
	if _, err := s.messageRepo.Create(ctx, domain.ThreadMessage{
		ThreadID:   thread.ID,
		Content:    responseContent,
		UserID:     selfID,
		Role:       domain.MessageRoleAssistant,
		TokensUsed: completion.CompletionTokens,
	}); err != nil {
		return nil, fmt.Errorf("persisting assistant message: %w", err)
	}

	return &domain.TurnResult{
		ResponseMessages: chunk.SplitCodeBlockAware(responseContent, maxMessageLength),
		InputTokens:      completion.PromptTokens,
		OutputTokens:     completion.CompletionTokens,
	}, nil
}

// ThreadCost prices everything the thread has spent so far.
func (s *threadService) ThreadCost(ctx context.Context, threadID int64) (string, error) {
	thread, err := s.threadRepo.FetchOne(ctx, threadID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.NewError(domain.ErrorCodeNotFound, "Thread not found")
		}
		return "", fmt.Errorf("fetching thread: %w", err)
	}

	messages, err := s.messageRepo.FetchMany(ctx, threadID, domain.ThreadMessageFilter{})
	if err != nil {
		return "", fmt.Errorf("fetching thread messages: %w", err)
	}

	tokens := lo.SumBy(messages, func(m domain.ThreadMessage) int { return m.TokensUsed })
	cost := domain.TokensToDollars(thread.Model, tokens)

	return fmt.Sprintf("This thread has used $%.5f (%d tokens) over %d messages",
		cost, tokens, len(messages)), nil
}

// SetModel switches the thread's model for subsequent turns.
func (s *threadService) SetModel(ctx context.Context, threadID, userID int64, model string) (*domain.Thread, error) {
	if !s.auth.IsAuthorized(userID) {
		return nil, domain.NewError(domain.ErrorCodeUnauthorized, "You are not allowed to change thread settings")
	}
	if !lo.Contains(domain.SupportedModels, model) {
		return nil, domain.NewError(domain.ErrorCodeInvalidInput, "Unsupported model: "+model)
	}

	return s.partialUpdate(ctx, threadID, domain.ThreadUpdate{Model: &model})
}

// SetContextLength bounds how many trailing messages feed the next turn.
func (s *threadService) SetContextLength(ctx context.Context, threadID, userID int64, length int) (*domain.Thread, error) {
	if !s.auth.IsAuthorized(userID) {
		return nil, domain.NewError(domain.ErrorCodeUnauthorized, "You are not allowed to change thread settings")
	}
	if length < 0 {
		return nil, domain.NewError(domain.ErrorCodeInvalidInput, "Context length must be zero or greater")
	}

	return s.partialUpdate(ctx, threadID, domain.ThreadUpdate{ContextLength: &length})
}

func (s *threadService) partialUpdate(ctx context.Context, threadID int64, update domain.ThreadUpdate) (*domain.Thread, error) {
	thread, err := s.threadRepo.PartialUpdate(ctx, threadID, update)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrorCodeNotFound, "Thread not found")
		}
		return nil, fmt.Errorf("updating thread: %w", err)
	}
	return thread, nil
}
