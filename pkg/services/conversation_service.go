package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/mkorobkov/gpt-thread-bot/pkg/chunk"
	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
	"github.com/mkorobkov/gpt-thread-bot/pkg/tools"
)

// maxMessageLength is the transport's message size limit; the code-fence
// header margin is taken out of it by the chunker.
const maxMessageLength = 2000

type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, model string, messages []domain.ChatMessage, functions []domain.FunctionSchema) (*domain.Completion, error)
}

type ToolInvoker interface {
	Schemas() []domain.FunctionSchema
	Invoke(ctx context.Context, name, arguments string) (string, error)
}

type ThreadRepository interface {
	Create(ctx context.Context, thread domain.Thread) (*domain.Thread, error)
	FetchOne(ctx context.Context, threadID int64) (*domain.Thread, error)
	PartialUpdate(ctx context.Context, threadID int64, update domain.ThreadUpdate) (*domain.Thread, error)
}

type ThreadMessageRepository interface {
	Create(ctx context.Context, msg domain.ThreadMessage) (*domain.ThreadMessage, error)
	FetchMany(ctx context.Context, threadID int64, filter domain.ThreadMessageFilter) ([]domain.ThreadMessage, error)
}

type Authenticator interface {
	IsAuthorized(userID int64) bool
}

// Identity reports the gateway account the bot runs as. ok is false until
// the gateway has established it.
type Identity interface {
	Self() (id int64, name string, ok bool)
}

type conversationService struct {
	llm         ChatCompleter
	tools       ToolInvoker
	threadRepo  ThreadRepository
	messageRepo ThreadMessageRepository
	auth        Authenticator
	identity    Identity
}

func NewConversationService(
	llm ChatCompleter,
	toolInvoker ToolInvoker,
	threadRepo ThreadRepository,
	messageRepo ThreadMessageRepository,
	authenticator Authenticator,
	identity Identity,
) *conversationService {
	return &conversationService{
		llm:         llm,
		tools:       toolInvoker,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		auth:        authenticator,
		identity:    identity,
	}
}

// SendMessageToThread runs one conversation turn: gate the event, replay the
// thread's trailing context, drive up to two completions (one tool
// round-trip at most), then persist both sides of the turn. Nothing is
// written unless every completion succeeded.
func (s *conversationService) SendMessageToThread(ctx context.Context, msg domain.InboundMessage) (*domain.TurnResult, error) {
	selfID, _, ready := s.identity.Self()
	if !ready {
		return nil, domain.NewError(domain.ErrorCodeNotReady, "The server is not ready to handle requests")
	}
	if msg.FromSelf || msg.AuthorID == selfID {
		return nil, domain.NewError(domain.ErrorCodeSkip)
	}
	if !msg.AddressesBot {
		return nil, domain.NewError(domain.ErrorCodeSkip)
	}
	if !s.auth.IsAuthorized(msg.AuthorID) {
		return nil, domain.NewError(domain.ErrorCodeUnauthorized, "User is not authorized to use this bot")
	}

	thread, err := s.threadRepo.FetchOne(ctx, msg.ThreadID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrorCodeNotFound, "Thread not found")
		}
		return nil, fmt.Errorf("fetching thread: %w", err)
	}

	prompt := msg.AuthorName + ": " + msg.Text

	stored, err := s.messageRepo.FetchMany(ctx, thread.ID, domain.ThreadMessageFilter{})
	if err != nil {
		return nil, fmt.Errorf("fetching thread history: %w", err)
	}

	history := buildHistory(stored, thread.ContextLength)
	history = append(history, userMessage(prompt, msg.ImageURLs))

	slog.InfoContext(ctx, "Requesting chat completion",
		"threadID", thread.ID, "model", thread.Model, "messagesCount", len(history))

	completion, err := s.llm.CreateChatCompletion(ctx, thread.Model, history, s.tools.Schemas())
	if err != nil {
		return nil, openAIFailure(err)
	}

	history = append(history, completion.Message)

	var responseContent string
	switch {
	case completion.FinishReason == domain.FinishReasonStop:
		responseContent = completion.Message.ContentText()

	case completion.FinishReason == domain.FinishReasonFunctionCall && completion.Message.FunctionCall != nil:
		completion, responseContent, err = s.handleFunctionCall(ctx, thread, history, completion.Message.FunctionCall)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unhandled finish reason: %q", completion.FinishReason)
	}

	chunks := chunk.SplitCodeBlockAware(responseContent, maxMessageLength)

	if _, err := s.messageRepo.Create(ctx, domain.ThreadMessage{
		ThreadID:   thread.ID,
		Content:    prompt,
		UserID:     msg.AuthorID,
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
		ResponseMessages: chunks,
		InputTokens:      completion.PromptTokens,
		OutputTokens:     completion.CompletionTokens,
	}, nil
}

// handleFunctionCall performs the single supported tool round-trip and the
// follow-up completion. The follow-up deliberately carries no schemas, so
// the model cannot chain calls.
func (s *conversationService) handleFunctionCall(
	ctx context.Context,
	thread *domain.Thread,
	history []domain.ChatMessage,
	call *domain.FunctionCall,
) (*domain.Completion, string, error) {
	slog.InfoContext(ctx, "Model requested a function call", "name", call.Name, "args", call.Arguments)

	toolResponse, err := s.tools.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		if errors.Is(err, tools.ErrNotRegistered) {
			return nil, "", fmt.Errorf("model requested an unadvertised tool: %w", err)
		}
		return nil, "", openAIFailure(fmt.Errorf("invoking tool %q: %w", call.Name, err))
	}

	history = append(history, domain.ChatMessage{
		Role:    domain.MessageRoleFunction,
		Name:    call.Name,
		Content: toolResponse,
	})

	completion, err := s.llm.CreateChatCompletion(ctx, thread.Model, history, nil)
	if err != nil {
		return nil, "", openAIFailure(err)
	}
	if completion.FinishReason != domain.FinishReasonStop {
		return nil, "", fmt.Errorf("unhandled finish reason after function call: %q", completion.FinishReason)
	}

	return completion, completion.Message.ContentText(), nil
}

// The raw failure is shown to the user. Acceptable for this private
// deployment; a public one must not leak it.
func openAIFailure(err error) *domain.Error {
	return domain.NewError(domain.ErrorCodeUnexpectedError,
		fmt.Sprintf("Request to OpenAI failed with the following error:\n```\n%v```", err))
}

// buildHistory projects the trailing contextLength stored messages into the
// completion wire shape. Plain text is wrapped as a single text content
// part; function results keep string content and their name.
func buildHistory(stored []domain.ThreadMessage, contextLength int) []domain.ChatMessage {
	if contextLength < len(stored) {
		stored = stored[len(stored)-contextLength:]
	}

	return lo.Map(stored, func(m domain.ThreadMessage, _ int) domain.ChatMessage {
		if m.Role == domain.MessageRoleFunction {
			return domain.ChatMessage{Role: m.Role, Name: m.FunctionName, Content: m.Content}
		}
		return domain.ChatMessage{
			Role:    m.Role,
			Content: []domain.Content{{Type: domain.ContentTypeText, Text: m.Content}},
		}
	})
}

func userMessage(prompt string, imageURLs []string) domain.ChatMessage {
	parts := []domain.Content{{Type: domain.ContentTypeText, Text: prompt}}
	for _, u := range imageURLs {
		parts = append(parts, domain.Content{
			Type:     domain.ContentTypeImageURL,
			ImageURL: &domain.ImageURL{URL: u},
		})
	}
	return domain.ChatMessage{Role: domain.MessageRoleUser, Content: parts}
}
