package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkorobkov/gpt-thread-bot/pkg/domain"
	"github.com/mkorobkov/gpt-thread-bot/pkg/logger"
)

type ConversationService interface {
	SendMessageToThread(ctx context.Context, msg domain.InboundMessage) (*domain.TurnResult, error)
}

type ThreadService interface {
	StartThread(ctx context.Context, threadID, userID int64, prompt, model string) (*domain.TurnResult, error)
	ThreadCost(ctx context.Context, threadID int64) (string, error)
	SetModel(ctx context.Context, threadID, userID int64, model string) (*domain.Thread, error)
	SetContextLength(ctx context.Context, threadID, userID int64, length int) (*domain.Thread, error)
}

type BalanceProvider interface {
	GetBalanceMessage(ctx context.Context) (string, error)
}

type Client interface {
	Self() (int64, string, bool)
	SendText(ctx context.Context, chatID int64, replyToMessageID int, text string) error
	StartTyping(ctx context.Context, chatID int64)
	FileURL(fileID string) (string, error)
}

type handler struct {
	client        Client
	conversations ConversationService
	threads       ThreadService
	balance       BalanceProvider
}

// NewHandler routes gateway updates to the services. balance may be nil when
// the hosting account is not configured.
func NewHandler(
	client Client,
	conversations ConversationService,
	threads ThreadService,
	balance BalanceProvider,
) *handler {
	return &handler{
		client:        client,
		conversations: conversations,
		threads:       threads,
		balance:       balance,
	}
}

func (h *handler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		slog.WarnContext(ctx, "Received unsupported update type", "updateID", update.UpdateID)
		return
	}

	h.client.StartTyping(ctx, msg.Chat.ID)

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}
	h.handleMessage(ctx, msg)
}

func (h *handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "ask":
		if args == "" {
			h.reply(ctx, msg, "Usage: /ask <prompt>")
			return
		}
		result, err := h.threads.StartThread(ctx, msg.Chat.ID, msg.From.ID, args, "")
		if err != nil {
			h.deliverError(ctx, msg, err)
			return
		}
		h.deliver(ctx, msg, result.ResponseMessages)
		cost := domain.TokensToDollars(domain.DefaultModel, result.InputTokens+result.OutputTokens)
		h.reply(ctx, msg, "Thread started with "+domain.DefaultModel+
			". This cost $"+strconv.FormatFloat(cost, 'f', 5, 64))

	case "cost":
		text, err := h.threads.ThreadCost(ctx, msg.Chat.ID)
		if err != nil {
			h.deliverError(ctx, msg, err)
			return
		}
		h.reply(ctx, msg, text)

	case "model":
		if args == "" {
			h.reply(ctx, msg, "Usage: /model <name>\nSupported models: "+strings.Join(domain.SupportedModels, ", "))
			return
		}
		thread, err := h.threads.SetModel(ctx, msg.Chat.ID, msg.From.ID, args)
		if err != nil {
			h.deliverError(ctx, msg, err)
			return
		}
		h.reply(ctx, msg, "Model set to "+thread.Model)

	case "context":
		length, err := strconv.Atoi(args)
		if err != nil {
			h.reply(ctx, msg, "Usage: /context <number of messages>")
			return
		}
		thread, err := h.threads.SetContextLength(ctx, msg.Chat.ID, msg.From.ID, length)
		if err != nil {
			h.deliverError(ctx, msg, err)
			return
		}
		h.reply(ctx, msg, "Context length set to "+strconv.Itoa(thread.ContextLength))

	case "balance":
		if h.balance == nil {
			h.reply(ctx, msg, "Balance reporting is not configured")
			return
		}
		text, err := h.balance.GetBalanceMessage(ctx)
		if err != nil {
			h.deliverError(ctx, msg, err)
			return
		}
		h.reply(ctx, msg, text)

	default:
		h.reply(ctx, msg, "Unknown command: /"+msg.Command())
	}
}

func (h *handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	result, err := h.conversations.SendMessageToThread(ctx, h.toInbound(msg))
	if err != nil {
		h.deliverError(ctx, msg, err)
		return
	}
	h.deliver(ctx, msg, result.ResponseMessages)
}

func (h *handler) toInbound(msg *tgbotapi.Message) domain.InboundMessage {
	selfID, selfName, _ := h.client.Self()

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	mention := "@" + selfName
	addresses := msg.Chat.IsPrivate() ||
		strings.Contains(text, mention) ||
		(msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.ID == selfID)
	text = strings.TrimSpace(strings.ReplaceAll(text, mention, ""))

	var imageURLs []string
	if len(msg.Photo) > 0 {
		// Photo sizes come smallest first.
		largest := msg.Photo[len(msg.Photo)-1]
		if url, err := h.client.FileURL(largest.FileID); err == nil {
			imageURLs = append(imageURLs, url)
		} else {
			slog.Warn("resolving photo url", logger.Err(err))
		}
	}

	name := msg.From.UserName
	if name == "" {
		name = msg.From.FirstName
	}

	return domain.InboundMessage{
		ThreadID:     msg.Chat.ID,
		AuthorID:     msg.From.ID,
		AuthorName:   name,
		Text:         text,
		ImageURLs:    imageURLs,
		AddressesBot: addresses,
		FromSelf:     msg.From.ID == selfID,
	}
}

func (h *handler) deliver(ctx context.Context, msg *tgbotapi.Message, parts []string) {
	for _, part := range parts {
		if err := h.client.SendText(ctx, msg.Chat.ID, msg.MessageID, part); err != nil {
			slog.ErrorContext(ctx, "delivering response", logger.Err(err))
			return
		}
	}
}

func (h *handler) deliverError(ctx context.Context, msg *tgbotapi.Message, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		if domainErr.IsSkip() {
			return
		}
		slog.WarnContext(ctx, "Request rejected", "code", domainErr.Code)
		h.deliver(ctx, msg, domainErr.Messages)
		return
	}

	slog.ErrorContext(ctx, "Handling update failed", logger.Err(err))
	h.reply(ctx, msg, "Something went wrong. Please try again later.")
}

func (h *handler) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	if err := h.client.SendText(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		slog.ErrorContext(ctx, "delivering response", logger.Err(err))
	}
}
