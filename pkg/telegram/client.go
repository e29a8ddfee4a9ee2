package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkorobkov/gpt-thread-bot/pkg/logger"
	"github.com/mkorobkov/gpt-thread-bot/pkg/render"
)

type client struct {
	token     string
	bot       *tgbotapi.BotAPI
	updatesCh tgbotapi.UpdatesChannel
}

func NewClient(token string) (*client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot api instance: %v", err)
	}

	slog.Info("authorized on telegram", "account", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	return &client{
		token:     token,
		bot:       bot,
		updatesCh: bot.GetUpdatesChan(u),
	}, nil
}

func (c *client) GetUpdates() tgbotapi.UpdatesChannel {
	return c.updatesCh
}

// Self reports the account the bot is authorized as. ok is false until the
// gateway handshake has completed.
func (c *client) Self() (int64, string, bool) {
	if c.bot == nil || c.bot.Self.ID == 0 {
		return 0, "", false
	}
	return c.bot.Self.ID, c.bot.Self.UserName, true
}

// SendText delivers one response part as HTML, falling back to plain text
// when the rendered payload is rejected.
func (c *client) SendText(ctx context.Context, chatID int64, replyToMessageID int, text string) error {
	msg := tgbotapi.NewMessage(chatID, render.ToHTML(text))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = replyToMessageID

	if _, err := c.bot.Send(msg); err != nil {
		slog.WarnContext(ctx, "html send failed, retrying as plain text", logger.Err(err))

		plain := tgbotapi.NewMessage(chatID, text)
		plain.ReplyToMessageID = replyToMessageID
		if _, plainErr := c.bot.Send(plain); plainErr != nil {
			return fmt.Errorf("sending message: %v", plainErr)
		}
	}
	return nil
}

func (c *client) StartTyping(ctx context.Context, chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := c.bot.Request(action); err != nil {
		slog.ErrorContext(ctx, "sending chat action", logger.Err(err))
	}
}

// FileURL resolves an attachment reference into a fetchable URL.
func (c *client) FileURL(fileID string) (string, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("getting file: %v", err)
	}
	return file.Link(c.token), nil
}
