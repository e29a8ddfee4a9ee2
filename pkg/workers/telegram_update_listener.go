package workers

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkorobkov/gpt-thread-bot/pkg/logger"
)

type Handler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update)
}

type TelegramClient interface {
	GetUpdates() tgbotapi.UpdatesChannel
}

type telegramUpdateListener struct {
	client  TelegramClient
	handler Handler
	wg      sync.WaitGroup
}

func NewTelegramUpdateListener(client TelegramClient, handler Handler) *telegramUpdateListener {
	return &telegramUpdateListener{
		client:  client,
		handler: handler,
	}
}

func (t *telegramUpdateListener) Name() string { return "telegram_update_listener" }

// Start consumes the gateway's update stream, handling each update in its own
// goroutine so a slow completion never blocks the stream.
func (t *telegramUpdateListener) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", t.Name())
	defer slog.Info("Worker stopped", "name", t.Name())

	updates := t.client.GetUpdates()

	for {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			return nil
		case update := <-updates:
			t.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer t.wg.Done()
				t.processUpdate(ctx, &update)
			}(update)
		}
	}
}

func (t *telegramUpdateListener) processUpdate(ctx context.Context, update *tgbotapi.Update) {
	ctx = logger.ContextWithRequestID(ctx, int64(update.UpdateID))

	slog.InfoContext(ctx, "Processing update", "updateID", update.UpdateID)

	t.handler.HandleUpdate(ctx, update)
}
