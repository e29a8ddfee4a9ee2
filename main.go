package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v9"

	"github.com/mkorobkov/gpt-thread-bot/pkg/auth"
	"github.com/mkorobkov/gpt-thread-bot/pkg/database"
	"github.com/mkorobkov/gpt-thread-bot/pkg/digitalocean"
	"github.com/mkorobkov/gpt-thread-bot/pkg/logger"
	"github.com/mkorobkov/gpt-thread-bot/pkg/openai"
	"github.com/mkorobkov/gpt-thread-bot/pkg/repository"
	"github.com/mkorobkov/gpt-thread-bot/pkg/services"
	"github.com/mkorobkov/gpt-thread-bot/pkg/telegram"
	"github.com/mkorobkov/gpt-thread-bot/pkg/tools"
	"github.com/mkorobkov/gpt-thread-bot/pkg/workers"
)

type Config struct {
	OpenAIToken               string   `env:"OPEN_AI_TOKEN,required"`
	TelegramBotToken          string   `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramAuthorizedUserIDs []int64  `env:"TELEGRAM_AUTHORIZED_USER_IDS" envSeparator:" "`
	PgURL                     string   `env:"DATABASE_URL,required"`
	ReadPgURL                 string   `env:"READ_DATABASE_URL"`
	DBSchemaTables            []string `env:"DB_SCHEMA_TABLES" envSeparator:" "`
	GoogleGeocodingAPIKey     string   `env:"GOOGLE_GEOCODING_API_KEY"`
	DigitalOceanToken         string   `env:"DIGITAL_OCEAN_TOKEN"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	workerGroup, err := setupWorkers()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return workerGroup.Start(ctx)
}

func setupWorkers() (workers.Group, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	telegramClient, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}
	authenticator := auth.NewAuthenticator(cfg.TelegramAuthorizedUserIDs)

	db, err := database.NewPostgres(cfg.PgURL)
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}

	openAIClient, err := openai.NewClient(cfg.OpenAIToken)
	if err != nil {
		return nil, fmt.Errorf("creating open ai client: %w", err)
	}

	threadRepository := repository.NewThreadsRepository(db)
	threadMessageRepository := repository.NewThreadMessagesRepository(db)

	toolRegistry := tools.NewRegistry()

	if cfg.GoogleGeocodingAPIKey != "" {
		weather := tools.NewGetWeatherForLocation(repository.NewGeocodeCache(), cfg.GoogleGeocodingAPIKey)
		if err := weather.Register(toolRegistry); err != nil {
			return nil, fmt.Errorf("registering weather tool: %w", err)
		}
	}

	if cfg.ReadPgURL != "" {
		readDB, err := database.NewReadOnlyPostgres(cfg.ReadPgURL)
		if err != nil {
			return nil, fmt.Errorf("creating read-only db: %w", err)
		}
		askDatabase, err := tools.NewAskDatabase(context.Background(), readDB, cfg.DBSchemaTables)
		if err != nil {
			return nil, fmt.Errorf("creating ask database tool: %w", err)
		}
		if err := askDatabase.Register(toolRegistry); err != nil {
			return nil, fmt.Errorf("registering ask database tool: %w", err)
		}
	}

	conversationService := services.NewConversationService(
		openAIClient,
		toolRegistry,
		threadRepository,
		threadMessageRepository,
		authenticator,
		telegramClient,
	)
	threadService := services.NewThreadService(
		openAIClient,
		threadRepository,
		threadMessageRepository,
		authenticator,
		telegramClient,
	)

	var balance telegram.BalanceProvider
	if cfg.DigitalOceanToken != "" {
		balance = digitalocean.NewClient(cfg.DigitalOceanToken)
	}

	handler := telegram.NewHandler(telegramClient, conversationService, threadService, balance)

	return workers.Group{
		workers.NewTelegramUpdateListener(telegramClient, handler),
	}, nil
}
