// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// транспорт и собирает всё в один объект.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/bot"
	"companion-bot/internal/config"
	"companion-bot/internal/db/postgres"
	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/chat"
	"companion-bot/internal/features/history"
	"companion-bot/internal/features/spice"
	"companion-bot/internal/features/users"
	"companion-bot/internal/generation"
	"companion-bot/internal/imagegen"
	"companion-bot/internal/jobs"
	"companion-bot/internal/storage"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Репозитории ===
	usersRepo := users.NewRepository(pool)
	charactersRepo := characters.NewRepository(pool)
	historyRepo := history.NewRepository(pool)
	spiceRepo := spice.NewRepository(pool)

	// === 4. Сервисы ===
	usersService := users.NewService(usersRepo)
	charactersService := characters.NewService(charactersRepo)
	historyService := history.NewService(historyRepo)
	spiceService := spice.NewService(spiceRepo)

	if err := charactersService.SeedDefaults(ctx); err != nil {
		return nil, fmt.Errorf("ошибка посева персонажей: %w", err)
	}

	// === 5. Внешние клиенты ===
	generator := generation.NewClient(cfg.DeepSeekBaseURL, cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.DeepSeekTimeout)
	images := imagegen.NewClient(cfg.ComfyUIAPIURL, cfg.ComfyUIPollInterval, cfg.ComfyUIPollAttempts)
	photos, err := storage.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания S3-клиента: %w", err)
	}

	// === 6. Транспорт и оркестратор ===
	sender := bot.NewSender(botAPI, cfg, historyService, spiceService)
	chatService := chat.NewService(cfg, sender, generator, images, photos,
		spiceService, historyService, charactersService)

	// === 7. Собираем бота ===
	b := bot.New(botAPI, cfg, sender, chatService,
		usersService, charactersService, spiceService, historyService)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(cfg, usersService, chatService)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Characters},
		{3, migration003Messages},
		{4, migration004SpiceTransactions},
	}

	for _, m := range migrations {
		if err := postgres.ApplyMigration(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY,
    username VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    last_name VARCHAR(255) NOT NULL DEFAULT '',
    allows_write_to_pm BOOLEAN NOT NULL DEFAULT TRUE,
    language_code VARCHAR(16) NOT NULL DEFAULT '',
    selected_language VARCHAR(16),
    selected_character_id BIGINT,
    role VARCHAR(32) NOT NULL DEFAULT 'user',
    utm VARCHAR(255),
    inviter_id BIGINT REFERENCES users(id),
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_inviter_id ON users(inviter_id);
CREATE INDEX IF NOT EXISTS idx_users_selected_character ON users(selected_character_id);
`

var migration002Characters = `
CREATE TABLE IF NOT EXISTS characters (
    id BIGSERIAL PRIMARY KEY,
    slug VARCHAR(64) UNIQUE NOT NULL,
    name JSONB NOT NULL,
    description JSONB NOT NULL,
    appearance TEXT NOT NULL DEFAULT '',
    photo_url TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
`

var migration003Messages = `
CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    chat_id BIGINT NOT NULL,
    character_id BIGINT REFERENCES characters(id),
    message_id INTEGER NOT NULL,
    date BIGINT NOT NULL,
    payload JSONB NOT NULL,
    ai_response JSONB,
    deleted_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(chat_id, character_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_messages_message_id ON messages(chat_id, message_id);
`

var migration004SpiceTransactions = `
CREATE TABLE IF NOT EXISTS spice_transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    amount BIGINT NOT NULL,
    transaction_type VARCHAR(50) NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_spice_transactions_user ON spice_transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_spice_transactions_created_at ON spice_transactions(created_at DESC);
`
