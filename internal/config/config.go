// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"companion_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Порт HTTP-сервера для health-check (нужен хостингу)
	AppPort int `envconfig:"PORT" default:"8080"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- DeepSeek (генерация текста) ---
	DeepSeekAPIKey  string        `envconfig:"DEEPSEEK_API_KEY" required:"true"`
	DeepSeekBaseURL string        `envconfig:"DEEPSEEK_BASE_URL" default:"https://api.deepseek.com"`
	DeepSeekModel   string        `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`
	DeepSeekTimeout time.Duration `envconfig:"DEEPSEEK_TIMEOUT" default:"2m"`

	// Лимит повторов при сбое генерации (вместо бесконечной рекурсии)
	GenerationMaxAttempts int           `envconfig:"GENERATION_MAX_ATTEMPTS" default:"3"`
	GenerationRetryDelay  time.Duration `envconfig:"GENERATION_RETRY_DELAY" default:"1s"`

	// Как часто обновлять индикатор "печатает..." во время генерации
	TypingInterval time.Duration `envconfig:"TYPING_INTERVAL" default:"4s"`

	// --- ComfyUI (генерация изображений) ---
	ComfyUIAPIURL       string        `envconfig:"COMFYUI_API_URL" required:"true"`
	ComfyUIPollInterval time.Duration `envconfig:"COMFYUI_POLL_INTERVAL" default:"1s"`
	ComfyUIPollAttempts int           `envconfig:"COMFYUI_POLL_ATTEMPTS" default:"60"`

	// --- S3 (хранилище сгенерированных фото) ---
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" required:"true"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" required:"true"`
	// Для MinIO в локальной разработке
	AWSEndpoint  string `envconfig:"AWS_ENDPOINT" default:""`
	S3BucketName string `envconfig:"S3_BUCKET_NAME" default:"companion-bot"`
	S3UseSSL     bool   `envconfig:"S3_USE_SSL" default:"true"`

	// --- Spice (виртуальная валюта) ---
	SpiceInitialBonus        int64 `envconfig:"SPICE_INITIAL_BONUS" default:"100"`
	SpiceTextResponseCost    int64 `envconfig:"SPICE_TEXT_RESPONSE_COST" default:"1"`
	SpiceImageGenerationCost int64 `envconfig:"SPICE_IMAGE_GENERATION_COST" default:"30"`
	SpiceVideoGenerationCost int64 `envconfig:"SPICE_VIDEO_GENERATION_COST" default:"50"`
	SpiceInviterBonus        int64 `envconfig:"SPICE_INVITER_BONUS" default:"100"`
	SpiceInviteeBonus        int64 `envconfig:"SPICE_INVITEE_BONUS" default:"100"`

	// --- Scanner (фоновые «первые шаги» персонажа) ---
	ScannerInterval time.Duration `envconfig:"SCANNER_INTERVAL" default:"30s"`
	// Короткая политика: молчание 2 минуты, окно последних 2 сообщений
	ScannerShortThreshold time.Duration `envconfig:"SCANNER_SHORT_THRESHOLD" default:"2m"`
	ScannerShortWindow    int           `envconfig:"SCANNER_SHORT_WINDOW" default:"2"`
	// Длинная политика: молчание сутки, окно последних 3 сообщений
	ScannerLongThreshold time.Duration `envconfig:"SCANNER_LONG_THRESHOLD" default:"24h"`
	ScannerLongWindow    int           `envconfig:"SCANNER_LONG_WINDOW" default:"3"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.SpiceTextResponseCost <= 0 || c.SpiceImageGenerationCost <= 0 {
		return fmt.Errorf("стоимость ответа должна быть положительной")
	}
	if c.GenerationMaxAttempts <= 0 {
		return fmt.Errorf("GENERATION_MAX_ATTEMPTS должен быть > 0")
	}
	if c.ScannerShortWindow <= 0 || c.ScannerLongWindow <= 0 {
		return fmt.Errorf("окна сканера должны быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
