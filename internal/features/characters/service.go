// Package characters — service.go: доступ к каталогу и посев дефолтных персонажей.
package characters

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Service управляет каталогом персонажей.
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис каталога.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetByID возвращает персонажа по ID.
func (s *Service) GetByID(ctx context.Context, id int64) (*Character, error) {
	return s.repo.GetByID(ctx, id)
}

// ListActive возвращает активных персонажей для карусели выбора.
func (s *Service) ListActive(ctx context.Context) ([]*Character, error) {
	return s.repo.ListActive(ctx)
}

// SeedDefaults идемпотентно создаёт дефолтных персонажей при старте.
// Повторный запуск ничего не меняет (ON CONFLICT DO NOTHING по slug).
func (s *Service) SeedDefaults(ctx context.Context) error {
	for _, c := range defaultCharacters {
		if err := s.repo.Upsert(ctx, c); err != nil {
			return err
		}
	}
	log.WithField("count", len(defaultCharacters)).Info("Каталог персонажей готов")
	return nil
}

// defaultCharacters — стартовый каталог.
var defaultCharacters = []*Character{
	{
		Slug: "sasha",
		Name: map[string]string{"ru": "Саша", "en": "Sasha"},
		Description: map[string]string{
			"ru": "26 лет, дерзкая и уверенная в себе блондинка. Игривая, страстная, но с тайной.",
			"en": "26-year-old bold and confident blonde. Playful, passionate, but with a secret.",
		},
		Appearance: "blonde hair, brown eyes, wearing white top and denim skirt",
		PhotoURL:   "https://cdn.companion-bot.app/characters/sasha.jpeg",
		VideoURL:   "https://cdn.companion-bot.app/characters/sasha.mp4",
		IsActive:   true,
	},
	{
		Slug: "anfisa",
		Name: map[string]string{"ru": "Анфиса", "en": "Anfisa"},
		Description: map[string]string{
			"ru": "27-летняя барменша с изумрудными глазами. Умная, загадочная, остроумная.",
			"en": "27-year-old bartender with emerald eyes. Smart, mysterious, witty.",
		},
		Appearance: "green eyes, wavy brown hair, wearing black top and skirt",
		PhotoURL:   "https://cdn.companion-bot.app/characters/anfisa.jpg",
		VideoURL:   "https://cdn.companion-bot.app/characters/anfisa.mp4",
		IsActive:   true,
	},
	{
		Slug: "eva",
		Name: map[string]string{"ru": "Ева", "en": "Eva"},
		Description: map[string]string{
			"ru": "Очень общительная и креативная. Любит быть в центре внимания.",
			"en": "Very sociable and creative. Loves being the center of attention.",
		},
		Appearance: "long dark hair, smooth skin, confident expression",
		PhotoURL:   "https://cdn.companion-bot.app/characters/eva.jpg",
		VideoURL:   "https://cdn.companion-bot.app/characters/eva.mp4",
		IsActive:   true,
	},
}
