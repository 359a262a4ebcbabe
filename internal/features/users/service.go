// Package users — service.go: регистрация и изменение состояния пользователей.
package users

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Service управляет пользователями.
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис пользователей.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Registration — результат регистрации.
type Registration struct {
	User *User
	// Created = true, если пользователь только что создан
	Created bool
	// Inviter ≠ nil только для свежесозданного пользователя,
	// пришедшего по реферальной ссылке (по нему выдаются бонусы)
	Inviter *User
}

// Register создаёт пользователя или обновляет его профиль.
// startPayload — аргумент deep-link из /start: либо ID пригласившего,
// либо произвольная UTM-метка.
func (s *Service) Register(ctx context.Context, p Profile, startPayload string) (*Registration, error) {
	var inviter *User
	utm := startPayload

	// Числовой payload — это ID пригласившего (если такой существует)
	if id, err := strconv.ParseInt(startPayload, 10, 64); err == nil && id != p.ID {
		if candidate, err := s.repo.GetByID(ctx, id); err == nil {
			inviter = candidate
			utm = ""
		}
	}

	var inviterID *int64
	if inviter != nil {
		inviterID = &inviter.ID
	}

	u, created, err := s.repo.Upsert(ctx, p, utm, inviterID)
	if err != nil {
		return nil, err
	}

	if created {
		log.WithFields(log.Fields{
			"user_id": u.ID,
			"utm":     utm,
			"invited": inviter != nil,
		}).Info("Зарегистрирован новый пользователь")
	}

	reg := &Registration{User: u, Created: created}
	if created && inviter != nil {
		reg.Inviter = inviter
	}
	return reg, nil
}

// GetByID возвращает пользователя по ID.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// SelectLanguage сохраняет язык, выбранный пользователем в онбординге.
func (s *Service) SelectLanguage(ctx context.Context, userID int64, lang string) error {
	return s.repo.SetLanguage(ctx, userID, lang)
}

// SelectCharacter сохраняет выбор персонажа.
// Смена персонажа логически начинает новый тред: историю старого не трогаем,
// но в контекст она больше не попадает (контекст строится по (user, character)).
func (s *Service) SelectCharacter(ctx context.Context, userID int64, characterID int64) error {
	return s.repo.SetCharacter(ctx, userID, characterID)
}

// Deactivate помечает пользователя недостижимым (заблокировал бота).
// Админов не трогаем, чтобы не потерять канал уведомлений.
func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.AllowsWriteToPM || u.IsAdmin() {
		return nil
	}
	log.WithField("user_id", userID).Info("Пользователь заблокировал бота")
	return s.repo.SetAllowsWriteToPM(ctx, userID, false)
}

// Activate помечает пользователя снова достижимым.
func (s *Service) Activate(ctx context.Context, userID int64) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.AllowsWriteToPM {
		return nil
	}
	return s.repo.SetAllowsWriteToPM(ctx, userID, true)
}

// Admins возвращает всех администраторов.
func (s *Service) Admins(ctx context.Context) ([]*User, error) {
	return s.repo.ListAdmins(ctx)
}

// FindInactive — обёртка над двупороговым запросом сканера.
func (s *Service) FindInactive(ctx context.Context, threshold time.Duration, window int) ([]*User, error) {
	return s.repo.FindInactive(ctx, threshold, window)
}
