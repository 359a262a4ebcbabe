// Package history — service.go: запись и чтение истории переписки.
package history

import (
	"context"
	"encoding/json"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/generation"
)

// Service управляет историей сообщений.
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис истории.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Record сохраняет сообщение Telegram в историю.
// characterID передаётся только для сообщений персонажного треда,
// aiResponse — только для реплик персонажа.
func (s *Service) Record(ctx context.Context, msg *tgbotapi.Message, characterID *int64, aiResponse *generation.Response) (*Message, error) {
	m := &Message{
		ChatID:      msg.Chat.ID,
		CharacterID: characterID,
		MessageID:   msg.MessageID,
		Date:        int64(msg.Date),
		Payload:     *msg,
		AIResponse:  aiResponse,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Thread возвращает неудалённые сообщения треда, новые первыми.
func (s *Service) Thread(ctx context.Context, chatID, characterID int64) ([]*Message, error) {
	return s.repo.Thread(ctx, chatID, characterID)
}

// LastSympathy — симпатия из последней реплики персонажа в треде.
func (s *Service) LastSympathy(ctx context.Context, chatID, characterID int64) (int, bool, error) {
	return s.repo.LastSympathy(ctx, chatID, characterID)
}

// Tombstone помечает сообщение удалённым в БД.
// Удаление на стороне Telegram — отдельный best-effort шаг вызывающего.
func (s *Service) Tombstone(ctx context.Context, chatID int64, messageID int) error {
	existed, err := s.repo.SoftDelete(ctx, chatID, messageID)
	if err != nil {
		return err
	}
	if !existed {
		log.WithFields(log.Fields{
			"chat_id":    chatID,
			"message_id": messageID,
		}).Debug("Tombstone: сообщение не найдено (уже удалено?)")
	}
	return nil
}

// TombstoneThread помечает удалённым весь тред и возвращает
// Telegram message_id помеченных сообщений.
func (s *Service) TombstoneThread(ctx context.Context, chatID, characterID int64) ([]int, error) {
	return s.repo.SoftDeleteThread(ctx, chatID, characterID)
}

// SyncPayload обновляет сохранённый payload после редактирования сообщения.
func (s *Service) SyncPayload(ctx context.Context, msg *tgbotapi.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.repo.UpdatePayload(ctx, msg.Chat.ID, msg.MessageID, raw)
}
