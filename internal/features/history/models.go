// Package history — персистентная история переписки.
// models.go описывает сообщение треда.
//
// Тред — это история, ограниченная парой (пользователь, персонаж):
// смена персонажа начинает логически новый тред, старые строки остаются.
// Сообщения не удаляются физически — только tombstone через deleted_at.
package history

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"companion-bot/internal/generation"
)

// Message — одно сообщение переписки (входящее или исходящее).
type Message struct {
	ID     int64 `db:"id"`
	ChatID int64 `db:"chat_id"` // = Telegram user ID
	// Заполнен только для сообщений персонажного треда
	// (не для команд и не для сообщений до онбординга)
	CharacterID *int64 `db:"character_id"`
	MessageID   int    `db:"message_id"` // ID сообщения на стороне Telegram
	Date        int64  `db:"date"`       // unix-секунды из Telegram
	// Сырое сообщение платформы как есть
	Payload tgbotapi.Message `db:"payload"`
	// Структурированный результат генерации; ≠ nil только у реплик персонажа
	AIResponse *generation.Response `db:"ai_response"`
	DeletedAt  *time.Time           `db:"deleted_at"`
}

// Text возвращает текст сообщения: text либо подпись к медиа.
func (m *Message) Text() string {
	if m.Payload.Text != "" {
		return m.Payload.Text
	}
	return m.Payload.Caption
}

// FromBot сообщает, отправлено ли сообщение ботом.
func (m *Message) FromBot() bool {
	return m.Payload.From != nil && m.Payload.From.IsBot
}

// Sympathy возвращает симпатию из результата генерации, если он есть.
func (m *Message) Sympathy() (int, bool) {
	if m.AIResponse == nil {
		return 0, false
	}
	return m.AIResponse.Sympathy, true
}
