// Package history — repository.go выполняет операции с таблицей messages.
// Физического DELETE здесь нет: только INSERT, SELECT и tombstone-UPDATE.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"companion-bot/internal/generation"
)

// Repository предоставляет методы для работы с историей сообщений.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий истории.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create сохраняет сообщение.
func (r *Repository) Create(ctx context.Context, m *Message) error {
	payloadRaw, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации payload: %w", err)
	}

	var aiRaw []byte
	if m.AIResponse != nil {
		aiRaw, err = json.Marshal(m.AIResponse)
		if err != nil {
			return fmt.Errorf("ошибка сериализации ai_response: %w", err)
		}
	}

	query := `
		INSERT INTO messages (chat_id, character_id, message_id, date, payload, ai_response)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = r.db.QueryRow(ctx, query,
		m.ChatID, m.CharacterID, m.MessageID, m.Date, payloadRaw, aiRaw,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения сообщения: %w", err)
	}
	return nil
}

func scanMessage(rows pgx.Rows) (*Message, error) {
	var m Message
	var payloadRaw, aiRaw []byte
	if err := rows.Scan(&m.ID, &m.ChatID, &m.CharacterID, &m.MessageID, &m.Date, &payloadRaw, &aiRaw, &m.DeletedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payloadRaw, &m.Payload); err != nil {
		return nil, fmt.Errorf("ошибка разбора payload: %w", err)
	}
	if len(aiRaw) > 0 {
		m.AIResponse = &generation.Response{}
		if err := json.Unmarshal(aiRaw, m.AIResponse); err != nil {
			return nil, fmt.Errorf("ошибка разбора ai_response: %w", err)
		}
	}
	return &m, nil
}

// Thread возвращает неудалённые сообщения треда (chat, character),
// НОВЫЕ ПЕРВЫМИ — так они хранятся и так их ждёт сборщик контекста.
func (r *Repository) Thread(ctx context.Context, chatID, characterID int64) ([]*Message, error) {
	query := `
		SELECT id, chat_id, character_id, message_id, date, payload, ai_response, deleted_at
		FROM messages
		WHERE chat_id = $1 AND character_id = $2 AND deleted_at IS NULL
		ORDER BY date DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, chatID, characterID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения треда: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования сообщения: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// LastSympathy возвращает симпатию из самого свежего сообщения треда
// с непустым результатом генерации. ok=false, если таких нет.
func (r *Repository) LastSympathy(ctx context.Context, chatID, characterID int64) (int, bool, error) {
	query := `
		SELECT ai_response
		FROM messages
		WHERE chat_id = $1 AND character_id = $2
		  AND deleted_at IS NULL AND ai_response IS NOT NULL
		ORDER BY date DESC, id DESC
		LIMIT 1
	`
	var aiRaw []byte
	err := r.db.QueryRow(ctx, query, chatID, characterID).Scan(&aiRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения симпатии: %w", err)
	}

	var resp generation.Response
	if err := json.Unmarshal(aiRaw, &resp); err != nil {
		return 0, false, fmt.Errorf("ошибка разбора ai_response: %w", err)
	}
	return resp.Sympathy, true, nil
}

// SoftDelete помечает одно сообщение удалённым.
// Возвращает true, если строка существовала и была помечена.
func (r *Repository) SoftDelete(ctx context.Context, chatID int64, messageID int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET deleted_at = NOW()
		WHERE chat_id = $1 AND message_id = $2 AND deleted_at IS NULL
	`, chatID, messageID)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления сообщения: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDeleteThread помечает удалёнными все сообщения треда и возвращает
// их Telegram message_id — чтобы вызывающий следом сделал best-effort
// удаление на стороне транспорта. Два шага намеренно разделены:
// tombstone в БД обязателен, удаление в чате — как получится.
func (r *Repository) SoftDeleteThread(ctx context.Context, chatID, characterID int64) ([]int, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE messages SET deleted_at = NOW()
		WHERE chat_id = $1 AND character_id = $2 AND deleted_at IS NULL
		RETURNING message_id
	`, chatID, characterID)
	if err != nil {
		return nil, fmt.Errorf("ошибка очистки треда: %w", err)
	}
	defer rows.Close()

	var messageIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования message_id: %w", err)
		}
		messageIDs = append(messageIDs, id)
	}
	return messageIDs, rows.Err()
}

// UpdatePayload обновляет сырой payload (после editMessage на транспорте).
func (r *Repository) UpdatePayload(ctx context.Context, chatID int64, messageID int, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages SET payload = $3
		WHERE chat_id = $1 AND message_id = $2
	`, chatID, messageID, payload)
	if err != nil {
		return fmt.Errorf("ошибка обновления payload: %w", err)
	}
	return nil
}
