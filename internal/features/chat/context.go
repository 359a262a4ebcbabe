// Package chat — context.go восстанавливает контекст генерации из
// сохранённой истории треда.
//
// Чистые функции без I/O: вся история уже прочитана вызывающим.
package chat

import (
	"fmt"

	"companion-bot/internal/common"
	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/history"
	"companion-bot/internal/generation"
)

// gapThresholdSeconds — пауза между сообщениями, после которой в контекст
// вставляется аннотация «прошло столько-то времени».
const gapThresholdSeconds = 45

// BuildContext собирает упорядоченный контекст генерации:
// один системный промпт + история в хронологическом порядке с
// синтетическими аннотациями пауз, изменений симпатии и отправленных фото.
//
// thread приходит так, как хранится: НОВЫЕ ПЕРВЫМИ. Здесь порядок
// разворачивается.
func BuildContext(character *characters.Character, lang string, thread []*history.Message) []generation.Message {
	// Текущая симпатия — из самого свежего сообщения с результатом
	// генерации; если таких нет, стартовые 5.
	currentSympathy := defaultSympathy
	for _, m := range thread {
		if s, ok := m.Sympathy(); ok {
			currentSympathy = s
			break
		}
	}

	messages := []generation.Message{{
		Role:    generation.RoleSystem,
		Content: systemPrompt(character, lang, currentSympathy),
	}}

	previousSympathy := defaultSympathy
	var previousTimestamp int64
	hasPrevious := false

	// Хронологический обход: от старых к новым
	for i := len(thread) - 1; i >= 0; i-- {
		m := thread[i]

		text := m.Text()
		if text == "" {
			// Стикеры, голосовые и прочее без текста в контекст не попадают
			continue
		}

		// Заметная пауза между сообщениями
		if hasPrevious {
			if gap := m.Date - previousTimestamp; gap > gapThresholdSeconds {
				messages = append(messages, generation.Message{
					Role:    generation.RoleSystem,
					Content: fmt.Sprintf("[%s passed]", common.FormatTimeGap(gap)),
				})
			}
		}

		role := generation.RoleUser
		if m.FromBot() {
			role = generation.RoleAssistant
		}
		messages = append(messages, generation.Message{Role: role, Content: text})

		// Изменение симпатии в реплике персонажа
		if s, ok := m.Sympathy(); ok && s != previousSympathy {
			messages = append(messages, generation.Message{
				Role:    generation.RoleSystem,
				Content: fmt.Sprintf("[Sympathy changed: %s, now at %d/100]", common.FormatSigned(s-previousSympathy), s),
			})
			previousSympathy = s
		}

		// Фото, приложенное к реплике: описываем, что на нём было
		if m.AIResponse != nil && m.AIResponse.HasPhoto() {
			messages = append(messages, generation.Message{
				Role:    generation.RoleSystem,
				Content: fmt.Sprintf("[The assistant attached a photo that shows: %q]", m.AIResponse.PhotoPrompt),
			})
		}

		previousTimestamp = m.Date
		hasPrevious = true
	}

	return messages
}
