// Package generation — клиент текстовой генерации (DeepSeek chat completions)
// и структурированный формат ответа модели.
package generation

import (
	"fmt"
	"strings"

	"companion-bot/internal/common"
)

// Роли записей контекста.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message — одна запись контекста генерации.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response — структурированный ответ модели.
// Модель обязана вернуть ровно этот JSON-объект (response_format=json_object).
type Response struct {
	// Текст реплики персонажа
	Answer string `json:"answer"`
	// Текущая симпатия персонажа к пользователю, 0—100
	Sympathy int `json:"sympathy"`
	// 3—4 коротких варианта ответа для клавиатуры
	ReplySuggestions []string `json:"reply_suggestions"`
	// Англоязычный промпт для генерации фото; пустой почти всегда
	PhotoPrompt string `json:"photo_prompt,omitempty"`
}

// Validate проверяет форму ответа модели ПЕРЕД использованием.
// Модели нельзя доверять: нарушение схемы — это сбой генерации,
// а не повод уронить обработчик.
func (r *Response) Validate() error {
	if strings.TrimSpace(r.Answer) == "" {
		return fmt.Errorf("%w: пустой answer", common.ErrInvalidAIResponse)
	}
	if r.Sympathy < 0 || r.Sympathy > 100 {
		return fmt.Errorf("%w: sympathy %d вне диапазона [0,100]", common.ErrInvalidAIResponse, r.Sympathy)
	}

	// Подсказки чистим, но их отсутствие не считаем ошибкой:
	// клавиатуру просто не покажем
	cleaned := r.ReplySuggestions[:0]
	for _, s := range r.ReplySuggestions {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	r.ReplySuggestions = cleaned

	r.PhotoPrompt = strings.TrimSpace(r.PhotoPrompt)
	return nil
}

// HasPhoto сообщает, запросила ли модель фото.
func (r *Response) HasPhoto() bool {
	return r.PhotoPrompt != ""
}
