// Package users — пользователи бота.
// models.go описывает запись пользователя.
package users

import (
	"strings"
	"time"
)

// Role — роль пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User — запись пользователя. ID совпадает с Telegram user ID.
type User struct {
	ID        int64  `db:"id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	// Флаг достижимости: false, когда пользователь заблокировал бота.
	// Пока false — никаких попыток написать ему.
	AllowsWriteToPM bool   `db:"allows_write_to_pm"`
	LanguageCode    string `db:"language_code"`
	// Язык, выбранный в онбординге (приоритетнее language_code)
	SelectedLanguage    string `db:"selected_language"`
	SelectedCharacterID *int64 `db:"selected_character_id"`
	Role                Role   `db:"role"`
	// UTM-метка из deep-link /start
	UTM       string    `db:"utm"`
	InviterID *int64    `db:"inviter_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Lang возвращает действующий язык пользователя:
// выбранный в онбординге → язык клиента Telegram → английский.
func (u *User) Lang() string {
	if u.SelectedLanguage != "" {
		return u.SelectedLanguage
	}
	if u.LanguageCode != "" {
		return u.LanguageCode
	}
	return "en"
}

// FullName — имя для отображения: "Имя Фамилия" или @username.
func (u *User) FullName() string {
	parts := make([]string, 0, 2)
	if u.FirstName != "" {
		parts = append(parts, u.FirstName)
	}
	if u.LastName != "" {
		parts = append(parts, u.LastName)
	}
	if len(parts) == 0 {
		return "@" + u.Username
	}
	return strings.Join(parts, " ")
}

// HasCharacter сообщает, выбран ли персонаж.
func (u *User) HasCharacter() bool {
	return u.SelectedCharacterID != nil
}

// IsAdmin сообщает, админ ли пользователь.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile — плоские поля из Telegram для регистрации/обновления.
// Транспортный тип сюда не тянем, чтобы слой данных не зависел от API бота.
type Profile struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}
