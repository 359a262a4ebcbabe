// Package users — repository.go выполняет операции с таблицей users,
// включая сырой запрос двупороговой выборки «замолчавших» пользователей
// для фонового сканера.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"companion-bot/internal/common"
)

// Repository предоставляет методы для работы с пользователями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий пользователей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, first_name, last_name, allows_write_to_pm,
	language_code, COALESCE(selected_language, ''), selected_character_id, role,
	COALESCE(utm, ''), inviter_id, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.AllowsWriteToPM,
		&u.LanguageCode, &u.SelectedLanguage, &u.SelectedCharacterID, &u.Role,
		&u.UTM, &u.InviterID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID возвращает пользователя по Telegram ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя %d: %w", id, err)
	}
	return u, nil
}

// Upsert создаёт пользователя или обновляет его профиль из Telegram.
// Возвращает актуальную запись и флаг created (нужен для реферальных бонусов:
// они выдаются только свежесозданным).
// utm и inviterID записываются только при создании.
func (r *Repository) Upsert(ctx context.Context, p Profile, utm string, inviterID *int64) (*User, bool, error) {
	query := `
		INSERT INTO users (id, username, first_name, last_name, language_code, utm, inviter_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			language_code = EXCLUDED.language_code,
			updated_at = NOW()
		RETURNING ` + userColumns + `, (xmax = 0) AS created
	`
	var u User
	var created bool
	err := r.db.QueryRow(ctx, query,
		p.ID, p.Username, p.FirstName, p.LastName, p.LanguageCode, utm, inviterID,
	).Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.AllowsWriteToPM,
		&u.LanguageCode, &u.SelectedLanguage, &u.SelectedCharacterID, &u.Role,
		&u.UTM, &u.InviterID, &u.CreatedAt, &u.UpdatedAt,
		&created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка регистрации пользователя %d: %w", p.ID, err)
	}
	return &u, created, nil
}

// SetLanguage сохраняет язык, выбранный в онбординге.
func (r *Repository) SetLanguage(ctx context.Context, userID int64, lang string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET selected_language = $2, updated_at = NOW() WHERE id = $1`,
		userID, lang,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения языка: %w", err)
	}
	return nil
}

// SetCharacter сохраняет выбранного персонажа.
func (r *Repository) SetCharacter(ctx context.Context, userID int64, characterID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET selected_character_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, characterID,
	)
	if err != nil {
		return fmt.Errorf("ошибка выбора персонажа: %w", err)
	}
	return nil
}

// SetAllowsWriteToPM переключает флаг достижимости.
func (r *Repository) SetAllowsWriteToPM(ctx context.Context, userID int64, allowed bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET allows_write_to_pm = $2, updated_at = NOW() WHERE id = $1`,
		userID, allowed,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления флага достижимости: %w", err)
	}
	return nil
}

// ListAdmins возвращает всех администраторов (для уведомления о рестарте).
func (r *Repository) ListAdmins(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'admin'`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения админов: %w", err)
	}
	defer rows.Close()

	var admins []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования админа: %w", err)
		}
		admins = append(admins, u)
	}
	return admins, rows.Err()
}

// proactiveWindowOpen решает по хвосту треда (флаги «это ответ ассистента»,
// от новых к старым), можно ли сделать очередной «первый шаг»: если все
// последние window сообщений — инициативы ассистента, пользователь молчит
// слишком упорно и очередная инициатива подавляется. Максимум window-1
// безответных инициатив подряд.
func proactiveWindowOpen(window int, recentFromBot []bool) bool {
	if len(recentFromBot) > window {
		recentFromBot = recentFromBot[:window]
	}
	fromBot := 0
	for _, b := range recentFromBot {
		if b {
			fromBot++
		}
	}
	return fromBot < window
}

// FindInactive возвращает пользователей, подходящих под одну политику
// «молчания» сканера: активный персонаж выбран, бот не заблокирован,
// в треде есть неудалённые сообщения и последнее старше порога.
// Оконное условие (не все последние window сообщений — ответы ассистента)
// применяется в Go через proactiveWindowOpen по хвосту треда из запроса.
func (r *Repository) FindInactive(ctx context.Context, threshold time.Duration, window int) ([]*User, error) {
	cutoff := time.Now().Add(-threshold).Unix()

	query := `
		SELECT ` + userColumns + `,
		  ARRAY(
			SELECT m.ai_response IS NOT NULL
			FROM messages m
			WHERE m.chat_id = u.id
			  AND m.character_id = u.selected_character_id
			  AND m.deleted_at IS NULL
			ORDER BY m.date DESC
			LIMIT $2
		  ) AS recent_from_bot
		FROM users u
		WHERE u.selected_character_id IS NOT NULL
		  AND u.allows_write_to_pm = TRUE
		  AND EXISTS (
			SELECT 1
			FROM messages m
			WHERE m.chat_id = u.id
			  AND m.character_id = u.selected_character_id
			  AND m.deleted_at IS NULL
			HAVING MAX(m.date) < $1
		  )
	`
	rows, err := r.db.Query(ctx, query, cutoff, window)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки неактивных пользователей: %w", err)
	}
	defer rows.Close()

	var found []*User
	for rows.Next() {
		var u User
		var recentFromBot []bool
		err := rows.Scan(
			&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.AllowsWriteToPM,
			&u.LanguageCode, &u.SelectedLanguage, &u.SelectedCharacterID, &u.Role,
			&u.UTM, &u.InviterID, &u.CreatedAt, &u.UpdatedAt,
			&recentFromBot,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		if !proactiveWindowOpen(window, recentFromBot) {
			continue
		}
		found = append(found, &u)
	}
	return found, rows.Err()
}
