// Package characters — repository.go выполняет операции с таблицей characters.
package characters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"companion-bot/internal/common"
)

// Repository предоставляет методы для работы с каталогом персонажей.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий персонажей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const characterColumns = `id, slug, name, description, appearance, photo_url, video_url, is_active, created_at`

func scanCharacter(row pgx.Row) (*Character, error) {
	var c Character
	var nameRaw, descRaw []byte
	err := row.Scan(
		&c.ID, &c.Slug, &nameRaw, &descRaw,
		&c.Appearance, &c.PhotoURL, &c.VideoURL, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(nameRaw, &c.Name); err != nil {
		return nil, fmt.Errorf("ошибка разбора имени персонажа: %w", err)
	}
	if err := json.Unmarshal(descRaw, &c.Description); err != nil {
		return nil, fmt.Errorf("ошибка разбора описания персонажа: %w", err)
	}
	return &c, nil
}

// GetByID возвращает персонажа по ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE id = $1`
	c, err := scanCharacter(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения персонажа %d: %w", id, err)
	}
	return c, nil
}

// GetBySlug возвращает персонажа по slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE slug = $1`
	c, err := scanCharacter(r.db.QueryRow(ctx, query, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения персонажа %q: %w", slug, err)
	}
	return c, nil
}

// ListActive возвращает активных персонажей в порядке добавления.
func (r *Repository) ListActive(ctx context.Context) ([]*Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE is_active = TRUE ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога: %w", err)
	}
	defer rows.Close()

	var chars []*Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования персонажа: %w", err)
		}
		chars = append(chars, c)
	}
	return chars, rows.Err()
}

// Upsert создаёт персонажа, если его ещё нет (по slug).
// Существующие записи не трогаем: карточки правятся руками в БД.
func (r *Repository) Upsert(ctx context.Context, c *Character) error {
	nameRaw, err := json.Marshal(c.Name)
	if err != nil {
		return fmt.Errorf("ошибка сериализации имени: %w", err)
	}
	descRaw, err := json.Marshal(c.Description)
	if err != nil {
		return fmt.Errorf("ошибка сериализации описания: %w", err)
	}

	query := `
		INSERT INTO characters (slug, name, description, appearance, photo_url, video_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (slug) DO NOTHING
	`
	_, err = r.db.Exec(ctx, query,
		c.Slug, nameRaw, descRaw, c.Appearance, c.PhotoURL, c.VideoURL, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("ошибка посева персонажа %q: %w", c.Slug, err)
	}
	return nil
}
