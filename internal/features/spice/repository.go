// Package spice — repository.go выполняет все операции с таблицей spice_transactions.
// Таблица append-only: только INSERT и SELECT, никаких UPDATE/DELETE.
package spice

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository предоставляет методы для работы с журналом транзакций.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий спайса.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Append добавляет транзакцию в журнал.
// amount уже со знаком: вызывающий решает, начисление это или списание.
func (r *Repository) Append(ctx context.Context, userID int64, amount int64, txType Type) (*Transaction, error) {
	query := `
		INSERT INTO spice_transactions (user_id, amount, transaction_type)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, amount, transaction_type, created_at
	`
	var t Transaction
	err := r.db.QueryRow(ctx, query, userID, amount, string(txType)).Scan(
		&t.ID, &t.UserID, &t.Amount, &t.Type, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return &t, nil
}

// SumAmount возвращает сумму всех транзакций пользователя.
// Это и есть баланс; ноль, если транзакций нет.
func (r *Repository) SumAmount(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM spice_transactions WHERE user_id = $1`
	var total int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта баланса: %w", err)
	}
	return total, nil
}

// HasAny сообщает, есть ли у пользователя хотя бы одна транзакция любого типа.
// Нужно для идемпотентной выдачи стартового бонуса.
func (r *Repository) HasAny(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM spice_transactions WHERE user_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки транзакций: %w", err)
	}
	return exists, nil
}

// List возвращает последние N транзакций пользователя, новые первыми.
func (r *Repository) List(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	query := `
		SELECT id, user_id, amount, transaction_type, created_at
		FROM spice_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}
