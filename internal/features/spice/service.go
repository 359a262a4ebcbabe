// Package spice — service.go содержит бизнес-логику валюты.
//
// Главный инвариант: списание никогда не уводит сумму транзакций
// пользователя в минус. Проверка «хватает ли» и запись списания
// сериализуются по пользователю через keyed-мьютекс — два одновременных
// списания не могут оба пройти проверку по устаревшему балансу.
// Процесс у бота один, поэтому внутрипроцессная блокировка достаточна.
package spice

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"companion-bot/internal/common"
)

// Store — минимальный контракт хранилища журнала.
// Реализуется *Repository; в тестах подменяется in-memory хранилищем.
type Store interface {
	Append(ctx context.Context, userID int64, amount int64, txType Type) (*Transaction, error)
	SumAmount(ctx context.Context, userID int64) (int64, error)
	HasAny(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context, userID int64, limit int) ([]*Transaction, error)
}

// Service управляет спайсом.
type Service struct {
	store Store

	// Пер-пользовательские блокировки для check-then-append.
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	sync.Mutex
	// счётчик ожидающих: запись удаляется из map, когда никто не держит
	// и не ждёт её, иначе map рос бы со всей аудиторией бота
	refs int
}

// NewService создаёт новый сервис спайса.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: make(map[int64]*userLock),
	}
}

// lockUser берёт мьютекс конкретного пользователя и возвращает функцию
// освобождения. Последний освободивший убирает запись из map.
func (s *Service) lockUser(userID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

// Credit начисляет спайс. Сумма строго положительная.
func (s *Service) Credit(ctx context.Context, userID int64, amount int64, txType Type) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if _, err := s.store.Append(ctx, userID, amount, txType); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"type":    txType,
	}).Debug("Спайс начислен")
	return nil
}

// Debit списывает спайс. Сумма строго положительная, в журнал пишется
// отрицательная. Если баланса не хватает — ErrInsufficientBalance,
// журнал не меняется.
func (s *Service) Debit(ctx context.Context, userID int64, amount int64, txType Type) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	unlock := s.lockUser(userID)
	defer unlock()

	balance, err := s.store.SumAmount(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return common.ErrInsufficientBalance
	}

	if _, err := s.store.Append(ctx, userID, -amount, txType); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  -amount,
		"type":    txType,
	}).Debug("Спайс списан")
	return nil
}

// Balance возвращает текущий баланс пользователя (сумма журнала).
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.store.SumAmount(ctx, userID)
}

// CanAfford сообщает, хватит ли пользователю спайса на amount.
func (s *Service) CanAfford(ctx context.Context, userID int64, amount int64) (bool, error) {
	balance, err := s.store.SumAmount(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// GrantInitialBonusIfFirstTime выдаёт стартовый бонус, если у пользователя
// ещё нет НИ ОДНОЙ транзакции. Идемпотентна: безопасно звать на каждом
// /start. Берёт тот же пер-пользовательский лок, что и Debit, чтобы два
// параллельных вызова не выдали бонус дважды.
func (s *Service) GrantInitialBonusIfFirstTime(ctx context.Context, userID int64, amount int64) error {
	unlock := s.lockUser(userID)
	defer unlock()

	has, err := s.store.HasAny(ctx, userID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	if _, err := s.store.Append(ctx, userID, amount, TypeInitialBonus); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "amount": amount}).Info("Выдан стартовый бонус")
	return nil
}

// GrantReferralBonuses начисляет бонусы за приглашение: одному — за то,
// что привёл, другому — за то, что пришёл. Вызывается ровно один раз на
// приглашённого (гарантирует вызывающий: только для свежесозданных).
func (s *Service) GrantReferralBonuses(ctx context.Context, inviterID, inviteeID int64, inviterAmount, inviteeAmount int64) error {
	if err := s.Credit(ctx, inviterID, inviterAmount, TypeInviterBonus); err != nil {
		return fmt.Errorf("бонус пригласившему: %w", err)
	}
	if err := s.Credit(ctx, inviteeID, inviteeAmount, TypeInviteeBonus); err != nil {
		return fmt.Errorf("бонус приглашённому: %w", err)
	}
	log.WithFields(log.Fields{
		"inviter_id": inviterID,
		"invitee_id": inviteeID,
	}).Info("Начислены реферальные бонусы")
	return nil
}

// Transactions возвращает последние limit транзакций пользователя.
func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.List(ctx, userID, limit)
}
