package spice

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-bot/internal/common"
)

// memStore — in-memory реализация Store для тестов.
// Отдельные операции атомарны (как и у Postgres), но check-then-append
// НЕ атомарен — сериализацию обязан обеспечивать сервис.
type memStore struct {
	mu  sync.Mutex
	log map[int64][]*Transaction
}

func newMemStore() *memStore {
	return &memStore{log: make(map[int64][]*Transaction)}
}

func (m *memStore) Append(_ context.Context, userID int64, amount int64, txType Type) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &Transaction{
		ID:     int64(len(m.log[userID]) + 1),
		UserID: userID,
		Amount: amount,
		Type:   txType,
	}
	m.log[userID] = append(m.log[userID], t)
	return t, nil
}

func (m *memStore) SumAmount(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, t := range m.log[userID] {
		total += t.Amount
	}
	return total, nil
}

func (m *memStore) HasAny(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log[userID]) > 0, nil
}

func (m *memStore) List(_ context.Context, userID int64, limit int) ([]*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := m.log[userID]
	if len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}
	out := make([]*Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

func TestBalanceIsAlwaysSumOfAmounts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	require.NoError(t, svc.Credit(ctx, 1, 100, TypeInitialBonus))
	require.NoError(t, svc.Debit(ctx, 1, 30, TypeImageGeneration))
	require.NoError(t, svc.Credit(ctx, 1, 500, TypeStarsDeposit))
	require.NoError(t, svc.Debit(ctx, 1, 1, TypeTextResponse))

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100-30+500-1), balance)

	// Баланс чужого пользователя не затронут
	other, err := svc.Balance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), other)
}

func TestDebitInsufficientBalanceRecordsNothing(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	require.NoError(t, svc.Credit(ctx, 7, 10, TypeInitialBonus))

	err := svc.Debit(ctx, 7, 11, TypeTextResponse)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	balance, err := svc.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	txs, err := svc.Transactions(ctx, 7, 50)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "неудачное списание не должно попадать в журнал")
}

func TestConcurrentDebitsNeverDoubleSpend(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	// Баланс 40, два параллельных списания по 30: пройти должно максимум одно.
	require.NoError(t, svc.Credit(ctx, 3, 40, TypeInitialBonus))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Debit(ctx, 3, 30, TypeImageGeneration)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, common.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded)

	balance, err := svc.Balance(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestUserLocksPrunedAfterRelease(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	const users = 50
	var wg sync.WaitGroup
	for id := int64(1); id <= users; id++ {
		require.NoError(t, svc.Credit(ctx, id, 100, TypeInitialBonus))
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_ = svc.Debit(ctx, id, 1, TypeTextResponse)
			}(id)
		}
	}
	wg.Wait()

	// map блокировок не должна расти вместе с аудиторией
	svc.mu.Lock()
	remaining := len(svc.locks)
	svc.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore())

	assert.ErrorIs(t, svc.Debit(ctx, 1, 0, TypeTextResponse), common.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Debit(ctx, 1, -5, TypeTextResponse), common.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Credit(ctx, 1, 0, TypeDailyBonus), common.ErrInvalidAmount)
}

func TestInitialBonusGrantedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	// Много параллельных вызовов (пользователь жмёт /start) — бонус один.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.GrantInitialBonusIfFirstTime(ctx, 5, 100)
		}()
	}
	wg.Wait()

	balance, err := svc.Balance(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	txs, err := svc.Transactions(ctx, 5, 50)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, TypeInitialBonus, txs[0].Type)
}

func TestInitialBonusNotGrantedAfterAnyTransaction(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	// Любая прошлая транзакция (даже списание после пополнения) гасит бонус.
	require.NoError(t, svc.Credit(ctx, 9, 500, TypeStarsDeposit))
	require.NoError(t, svc.GrantInitialBonusIfFirstTime(ctx, 9, 100))

	balance, err := svc.Balance(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
}

func TestReferralBonusesCreditBothParties(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store)

	require.NoError(t, svc.GrantReferralBonuses(ctx, 100, 200, 100, 50))

	inviter, _ := svc.Balance(ctx, 100)
	invitee, _ := svc.Balance(ctx, 200)
	assert.Equal(t, int64(100), inviter)
	assert.Equal(t, int64(50), invitee)

	txs, err := svc.Transactions(ctx, 200, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, TypeInviteeBonus, txs[0].Type)
}
