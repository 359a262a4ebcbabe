package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-bot/internal/config"
	"companion-bot/internal/features/users"
)

type fakeFinder struct {
	// ответы на последовательные вызовы FindInactive (короткая политика,
	// затем длинная)
	batches [][]*users.User
	calls   int
	windows []int
	err     error
}

func (f *fakeFinder) FindInactive(_ context.Context, _ time.Duration, window int) ([]*users.User, error) {
	f.windows = append(f.windows, window)
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch, nil
}

type fakeResponder struct {
	responded []int64
	failFor   int64
}

func (f *fakeResponder) RespondProactive(_ context.Context, u *users.User) error {
	f.responded = append(f.responded, u.ID)
	if u.ID == f.failFor {
		return errors.New("генерация не удалась")
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		ScannerShortThreshold: 2 * time.Minute,
		ScannerShortWindow:    2,
		ScannerLongThreshold:  24 * time.Hour,
		ScannerLongWindow:     3,
	}
}

func TestScanInactiveDeduplicatesPolicies(t *testing.T) {
	// Пользователь 1 попал под обе политики: «первый шаг» ровно один
	finder := &fakeFinder{batches: [][]*users.User{
		{{ID: 1}, {ID: 2}},
		{{ID: 1}, {ID: 3}},
	}}
	responder := &fakeResponder{}

	s := NewScheduler(testConfig(), finder, responder)
	s.scanInactive(context.Background())

	require.Equal(t, []int{2, 3}, finder.windows)
	assert.ElementsMatch(t, []int64{1, 2, 3}, responder.responded)
}

func TestScanInactiveContinuesAfterUserFailure(t *testing.T) {
	finder := &fakeFinder{batches: [][]*users.User{
		{{ID: 1}, {ID: 2}, {ID: 3}},
		nil,
	}}
	responder := &fakeResponder{failFor: 2}

	s := NewScheduler(testConfig(), finder, responder)
	s.scanInactive(context.Background())

	// ошибка одного пользователя не останавливает остальных
	assert.ElementsMatch(t, []int64{1, 2, 3}, responder.responded)
}

func TestScanInactiveSkipsTickOnFinderError(t *testing.T) {
	finder := &fakeFinder{err: errors.New("база недоступна")}
	responder := &fakeResponder{}

	s := NewScheduler(testConfig(), finder, responder)
	s.scanInactive(context.Background())

	assert.Empty(t, responder.responded)
}
