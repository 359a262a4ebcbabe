package middleware

import (
	"sync"
	"time"
)

// RateLimiter ограничивает частоту сообщений от одного пользователя
// скользящим окном. Каждая генерация стоит денег (LLM + картинки),
// поэтому флуд режем ещё до оркестратора.
//
// Отметки времени в срезе упорядочены по возрастанию, так что протухший
// префикс отрезается одним срезом без пересборки.
type RateLimiter struct {
	mu     sync.Mutex
	seen   map[int64][]time.Time
	limit  int
	window time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		seen:   make(map[int64][]time.Time),
		limit:  limit,
		window: window,
		stopCh: make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Close останавливает фоновую уборку. Вызывается на shutdown.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow сообщает, можно ли обработать очередное сообщение пользователя,
// и при положительном ответе учитывает его в окне.
func (rl *RateLimiter) Allow(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	marks := trimExpired(rl.seen[userID], now.Add(-rl.window))

	if len(marks) >= rl.limit {
		rl.seen[userID] = marks
		return false
	}

	rl.seen[userID] = append(marks, now)
	return true
}

// trimExpired отрезает отметки старше cutoff. Срез упорядочен,
// достаточно найти первую живую.
func trimExpired(marks []time.Time, cutoff time.Time) []time.Time {
	for i, t := range marks {
		if t.After(cutoff) {
			return marks[i:]
		}
	}
	return nil
}

// sweep периодически выкидывает пользователей, замолчавших целиком,
// чтобы карта не росла бесконечно.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rl.window)
			for userID, marks := range rl.seen {
				if live := trimExpired(marks, cutoff); live == nil {
					delete(rl.seen, userID)
				} else {
					rl.seen[userID] = live
				}
			}
			rl.mu.Unlock()
		}
	}
}
