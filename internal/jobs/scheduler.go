// Package jobs управляет фоновыми задачами (cron).
// scheduler.go запускает сканер неактивности: персонаж сам пишет
// пользователю, который замолчал.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/config"
	"companion-bot/internal/features/users"
)

// InactiveFinder отдаёт пользователей, замолчавших дольше threshold
// (реализуется users.Service).
type InactiveFinder interface {
	FindInactive(ctx context.Context, threshold time.Duration, window int) ([]*users.User, error)
}

// ProactiveResponder делает «первый шаг» от имени персонажа
// (реализуется chat.Service).
type ProactiveResponder interface {
	RespondProactive(ctx context.Context, user *users.User) error
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	finder    InactiveFinder
	responder ProactiveResponder

	// защита от наложения тиков: медленная генерация не должна
	// порождать второй параллельный скан
	scanning atomic.Bool
	started  atomic.Bool
}

// NewScheduler создаёт планировщик с секундной гранулярностью.
func NewScheduler(cfg *config.Config, finder InactiveFinder, responder ProactiveResponder) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		cfg:       cfg,
		finder:    finder,
		responder: responder,
	}
}

// Start запускает сканер неактивности. Повторный вызов — no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	spec := "@every " + s.cfg.ScannerInterval.String()
	if _, err := s.cron.AddFunc(spec, func() {
		s.scanInactive(ctx)
	}); err != nil {
		log.WithError(err).Error("[CRON] Не удалось зарегистрировать сканер неактивности")
		return
	}

	s.cron.Start()
	log.WithField("interval", s.cfg.ScannerInterval).Info("Планировщик задач запущен")
}

// Stop останавливает планировщик и дожидается завершения задач.
func (s *Scheduler) Stop() {
	if !s.started.Load() {
		return
	}
	<-s.cron.Stop().Done()
	log.Info("Планировщик задач остановлен")
}

// scanInactive — один тик сканера: две политики неактивности,
// объединение без дублей, последовательные «первые шаги».
func (s *Scheduler) scanInactive(ctx context.Context) {
	if !s.scanning.CompareAndSwap(false, true) {
		log.Debug("[CRON] Предыдущий скан ещё идёт, тик пропущен")
		return
	}
	defer s.scanning.Store(false)

	short, err := s.finder.FindInactive(ctx, s.cfg.ScannerShortThreshold, s.cfg.ScannerShortWindow)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка поиска неактивных (короткая политика)")
		return
	}
	long, err := s.finder.FindInactive(ctx, s.cfg.ScannerLongThreshold, s.cfg.ScannerLongWindow)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка поиска неактивных (длинная политика)")
		return
	}

	unique := make(map[int64]*users.User, len(short)+len(long))
	for _, u := range append(short, long...) {
		unique[u.ID] = u
	}
	if len(unique) == 0 {
		return
	}
	log.WithField("count", len(unique)).Debug("[CRON] Найдены замолчавшие пользователи")

	// Последовательно: один LLM-бэкенд, параллелить смысла нет,
	// а ошибка одного пользователя не должна останавливать остальных
	for _, u := range unique {
		if ctx.Err() != nil {
			return
		}
		if err := s.responder.RespondProactive(ctx, u); err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("[CRON] Первый шаг не удался")
		}
	}
}
