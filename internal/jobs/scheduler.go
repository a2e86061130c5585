// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: пакетный сбор урожая
// и ежедневная очистка старых счётчиков квоты.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/common"
	"github.com/Noospaceio/v19/internal/features/harvest"
)

// Sweeper собирает урожай всех кошельков. Реализуется harvest.Service.
type Sweeper interface {
	Sweep(ctx context.Context) (*harvest.SweepReport, error)
}

// Pruner удаляет счётчики квоты за прошедшие дни. Реализуется quota.Tracker.
type Pruner interface {
	Prune(ctx context.Context, today string) (int, error)
}

// Options — расписание задач в формате cron (5 полей).
// Пустое расписание отключает задачу.
type Options struct {
	SweepSchedule string
	PruneSchedule string
	Location      *time.Location
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	pruner  Pruner
	opts    Options

	now func() time.Time
}

// NewScheduler создаёт планировщик задач в часовом поясе opts.Location.
func NewScheduler(sweeper Sweeper, pruner Pruner, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(opts.Location)),
		sweeper: sweeper,
		pruner:  pruner,
		opts:    opts,
		now:     time.Now,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.opts.SweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.opts.SweepSchedule, func() { s.RunSweep(ctx) }); err != nil {
			return fmt.Errorf("расписание сбора урожая: %w", err)
		}
	}
	if s.opts.PruneSchedule != "" {
		if _, err := s.cron.AddFunc(s.opts.PruneSchedule, func() { s.RunPrune(ctx) }); err != nil {
			return fmt.Errorf("расписание очистки квот: %w", err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"sweep":    s.opts.SweepSchedule,
		"prune":    s.opts.PruneSchedule,
		"location": s.opts.Location.String(),
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// Entries возвращает число зарегистрированных задач.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunSweep выполняет пакетный сбор урожая.
func (s *Scheduler) RunSweep(ctx context.Context) {
	log.Info("[CRON] Пакетный сбор урожая")
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		log.WithError(err).Error("[CRON] Ошибка сбора урожая")
	}
}

// RunPrune удаляет счётчики квоты за дни до сегодняшнего.
func (s *Scheduler) RunPrune(ctx context.Context) {
	today := common.DayKey(s.now(), s.opts.Location)
	removed, err := s.pruner.Prune(ctx, today)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка очистки квот")
		return
	}
	log.WithFields(log.Fields{"today": today, "removed": removed}).Info("[CRON] Старые счётчики квоты удалены")
}
