// Package quota — tracker.go хранит дневные счётчики сессий в локальном хранилище.
//
// Трекер сам не следит за сменой дня: ключ дня передаёт вызывающий,
// и новый день просто читается как новый (нулевой) счётчик.
package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Имена ключей в локальном хранилище
const (
	dailyUsedPrefix  = "dailyUsed:"
	cycleStartPrefix = "cycleStart:"
	shadowPrefix     = "shadow:"
)

// CounterStore — строковое хранилище целых счётчиков.
// Реализуется локальным хранилищем (localstore.Store).
type CounterStore interface {
	GetCounter(ctx context.Context, key string) (int64, error)
	SetCounter(ctx context.Context, key string, v int64) error
	DeleteCounter(ctx context.Context, key string) error
	CounterKeys(ctx context.Context, prefix string) ([]string, error)
}

// Tracker ведёт дневные счётчики постов, таймер цикла и теневой счётчик гостей.
// Read-modify-write счётчика одной сессии вызывающий сериализует сам.
type Tracker struct {
	store CounterStore
	limit int
}

// NewTracker создаёт трекер с лимитом DailyLimit.
func NewTracker(store CounterStore) *Tracker {
	return &Tracker{store: store, limit: DailyLimit}
}

// Limit возвращает дневной лимит.
func (t *Tracker) Limit() int { return t.limit }

func dailyKey(contextID, day string) string {
	return dailyUsedPrefix + contextID + ":" + day
}

// Used возвращает, сколько постов сессия сделала в указанный день.
func (t *Tracker) Used(ctx context.Context, contextID, day string) (int, error) {
	v, err := t.store.GetCounter(ctx, dailyKey(contextID, day))
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения квоты: %w", err)
	}
	return int(v), nil
}

// CanPost проверяет квоту сессии на указанный день.
func (t *Tracker) CanPost(ctx context.Context, contextID, day string) (bool, int, error) {
	used, err := t.Used(ctx, contextID, day)
	if err != nil {
		return false, 0, err
	}
	return CanPost(used, t.limit), used, nil
}

// Record увеличивает счётчик дня и возвращает новое значение.
func (t *Tracker) Record(ctx context.Context, contextID, day string) (int, error) {
	used, err := t.Used(ctx, contextID, day)
	if err != nil {
		return 0, err
	}
	next := RecordPost(used)
	if err := t.store.SetCounter(ctx, dailyKey(contextID, day), int64(next)); err != nil {
		return 0, fmt.Errorf("ошибка записи квоты: %w", err)
	}
	return next, nil
}

// Restore возвращает счётчик дня к прежнему значению (откат неудачного поста).
func (t *Tracker) Restore(ctx context.Context, contextID, day string, used int) error {
	if err := t.store.SetCounter(ctx, dailyKey(contextID, day), int64(used)); err != nil {
		return fmt.Errorf("ошибка отката квоты: %w", err)
	}
	return nil
}

// CycleStart возвращает начало цикла сбора для сессии.
// При первом обращении фиксирует now как начало цикла.
func (t *Tracker) CycleStart(ctx context.Context, contextID string, now time.Time) (time.Time, error) {
	key := cycleStartPrefix + contextID
	ms, err := t.store.GetCounter(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка чтения цикла: %w", err)
	}
	if ms > 0 {
		return time.UnixMilli(ms).UTC(), nil
	}

	start := now.UTC()
	if err := t.store.SetCounter(ctx, key, start.UnixMilli()); err != nil {
		return time.Time{}, fmt.Errorf("ошибка записи цикла: %w", err)
	}
	return time.UnixMilli(start.UnixMilli()).UTC(), nil
}

// DaysLeft возвращает дни до сбора урожая для сессии.
func (t *Tracker) DaysLeft(ctx context.Context, contextID string, now time.Time) (int, error) {
	start, err := t.CycleStart(ctx, contextID, now)
	if err != nil {
		return 0, err
	}
	return DaysRemaining(start, now), nil
}

// Shadow возвращает теневой счётчик наград гостя.
func (t *Tracker) Shadow(ctx context.Context, contextID string) (int64, error) {
	v, err := t.store.GetCounter(ctx, shadowPrefix+contextID)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения теневого счётчика: %w", err)
	}
	return v, nil
}

// AddShadow прибавляет delta к теневому счётчику гостя и возвращает новое значение.
// Гостевые награды в леджер не попадают.
func (t *Tracker) AddShadow(ctx context.Context, contextID string, delta int64) (int64, error) {
	cur, err := t.Shadow(ctx, contextID)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	if next < 0 {
		next = 0
	}
	if err := t.store.SetCounter(ctx, shadowPrefix+contextID, next); err != nil {
		return 0, fmt.Errorf("ошибка записи теневого счётчика: %w", err)
	}
	return next, nil
}

// Prune удаляет дневные счётчики всех сессий за дни раньше today.
// Возвращает число удалённых ключей.
func (t *Tracker) Prune(ctx context.Context, today string) (int, error) {
	keys, err := t.store.CounterKeys(ctx, dailyUsedPrefix)
	if err != nil {
		return 0, fmt.Errorf("ошибка обхода квот: %w", err)
	}

	removed := 0
	for _, key := range keys {
		idx := strings.LastIndex(key, ":")
		if idx < 0 {
			continue
		}
		// Ключи дней в формате 2006-01-02 сравниваются лексикографически
		if day := key[idx+1:]; day >= today {
			continue
		}
		if err := t.store.DeleteCounter(ctx, key); err != nil {
			log.WithError(err).WithField("key", key).Warn("Не удалось удалить старый счётчик квоты")
			continue
		}
		removed++
	}
	return removed, nil
}
