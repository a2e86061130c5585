// Package quota — quota.go содержит чистые правила дневной квоты
// и расчёт таймера до сбора урожая.
package quota

import (
	"math"
	"time"
)

const (
	// DailyLimit — сколько постов («сфер») можно сделать за день
	DailyLimit = 3
	// HarvestCycle — длина цикла сбора урожая (9 «рассветов»)
	HarvestCycle = 9 * 24 * time.Hour
)

// CanPost проверяет, остались ли посты на сегодня.
func CanPost(usedToday, limit int) bool {
	return usedToday < limit
}

// RecordPost возвращает счётчик после ещё одного поста.
func RecordPost(usedToday int) int {
	return usedToday + 1
}

// Remaining возвращает, сколько постов ещё можно сделать (не меньше 0).
func Remaining(usedToday, limit int) int {
	if usedToday >= limit {
		return 0
	}
	return limit - usedToday
}

// DaysRemaining считает дни до конца цикла сбора:
// ceil(max(0, cycleStart + 9 дней − now) / 1 день).
func DaysRemaining(cycleStart, now time.Time) int {
	diff := cycleStart.Add(HarvestCycle).Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(float64(diff) / float64(24*time.Hour)))
}
