// Package admin проверяет пароль администратора для служебных операций.
// models.go описывает учёт попыток входа.
package admin

import "time"

const (
	// MaxFailedAttempts — сколько неудачных попыток допускается за AttemptWindow
	MaxFailedAttempts = 3
	// AttemptWindow — окно учёта неудачных попыток
	AttemptWindow = time.Hour
)

// attempts — неудачные попытки входа одного клиента (для защиты от brute-force).
type attempts struct {
	failed []time.Time
}

// recent оставляет только попытки новее cutoff и возвращает их число.
func (a *attempts) recent(cutoff time.Time) int {
	kept := a.failed[:0]
	for _, t := range a.failed {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	a.failed = kept
	return len(kept)
}
