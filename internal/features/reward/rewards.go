// Package reward — rewards.go содержит расчёт награды за пост.
// Чистая функция: без I/O и побочных эффектов.
package reward

import "math"

const (
	// BaseReward — базовая награда за один пост
	BaseReward int64 = 5
	// IntentMultiplier — множитель за пост «с намерением» (мантра)
	IntentMultiplier = 1.4
)

// Calculate вычисляет награду в NOO.
//
// Формула: round(base * (intent ? 1.4 : 1.0)).
// Округление — math.Round (половина от нуля); для неотрицательных сумм
// это обычное округление половины вверх.
//
//	Calculate(5, true)  → 7
//	Calculate(5, false) → 5
func Calculate(base int64, intent bool) int64 {
	mult := 1.0
	if intent {
		mult = IntentMultiplier
	}
	return int64(math.Round(float64(base) * mult))
}
