// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм, работа с датами, блокировки по ключу.
package common

import (
	"fmt"
	"time"
)

// CurrencyName — название внутренней единицы наград.
const CurrencyName = "NOO"

// DayKeyLayout — формат ключа дня для дневной квоты.
const DayKeyLayout = "2006-01-02"

// FormatBalance форматирует сумму в читабельную строку.
// Пример: FormatBalance(150) → "150 NOO"
func FormatBalance(amount int64) string {
	return fmt.Sprintf("%d %s", amount, CurrencyName)
}

// FormatAmount создаёт строку вида "+7 NOO" или "-20 NOO".
func FormatAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d %s", amount, CurrencyName)
	}
	return fmt.Sprintf("%d %s", amount, CurrencyName)
}

// DayKey возвращает ключ календарного дня для момента t в часовом поясе loc.
// Формат: 2006-01-02
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayKeyLayout)
}
