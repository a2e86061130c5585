// Package common — pluralize.go содержит вспомогательные функции
// для правильного склонения русских числительных.
package common

import "fmt"

// PluralizeDays возвращает правильную форму слова «день» для числа n.
//
// Правила:
//   - 1, 21, 31 → "день"
//   - 2-4, 22-24 → "дня"
//   - 0, 5-20, 25-30 → "дней"
func PluralizeDays(n int) string {
	absN := n
	if absN < 0 {
		absN = -absN
	}
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// FormatDaysLeft создаёт строку для таймера сбора урожая.
//
// Примеры:
//
//	FormatDaysLeft(0) → "сбор доступен"
//	FormatDaysLeft(1) → "сбор через 1 день"
//	FormatDaysLeft(5) → "сбор через 5 дней"
func FormatDaysLeft(days int) string {
	if days <= 0 {
		return "сбор доступен"
	}
	return fmt.Sprintf("сбор через %d %s", days, PluralizeDays(days))
}
