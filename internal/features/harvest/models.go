// Package harvest переносит несобранный урожай (unclaimed) в подтверждённый баланс.
// models.go описывает результаты сбора.
package harvest

import "time"

// Result — итог сбора урожая одного кошелька.
type Result struct {
	Wallet    string    `json:"wallet"`
	Awarded   int64     `json:"awarded"`           // Сколько перенесено (0 = нечего собирать)
	Balance   int64     `json:"balance"`           // Баланс после сбора
	Receipt   string    `json:"receipt,omitempty"` // ID сбора для логов (пусто, если Awarded = 0)
	SettledAt time.Time `json:"settled_at"`
}

// SweepReport — итог пакетного сбора по всем кошелькам.
type SweepReport struct {
	Wallets int   `json:"wallets"` // Сколько кошельков с урожаем нашли
	Settled int   `json:"settled"` // Сколько собрали
	Awarded int64 `json:"awarded"` // Сколько всего перенесено
	Failed  int   `json:"failed"`  // Сколько не удалось
}

// pendingMove — незавершённый сбор: баланс уже записан, unclaimed не обнулён,
// а откат баланса тоже не прошёл. Живёт только в памяти процесса.
type pendingMove struct {
	amount  int64  // перенесённая сумма
	receipt string // ID исходного сбора
}
