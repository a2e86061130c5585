// Package posting публикует записи: квота, награда, начисление и добавление в ленту.
// models.go описывает запрос и результат публикации.
package posting

import "github.com/Noospaceio/v19/internal/storage"

// MaxTextLength — максимальная длина текста записи в символах.
const MaxTextLength = 240

// Request — запрос на публикацию.
type Request struct {
	Wallet    string // Пусто для гостей
	ContextID string // Идентификатор сессии, к нему привязана дневная квота
	Text      string
	Intent    bool // Пост «с намерением», награда ×1.4
}

// Result — итог публикации.
type Result struct {
	Post       *storage.Post `json:"post"`
	UsedToday  int           `json:"used_today"`
	Remaining  int           `json:"remaining"`
	DaysLeft   int           `json:"days_until_harvest"`
	Unclaimed  int64         `json:"unclaimed"` // Для кошелька: несобранный урожай после начисления
	Shadow     int64         `json:"shadow"`    // Для гостя: теневой счётчик после начисления
	RewardText string        `json:"reward_text"`
}

// Status — состояние квоты сессии.
type Status struct {
	UsedToday   int    `json:"used_today"`
	Limit       int    `json:"limit"`
	Remaining   int    `json:"remaining"`
	DaysLeft    int    `json:"days_until_harvest"`
	HarvestText string `json:"harvest_text"`
	Shadow      int64  `json:"shadow"`
}
