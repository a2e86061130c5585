// Package storage — шлюз персистентности.
// models.go описывает записи леджера и ленты и контракт хранилища,
// которому удовлетворяют и удалённое (Postgres), и локальное (LevelDB) хранилища.
package storage

import (
	"context"
	"time"
)

// Field — поле леджера кошелька.
type Field string

const (
	FieldBalance   Field = "balance"   // Подтверждённый (тратимый) баланс
	FieldUnclaimed Field = "unclaimed" // Начислено, но ещё не собрано
)

// Valid сообщает, известно ли поле.
func (f Field) Valid() bool {
	return f == FieldBalance || f == FieldUnclaimed
}

// MaxPosts — сколько последних записей хранит и отдаёт лента.
const MaxPosts = 200

// Post представляет одну запись ленты.
type Post struct {
	ID          string    `json:"id"`          // UUIDv7, упорядочен по времени
	Wallet      *string   `json:"wallet"`      // nil для гостевых постов
	Text        string    `json:"text"`        // До 240 символов
	Reward      int64     `json:"reward"`      // Начисленная награда
	CreatedAt   time.Time `json:"created_at"`  // Время публикации
	Resonates   int64     `json:"resonates"`   // Счётчик «резонансов»
	Highlighted bool      `json:"highlighted"` // Подсвечен после жертвы
}

// Backend — одна реализация хранилища.
// Любая ошибка удалённой реализации трактуется шлюзом как недоступность.
// Отсутствие записи — не ошибка: суммы читаются как 0, посты как nil.
type Backend interface {
	// Name — имя для логов и метрик ("remote", "local").
	Name() string

	GetAmount(ctx context.Context, field Field, wallet string) (int64, error)
	SetAmount(ctx context.Context, field Field, wallet string, amount int64) error

	AppendPost(ctx context.Context, post *Post) error
	ListPosts(ctx context.Context, limit int) ([]*Post, error)
	GetPost(ctx context.Context, id string) (*Post, error)
	IncrementResonates(ctx context.Context, id string) error
	SetHighlighted(ctx context.Context, id string) error

	// PendingWallets возвращает кошельки с unclaimed > 0.
	PendingWallets(ctx context.Context) ([]string, error)
}
