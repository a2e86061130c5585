// Package feed — лента записей: добавление, чтение, резонансы и жертва NOO
// за подсветку записи.
package feed

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/common"
	"github.com/Noospaceio/v19/internal/storage"
)

// SacrificeCost — сколько NOO списывается за подсветку записи.
const SacrificeCost int64 = 20

var sacrificesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "noospace",
	Subsystem: "feed",
	Name:      "sacrifices_total",
	Help:      "Posts highlighted by a balance sacrifice.",
})

// Store — часть шлюза, нужная ленте.
type Store interface {
	AppendPost(ctx context.Context, post *storage.Post) error
	ListPosts(ctx context.Context, limit int) ([]*storage.Post, error)
	GetPost(ctx context.Context, id string) (*storage.Post, error)
	IncrementResonates(ctx context.Context, id string) error
	SetHighlighted(ctx context.Context, id string) error
}

// Balances читает, списывает и возвращает подтверждённый баланс.
// Реализуется леджером.
type Balances interface {
	Read(ctx context.Context, wallet string, field storage.Field) (int64, error)
	Debit(ctx context.Context, wallet string, field storage.Field, amount int64) (int64, error)
	Credit(ctx context.Context, wallet string, field storage.Field, amount int64) (int64, error)
}

// Service работает с лентой.
type Service struct {
	store    Store
	balances Balances
}

// NewService создаёт сервис ленты.
func NewService(store Store, balances Balances) *Service {
	return &Service{store: store, balances: balances}
}

// Append добавляет запись в начало ленты.
func (s *Service) Append(ctx context.Context, post *storage.Post) error {
	if post == nil || post.ID == "" {
		return fmt.Errorf("%w: запись без ID", common.ErrInvalidInput)
	}
	if err := s.store.AppendPost(ctx, post); err != nil {
		return fmt.Errorf("ошибка добавления записи: %w", err)
	}
	return nil
}

// List возвращает последние записи, новые первыми.
// limit приводится к диапазону 1..MaxPosts.
func (s *Service) List(ctx context.Context, limit int) ([]*storage.Post, error) {
	if limit < 1 || limit > storage.MaxPosts {
		limit = storage.MaxPosts
	}
	posts, err := s.store.ListPosts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ленты: %w", err)
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// Resonate увеличивает счётчик резонансов. Неизвестный ID — не ошибка.
func (s *Service) Resonate(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: пустой ID записи", common.ErrInvalidInput)
	}
	if err := s.store.IncrementResonates(ctx, id); err != nil {
		return fmt.Errorf("ошибка резонанса: %w", err)
	}
	return nil
}

// Sacrifice списывает SacrificeCost с баланса кошелька и подсвечивает запись.
// Возвращает баланс после списания.
func (s *Service) Sacrifice(ctx context.Context, wallet, id string) (int64, error) {
	if wallet == "" {
		return 0, common.ErrWalletRequired
	}

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения записи: %w", err)
	}
	if post == nil {
		return 0, common.ErrPostNotFound
	}

	balance, err := s.balances.Debit(ctx, wallet, storage.FieldBalance, SacrificeCost)
	if err != nil {
		return 0, err
	}

	if err := s.store.SetHighlighted(ctx, id); err != nil {
		// Подсветить не удалось — возвращаем списанное
		if _, refundErr := s.balances.Credit(ctx, wallet, storage.FieldBalance, SacrificeCost); refundErr != nil {
			log.WithError(refundErr).WithFields(log.Fields{
				"wallet": wallet,
				"post":   id,
				"amount": SacrificeCost,
			}).Error("Не удалось вернуть NOO после неудачной жертвы")
		}
		return 0, fmt.Errorf("ошибка подсветки записи: %w", err)
	}

	sacrificesTotal.Inc()
	log.WithFields(log.Fields{
		"wallet":  wallet,
		"post":    id,
		"balance": balance,
	}).Info("Запись подсвечена")
	return balance, nil
}

// FarmedTotal — сколько кошелёк нафармил за всё время: сумма наград его
// записей в ленте плюс подтверждённый баланс. Считается только по
// последним MaxPosts записям, которые хранит лента.
func (s *Service) FarmedTotal(ctx context.Context, wallet string) (int64, error) {
	if wallet == "" {
		return 0, common.ErrWalletRequired
	}

	posts, err := s.store.ListPosts(ctx, storage.MaxPosts)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения ленты: %w", err)
	}

	var total int64
	for _, p := range posts {
		if p.Wallet != nil && *p.Wallet == wallet {
			total += p.Reward
		}
	}

	balance, err := s.balances.Read(ctx, wallet, storage.FieldBalance)
	if err != nil {
		return 0, err
	}
	return total + balance, nil
}
