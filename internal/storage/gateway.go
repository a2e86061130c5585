// Package storage — gateway.go выбирает хранилище для каждого вызова.
//
// Если удалённое хранилище настроено, вызов сначала идёт туда (с таймаутом).
// Любая ошибка удалённого вызова — сеть, авторизация, таймаут — не выходит
// наружу: та же операция целиком повторяется в локальном хранилище.
// Результаты двух хранилищ никогда не смешиваются.
package storage

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultRemoteTimeout — таймаут удалённого вызова, если в Options не задан.
const DefaultRemoteTimeout = 3 * time.Second

// Options — параметры шлюза.
type Options struct {
	RemoteTimeout time.Duration // Сколько ждать удалённое хранилище
}

// Gateway направляет операции в удалённое или локальное хранилище.
type Gateway struct {
	local   Backend
	remote  Backend // nil = удалённое хранилище не настроено
	timeout time.Duration
}

// NewGateway создаёт шлюз. remote может быть nil — тогда всё идёт в local.
func NewGateway(local Backend, remote Backend, opts Options) *Gateway {
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Gateway{local: local, remote: remote, timeout: timeout}
}

// RemoteConfigured сообщает, настроено ли удалённое хранилище.
func (g *Gateway) RemoteConfigured() bool {
	return g.remote != nil
}

// call выполняет операцию сначала в удалённом хранилище, при ошибке — в локальном.
func call[T any](ctx context.Context, g *Gateway, op string, fn func(ctx context.Context, b Backend) (T, error)) (T, error) {
	if g.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, g.timeout)
		v, err := fn(rctx, g.remote)
		cancel()
		if err == nil {
			return v, nil
		}

		// Вызывающий сам отменил запрос — уходить в локальное хранилище незачем
		if ctxErr := ctx.Err(); ctxErr != nil {
			var zero T
			return zero, ctxErr
		}

		fallbackTotal.WithLabelValues(op).Inc()
		log.WithError(err).WithFields(log.Fields{
			"op":      op,
			"backend": g.remote.Name(),
		}).Warn("Удалённое хранилище недоступно, выполняем в локальном")
	}

	v, err := fn(ctx, g.local)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s (%s): %w", op, g.local.Name(), err)
	}
	return v, nil
}

// exec — вариант call для операций без результата.
func exec(ctx context.Context, g *Gateway, op string, fn func(ctx context.Context, b Backend) error) error {
	_, err := call(ctx, g, op, func(ctx context.Context, b Backend) (struct{}, error) {
		return struct{}{}, fn(ctx, b)
	})
	return err
}

// GetAmount читает поле леджера (0, если записи нет).
func (g *Gateway) GetAmount(ctx context.Context, field Field, wallet string) (int64, error) {
	return call(ctx, g, "get_"+string(field), func(ctx context.Context, b Backend) (int64, error) {
		return b.GetAmount(ctx, field, wallet)
	})
}

// SetAmount записывает поле леджера.
func (g *Gateway) SetAmount(ctx context.Context, field Field, wallet string, amount int64) error {
	return exec(ctx, g, "set_"+string(field), func(ctx context.Context, b Backend) error {
		return b.SetAmount(ctx, field, wallet, amount)
	})
}

// AppendPost добавляет запись в начало ленты.
func (g *Gateway) AppendPost(ctx context.Context, post *Post) error {
	return exec(ctx, g, "append_post", func(ctx context.Context, b Backend) error {
		return b.AppendPost(ctx, post)
	})
}

// ListPosts возвращает последние limit записей, новые первыми.
func (g *Gateway) ListPosts(ctx context.Context, limit int) ([]*Post, error) {
	return call(ctx, g, "list_posts", func(ctx context.Context, b Backend) ([]*Post, error) {
		return b.ListPosts(ctx, limit)
	})
}

// GetPost возвращает запись по ID или nil, если её нет.
func (g *Gateway) GetPost(ctx context.Context, id string) (*Post, error) {
	return call(ctx, g, "get_post", func(ctx context.Context, b Backend) (*Post, error) {
		return b.GetPost(ctx, id)
	})
}

// IncrementResonates увеличивает счётчик резонансов (no-op, если записи нет).
func (g *Gateway) IncrementResonates(ctx context.Context, id string) error {
	return exec(ctx, g, "increment_post", func(ctx context.Context, b Backend) error {
		return b.IncrementResonates(ctx, id)
	})
}

// SetHighlighted помечает запись подсвеченной (no-op, если записи нет).
func (g *Gateway) SetHighlighted(ctx context.Context, id string) error {
	return exec(ctx, g, "highlight_post", func(ctx context.Context, b Backend) error {
		return b.SetHighlighted(ctx, id)
	})
}

// PendingWallets возвращает кошельки с несобранным урожаем.
func (g *Gateway) PendingWallets(ctx context.Context) ([]string, error) {
	return call(ctx, g, "pending_wallets", func(ctx context.Context, b Backend) ([]string, error) {
		return b.PendingWallets(ctx)
	})
}
