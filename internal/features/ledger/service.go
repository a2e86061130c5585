// Package ledger — леджер кошельков: подтверждённый баланс и несобранный урожай.
//
// Хранилище не даёт ни атомарного инкремента, ни транзакций на несколько строк,
// поэтому каждое изменение — это чтение + запись через шлюз под блокировкой
// кошелька. Операции разных кошельков друг друга не ждут.
package ledger

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/common"
	"github.com/Noospaceio/v19/internal/storage"
)

// Store — часть шлюза, нужная леджеру.
type Store interface {
	GetAmount(ctx context.Context, field storage.Field, wallet string) (int64, error)
	SetAmount(ctx context.Context, field storage.Field, wallet string, amount int64) error
}

// Ledger владеет записями balance и unclaimed всех кошельков.
type Ledger struct {
	store Store
	locks *common.KeyLock
}

// New создаёт леджер поверх шлюза.
func New(store Store) *Ledger {
	return &Ledger{store: store, locks: common.NewKeyLock()}
}

func validate(wallet string, field storage.Field, amount int64) error {
	if wallet == "" {
		return common.ErrWalletRequired
	}
	if !field.Valid() {
		return fmt.Errorf("%w: неизвестное поле %q", common.ErrInvalidInput, field)
	}
	if amount < 0 {
		return common.ErrInvalidAmount
	}
	return nil
}

// Read возвращает значение поля (0 для незнакомого кошелька).
func (l *Ledger) Read(ctx context.Context, wallet string, field storage.Field) (int64, error) {
	if err := validate(wallet, field, 0); err != nil {
		return 0, err
	}
	v, err := l.store.GetAmount(ctx, field, wallet)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения %s: %w", field, err)
	}
	return v, nil
}

// Credit начисляет amount на поле кошелька и возвращает новое значение.
func (l *Ledger) Credit(ctx context.Context, wallet string, field storage.Field, amount int64) (int64, error) {
	if err := validate(wallet, field, amount); err != nil {
		return 0, err
	}

	var next int64
	err := l.Exclusive(ctx, wallet, func(tx *Tx) error {
		cur, err := tx.Read(ctx, field)
		if err != nil {
			return err
		}
		next = cur + amount
		return tx.Write(ctx, field, next)
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"wallet": wallet,
		"field":  field,
		"amount": amount,
		"value":  next,
	}).Debug("Начисление выполнено")
	return next, nil
}

// Debit списывает amount с поля кошелька и возвращает новое значение.
// Если на поле меньше amount — ErrInsufficientFunds, запись не выполняется.
func (l *Ledger) Debit(ctx context.Context, wallet string, field storage.Field, amount int64) (int64, error) {
	if err := validate(wallet, field, amount); err != nil {
		return 0, err
	}

	var next int64
	err := l.Exclusive(ctx, wallet, func(tx *Tx) error {
		cur, err := tx.Read(ctx, field)
		if err != nil {
			return err
		}
		if cur < amount {
			return fmt.Errorf("%w: нужно %d, есть %d", common.ErrInsufficientFunds, amount, cur)
		}
		next = cur - amount
		return tx.Write(ctx, field, next)
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"wallet": wallet,
		"field":  field,
		"amount": amount,
		"value":  next,
	}).Debug("Списание выполнено")
	return next, nil
}

// Exclusive выполняет fn под блокировкой кошелька.
// Все изменяющие операции леджера и сбор урожая проходят через неё.
func (l *Ledger) Exclusive(ctx context.Context, wallet string, fn func(tx *Tx) error) error {
	if wallet == "" {
		return common.ErrWalletRequired
	}
	unlock, err := l.locks.Lock(ctx, wallet)
	if err != nil {
		return fmt.Errorf("ожидание блокировки кошелька: %w", err)
	}
	defer unlock()

	return fn(&Tx{store: l.store, wallet: wallet})
}

// Tx — доступ к полям одного кошелька внутри Exclusive.
// Вне Exclusive использовать нельзя.
type Tx struct {
	store  Store
	wallet string
}

// Wallet возвращает кошелёк, под которым взята блокировка.
func (tx *Tx) Wallet() string { return tx.wallet }

// Read читает поле кошелька.
func (tx *Tx) Read(ctx context.Context, field storage.Field) (int64, error) {
	v, err := tx.store.GetAmount(ctx, field, tx.wallet)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения %s: %w", field, err)
	}
	return v, nil
}

// Write записывает поле кошелька. Отрицательные значения запрещены.
func (tx *Tx) Write(ctx context.Context, field storage.Field, value int64) error {
	if value < 0 {
		return fmt.Errorf("%w: %s не может стать отрицательным (%d)", common.ErrInternal, field, value)
	}
	if err := tx.store.SetAmount(ctx, field, tx.wallet, value); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", field, err)
	}
	return nil
}
