// Package harvest — service.go содержит сбор урожая.
//
// Сбор одного кошелька выполняется под той же блокировкой, что и операции леджера:
//  1. Читаем unclaimed. Если 0 — собирать нечего.
//  2. Читаем balance, пишем balance + unclaimed.
//  3. Обнуляем unclaimed.
//
// Если шаг 3 не прошёл, баланс откатывается. Если не прошёл и откат, сбор
// запоминается как незавершённый, и повторный вызов только дописывает шаг 3:
// вычитает из unclaimed перенесённую сумму, не трогая баланс.
// Поэтому повтор неудачного сбора всегда безопасен: сумма переносится ровно один раз.
package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/common"
	"github.com/Noospaceio/v19/internal/features/ledger"
	"github.com/Noospaceio/v19/internal/storage"
)

var (
	awardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "noospace",
		Subsystem: "harvest",
		Name:      "awarded_total",
		Help:      "Units moved from unclaimed to balance.",
	})
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noospace",
		Subsystem: "harvest",
		Name:      "settlements_total",
		Help:      "Settlement calls by outcome.",
	}, []string{"outcome"})
)

// WalletLister возвращает кошельки с несобранным урожаем.
type WalletLister interface {
	PendingWallets(ctx context.Context) ([]string, error)
}

// Service выполняет сбор урожая.
type Service struct {
	ledger  *ledger.Ledger
	wallets WalletLister

	mu      sync.Mutex
	pending map[string]pendingMove

	now func() time.Time
}

// NewService создаёт сервис сбора урожая.
func NewService(l *ledger.Ledger, wallets WalletLister) *Service {
	return &Service{
		ledger:  l,
		wallets: wallets,
		pending: make(map[string]pendingMove),
		now:     time.Now,
	}
}

// Settle собирает урожай кошелька. Повторный вызов сразу после успешного
// сбора видит unclaimed = 0 и возвращает Awarded = 0.
func (s *Service) Settle(ctx context.Context, wallet string) (*Result, error) {
	if wallet == "" {
		return nil, common.ErrWalletRequired
	}

	var res *Result
	err := s.ledger.Exclusive(ctx, wallet, func(tx *ledger.Tx) error {
		var err error
		if p, ok := s.takePending(wallet); ok {
			res, err = s.finish(ctx, tx, p)
		} else {
			res, err = s.settle(ctx, tx)
		}
		return err
	})
	if err != nil {
		settlementsTotal.WithLabelValues("failed").Inc()
		log.WithError(err).WithField("wallet", wallet).Error("Ошибка сбора урожая")
		return nil, err
	}

	if res.Awarded == 0 {
		settlementsTotal.WithLabelValues("empty").Inc()
		return res, nil
	}

	settlementsTotal.WithLabelValues("settled").Inc()
	awardedTotal.Add(float64(res.Awarded))
	log.WithFields(log.Fields{
		"wallet":  wallet,
		"awarded": res.Awarded,
		"balance": res.Balance,
		"receipt": res.Receipt,
	}).Info("Урожай собран")
	return res, nil
}

// settle выполняет обычный сбор. Вызывать под блокировкой кошелька.
func (s *Service) settle(ctx context.Context, tx *ledger.Tx) (*Result, error) {
	wallet := tx.Wallet()

	unclaimed, err := tx.Read(ctx, storage.FieldUnclaimed)
	if err != nil {
		return nil, internal(err)
	}

	balance, err := tx.Read(ctx, storage.FieldBalance)
	if err != nil {
		return nil, internal(err)
	}

	if unclaimed == 0 {
		return &Result{Wallet: wallet, Balance: balance, SettledAt: s.now().UTC()}, nil
	}

	target := balance + unclaimed
	if err := tx.Write(ctx, storage.FieldBalance, target); err != nil {
		return nil, internal(err)
	}

	receipt := newReceipt()
	if err := tx.Write(ctx, storage.FieldUnclaimed, 0); err != nil {
		// Откатываем баланс, чтобы следующий сбор не перенёс сумму второй раз
		if rbErr := tx.Write(ctx, storage.FieldBalance, balance); rbErr != nil {
			s.setPending(wallet, pendingMove{amount: unclaimed, receipt: receipt})
			log.WithError(rbErr).WithFields(log.Fields{
				"wallet":  wallet,
				"receipt": receipt,
			}).Error("Не удалось откатить баланс, сбор помечен незавершённым")
		}
		return nil, internal(err)
	}

	return &Result{
		Wallet:    wallet,
		Awarded:   unclaimed,
		Balance:   target,
		Receipt:   receipt,
		SettledAt: s.now().UTC(),
	}, nil
}

// finish дописывает незавершённый сбор. Вызывать под блокировкой кошелька.
// Сумма p.amount уже на балансе и всё ещё лежит в unclaimed, поэтому из
// unclaimed вычитается только она: начисления и списания, прошедшие между
// прерванным сбором и повтором, сохраняются.
func (s *Service) finish(ctx context.Context, tx *ledger.Tx, p pendingMove) (*Result, error) {
	unclaimed, err := tx.Read(ctx, storage.FieldUnclaimed)
	if err != nil {
		s.setPending(tx.Wallet(), p)
		return nil, internal(err)
	}

	balance, err := tx.Read(ctx, storage.FieldBalance)
	if err != nil {
		s.setPending(tx.Wallet(), p)
		return nil, internal(err)
	}

	rest := max(unclaimed-p.amount, 0)
	if err := tx.Write(ctx, storage.FieldUnclaimed, rest); err != nil {
		s.setPending(tx.Wallet(), p)
		return nil, internal(err)
	}

	return &Result{
		Wallet:    tx.Wallet(),
		Awarded:   p.amount,
		Balance:   balance,
		Receipt:   p.receipt,
		SettledAt: s.now().UTC(),
	}, nil
}

// Sweep собирает урожай всех кошельков, у которых он есть.
// Ошибка одного кошелька не останавливает остальные.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	wallets, err := s.wallets.PendingWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения кошельков: %w", err)
	}

	report := &SweepReport{Wallets: len(wallets)}
	for _, w := range wallets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.Settle(ctx, w)
		if err != nil {
			report.Failed++
			continue
		}
		if res.Awarded > 0 {
			report.Settled++
			report.Awarded += res.Awarded
		}
	}

	log.WithFields(log.Fields{
		"wallets": report.Wallets,
		"settled": report.Settled,
		"awarded": report.Awarded,
		"failed":  report.Failed,
	}).Info("Пакетный сбор урожая завершён")
	return report, nil
}

func (s *Service) takePending(wallet string) (pendingMove, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[wallet]
	if ok {
		delete(s.pending, wallet)
	}
	return p, ok
}

func (s *Service) setPending(wallet string, p pendingMove) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[wallet] = p
}

func internal(err error) error {
	return fmt.Errorf("%w: сбор урожая: %v", common.ErrInternal, err)
}

func newReceipt() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
