// Package posting — service.go содержит публикацию записи.
//
// Шаги выполняются под блокировкой сессии:
//  1. проверка квоты и её резервирование;
//  2. расчёт награды;
//  3. начисление в unclaimed (кошелёк) или в теневой счётчик (гость);
//  4. добавление записи в ленту.
//
// Ошибка на любом шаге после резервирования откатывает предыдущие шаги.
package posting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/common"
	"github.com/Noospaceio/v19/internal/features/quota"
	"github.com/Noospaceio/v19/internal/features/reward"
	"github.com/Noospaceio/v19/internal/storage"
)

var postsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "noospace",
	Subsystem: "posting",
	Name:      "posts_total",
	Help:      "Post attempts by outcome.",
}, []string{"outcome"})

// Credits начисляет и списывает несобранный урожай. Реализуется леджером.
type Credits interface {
	Credit(ctx context.Context, wallet string, field storage.Field, amount int64) (int64, error)
	Debit(ctx context.Context, wallet string, field storage.Field, amount int64) (int64, error)
}

// Appender добавляет запись в ленту. Реализуется сервисом ленты.
type Appender interface {
	Append(ctx context.Context, post *storage.Post) error
}

// Service публикует записи.
type Service struct {
	quota   *quota.Tracker
	credits Credits
	feed    Appender
	locks   *common.KeyLock
	loc     *time.Location

	now func() time.Time
}

// NewService создаёт сервис публикации. loc задаёт границу календарного дня квоты.
func NewService(tracker *quota.Tracker, credits Credits, feed Appender, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		quota:   tracker,
		credits: credits,
		feed:    feed,
		locks:   common.NewKeyLock(),
		loc:     loc,
		now:     time.Now,
	}
}

func validate(req *Request) error {
	req.Text = strings.TrimSpace(req.Text)
	req.Wallet = strings.TrimSpace(req.Wallet)
	if req.ContextID == "" {
		return common.ErrContextRequired
	}
	if req.Text == "" {
		return common.ErrEmptyText
	}
	if utf8.RuneCountInString(req.Text) > MaxTextLength {
		return common.ErrTextTooLong
	}
	return nil
}

// Post публикует запись.
// Исчерпанная квота — ErrQuotaExceeded, при этом ничего не начисляется и не пишется.
func (s *Service) Post(ctx context.Context, req Request) (*Result, error) {
	if err := validate(&req); err != nil {
		postsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, req.ContextID)
	if err != nil {
		return nil, fmt.Errorf("ожидание блокировки сессии: %w", err)
	}
	defer unlock()

	now := s.now()
	day := common.DayKey(now, s.loc)

	ok, used, err := s.quota.CanPost(ctx, req.ContextID, day)
	if err != nil {
		return nil, err
	}
	if !ok {
		postsTotal.WithLabelValues("quota_exceeded").Inc()
		return nil, common.ErrQuotaExceeded
	}

	res, err := s.publish(ctx, req, now, day)
	if err != nil {
		postsTotal.WithLabelValues("failed").Inc()
		// Квота резервировалась под этот пост — возвращаем её
		if rErr := s.quota.Restore(ctx, req.ContextID, day, used); rErr != nil {
			log.WithError(rErr).WithField("context", req.ContextID).Error("Не удалось откатить квоту")
		}
		return nil, err
	}

	postsTotal.WithLabelValues("published").Inc()
	log.WithFields(log.Fields{
		"post":    res.Post.ID,
		"context": req.ContextID,
		"guest":   req.Wallet == "",
		"reward":  res.Post.Reward,
		"used":    res.UsedToday,
	}).Info("Запись опубликована")
	return res, nil
}

// publish выполняет шаги после проверки квоты. Вызывать под блокировкой сессии.
func (s *Service) publish(ctx context.Context, req Request, now time.Time, day string) (*Result, error) {
	usedNow, err := s.quota.Record(ctx, req.ContextID, day)
	if err != nil {
		return nil, err
	}

	daysLeft, err := s.quota.DaysLeft(ctx, req.ContextID, now)
	if err != nil {
		return nil, err
	}

	amount := reward.Calculate(reward.BaseReward, req.Intent)
	res := &Result{
		UsedToday:  usedNow,
		Remaining:  quota.Remaining(usedNow, s.quota.Limit()),
		DaysLeft:   daysLeft,
		RewardText: common.FormatAmount(amount),
	}

	if req.Wallet != "" {
		if res.Unclaimed, err = s.credits.Credit(ctx, req.Wallet, storage.FieldUnclaimed, amount); err != nil {
			return nil, err
		}
	} else {
		if res.Shadow, err = s.quota.AddShadow(ctx, req.ContextID, amount); err != nil {
			return nil, err
		}
	}

	post := &storage.Post{
		ID:        newPostID(),
		Text:      req.Text,
		Reward:    amount,
		CreatedAt: now.UTC(),
	}
	if req.Wallet != "" {
		w := req.Wallet
		post.Wallet = &w
	}

	if err := s.feed.Append(ctx, post); err != nil {
		s.revokeReward(ctx, req, amount)
		return nil, err
	}

	res.Post = post
	return res, nil
}

// revokeReward отменяет начисление за неопубликованную запись.
func (s *Service) revokeReward(ctx context.Context, req Request, amount int64) {
	var err error
	if req.Wallet != "" {
		_, err = s.credits.Debit(ctx, req.Wallet, storage.FieldUnclaimed, amount)
		// Урожай могли собрать между начислением и откатом
		if errors.Is(err, common.ErrInsufficientFunds) {
			log.WithField("wallet", req.Wallet).Warn("Награда уже собрана, откат начисления пропущен")
			return
		}
	} else {
		_, err = s.quota.AddShadow(ctx, req.ContextID, -amount)
	}
	if err != nil {
		log.WithError(err).WithField("context", req.ContextID).Error("Не удалось откатить начисление")
	}
}

// Status возвращает состояние квоты сессии на сегодня.
// Чтение с побочным эффектом: первый вызов для новой сессии фиксирует
// начало её цикла сбора (счётчик cycleStart:<contextID>), как и первый пост.
func (s *Service) Status(ctx context.Context, contextID string) (*Status, error) {
	if contextID == "" {
		return nil, common.ErrContextRequired
	}
	now := s.now()
	used, err := s.quota.Used(ctx, contextID, common.DayKey(now, s.loc))
	if err != nil {
		return nil, err
	}
	daysLeft, err := s.quota.DaysLeft(ctx, contextID, now)
	if err != nil {
		return nil, err
	}
	shadow, err := s.quota.Shadow(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return &Status{
		UsedToday:   used,
		Limit:       s.quota.Limit(),
		Remaining:   quota.Remaining(used, s.quota.Limit()),
		DaysLeft:    daysLeft,
		HarvestText: common.FormatDaysLeft(daysLeft),
		Shadow:      shadow,
	}, nil
}

func newPostID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
