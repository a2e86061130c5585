package common

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	locks := NewKeyLock()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(ctx, "wallet-1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.Len())
}

func TestKeyLockDifferentKeysIndependent(t *testing.T) {
	locks := NewKeyLock()
	ctx := context.Background()

	unlockA, err := locks.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := locks.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ключ b заблокирован ключом a")
	}
}

func TestKeyLockContextCancel(t *testing.T) {
	locks := NewKeyLock()

	unlock, err := locks.Lock(context.Background(), "w")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "w")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // повторный вызов безопасен
	assert.Equal(t, 0, locks.Len())
}

func TestInvalidInputErrors(t *testing.T) {
	for _, err := range []error{ErrWalletRequired, ErrContextRequired, ErrEmptyText, ErrTextTooLong, ErrInvalidAmount} {
		assert.True(t, errors.Is(err, ErrInvalidInput), err.Error())
	}
	assert.False(t, errors.Is(ErrInsufficientFunds, ErrInvalidInput))
}

func TestPluralizeDays(t *testing.T) {
	cases := map[int]string{1: "день", 2: "дня", 4: "дня", 5: "дней", 11: "дней", 21: "день", 22: "дня", 0: "дней"}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeDays(n), n)
	}
	assert.Equal(t, "сбор доступен", FormatDaysLeft(0))
	assert.Equal(t, "сбор через 9 дней", FormatDaysLeft(9))
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-14", DayKey(ts, nil))

	msk := time.FixedZone("MSK", 3*60*60)
	assert.Equal(t, "2026-10-15", DayKey(ts, msk))
	assert.Equal(t, "150 NOO", FormatBalance(150))
	assert.Equal(t, "-20 NOO", FormatAmount(-20))
}
