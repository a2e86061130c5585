package localstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noospaceio/v19/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAmountsDefaultToZero(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	v, err := s.GetAmount(ctx, storage.FieldBalance, "unknown")
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, s.SetAmount(ctx, storage.FieldUnclaimed, "w1", 42))
	v, err = s.GetAmount(ctx, storage.FieldUnclaimed, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	// Поля не пересекаются
	v, err = s.GetAmount(ctx, storage.FieldBalance, "w1")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = s.GetAmount(ctx, storage.Field("bogus"), "w1")
	assert.Error(t, err)
}

func TestPostsCappedNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 205; i++ {
		require.NoError(t, s.AppendPost(ctx, &storage.Post{
			ID:        fmt.Sprintf("p%03d", i),
			Text:      "seed",
			Reward:    5,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	posts, err := s.ListPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, posts, storage.MaxPosts)
	assert.Equal(t, "p204", posts[0].ID)
	assert.Equal(t, "p005", posts[len(posts)-1].ID)

	posts, err = s.ListPosts(ctx, 3)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p202", posts[2].ID)
}

func TestEmptyFeed(t *testing.T) {
	s := newStore(t)

	posts, err := s.ListPosts(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestResonateAndHighlight(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendPost(ctx, &storage.Post{ID: "a", Text: "hello"}))

	require.NoError(t, s.IncrementResonates(ctx, "a"))
	require.NoError(t, s.IncrementResonates(ctx, "a"))
	require.NoError(t, s.SetHighlighted(ctx, "a"))

	// Неизвестный пост — не ошибка
	require.NoError(t, s.IncrementResonates(ctx, "missing"))

	p, err := s.GetPost(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(2), p.Resonates)
	assert.True(t, p.Highlighted)

	p, err = s.GetPost(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPendingWallets(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetAmount(ctx, storage.FieldUnclaimed, "w1", 7))
	require.NoError(t, s.SetAmount(ctx, storage.FieldUnclaimed, "w2", 0))
	require.NoError(t, s.SetAmount(ctx, storage.FieldBalance, "w3", 100))

	wallets, err := s.PendingWallets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, wallets)
}

func TestCountersAndKeys(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCounter(ctx, "dailyUsed:s1:2026-10-13", 3))
	require.NoError(t, s.SetCounter(ctx, "dailyUsed:s1:2026-10-14", 1))
	require.NoError(t, s.SetCounter(ctx, "shadow:s1", 12))

	keys, err := s.CounterKeys(ctx, "dailyUsed:")
	require.NoError(t, err)
	assert.Equal(t, []string{"dailyUsed:s1:2026-10-13", "dailyUsed:s1:2026-10-14"}, keys)

	require.NoError(t, s.DeleteCounter(ctx, "dailyUsed:s1:2026-10-13"))
	require.NoError(t, s.DeleteCounter(ctx, "never-existed"))
	v, err := s.GetCounter(ctx, "dailyUsed:s1:2026-10-13")
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noo")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetAmount(ctx, storage.FieldBalance, "w1", 99))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.GetAmount(ctx, storage.FieldBalance, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), v)

	_, err = Open("  ")
	assert.Error(t, err)
}
