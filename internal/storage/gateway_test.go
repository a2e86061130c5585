package storage_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noospaceio/v19/internal/db/localstore"
	"github.com/Noospaceio/v19/internal/storage"
)

var errNetwork = errors.New("connection refused")

// failingBackend — удалённое хранилище, которое всегда падает.
type failingBackend struct {
	calls atomic.Int64
}

func (f *failingBackend) Name() string { return "remote" }
func (f *failingBackend) GetAmount(context.Context, storage.Field, string) (int64, error) {
	f.calls.Add(1)
	return 0, errNetwork
}
func (f *failingBackend) SetAmount(context.Context, storage.Field, string, int64) error {
	f.calls.Add(1)
	return errNetwork
}
func (f *failingBackend) AppendPost(context.Context, *storage.Post) error {
	f.calls.Add(1)
	return errNetwork
}
func (f *failingBackend) ListPosts(context.Context, int) ([]*storage.Post, error) {
	f.calls.Add(1)
	return nil, errNetwork
}
func (f *failingBackend) GetPost(context.Context, string) (*storage.Post, error) {
	f.calls.Add(1)
	return nil, errNetwork
}
func (f *failingBackend) IncrementResonates(context.Context, string) error {
	f.calls.Add(1)
	return errNetwork
}
func (f *failingBackend) SetHighlighted(context.Context, string) error {
	f.calls.Add(1)
	return errNetwork
}
func (f *failingBackend) PendingWallets(context.Context) ([]string, error) {
	f.calls.Add(1)
	return nil, errNetwork
}

// slowBackend — удалённое хранилище, которое отвечает только после отмены контекста.
type slowBackend struct {
	storage.Backend
}

func (s slowBackend) Name() string { return "remote" }

func (s slowBackend) GetAmount(ctx context.Context, _ storage.Field, _ string) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func newLocal(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGatewayFallsBackOnRemoteFailure(t *testing.T) {
	local := newLocal(t)
	remote := &failingBackend{}
	gw := storage.NewGateway(local, remote, storage.Options{RemoteTimeout: time.Second})
	ctx := context.Background()

	assert.True(t, gw.RemoteConfigured())

	require.NoError(t, gw.SetAmount(ctx, storage.FieldBalance, "w1", 42))
	v, err := gw.GetAmount(ctx, storage.FieldBalance, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	require.NoError(t, gw.SetAmount(ctx, storage.FieldUnclaimed, "w1", 5))
	pending, err := gw.PendingWallets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, pending)

	require.NoError(t, gw.AppendPost(ctx, &storage.Post{ID: "p1", Text: "hi"}))
	require.NoError(t, gw.IncrementResonates(ctx, "p1"))
	require.NoError(t, gw.SetHighlighted(ctx, "p1"))

	posts, err := gw.ListPosts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(1), posts[0].Resonates)
	assert.True(t, posts[0].Highlighted)

	p, err := gw.GetPost(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)

	// Удалённое хранилище пробовали каждый раз
	assert.Equal(t, int64(9), remote.calls.Load())
}

func TestGatewayWithoutRemoteUsesLocal(t *testing.T) {
	local := newLocal(t)
	gw := storage.NewGateway(local, nil, storage.Options{})
	ctx := context.Background()

	assert.False(t, gw.RemoteConfigured())
	require.NoError(t, gw.SetAmount(ctx, storage.FieldUnclaimed, "w", 9))

	v, err := local.GetAmount(ctx, storage.FieldUnclaimed, "w")
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
}

func TestGatewayPrefersHealthyRemote(t *testing.T) {
	local := newLocal(t)
	remote := newLocal(t) // второе хранилище в памяти как «удалённое»
	gw := storage.NewGateway(local, remote, storage.Options{})
	ctx := context.Background()

	require.NoError(t, gw.SetAmount(ctx, storage.FieldBalance, "w", 77))

	v, err := remote.GetAmount(ctx, storage.FieldBalance, "w")
	require.NoError(t, err)
	assert.Equal(t, int64(77), v)

	v, err = local.GetAmount(ctx, storage.FieldBalance, "w")
	require.NoError(t, err)
	assert.Zero(t, v, "локальное хранилище не трогаем, если удалённое ответило")
}

func TestGatewayTimeoutTriggersFallback(t *testing.T) {
	local := newLocal(t)
	require.NoError(t, local.SetAmount(context.Background(), storage.FieldBalance, "w", 3))

	gw := storage.NewGateway(local, slowBackend{}, storage.Options{RemoteTimeout: 20 * time.Millisecond})

	start := time.Now()
	v, err := gw.GetAmount(context.Background(), storage.FieldBalance, "w")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGatewayCallerCancelDoesNotFallBack(t *testing.T) {
	local := newLocal(t)
	gw := storage.NewGateway(local, &failingBackend{}, storage.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gw.SetAmount(ctx, storage.FieldBalance, "w", 1)
	assert.ErrorIs(t, err, context.Canceled)

	v, err := local.GetAmount(context.Background(), storage.FieldBalance, "w")
	require.NoError(t, err)
	assert.Zero(t, v)
}
