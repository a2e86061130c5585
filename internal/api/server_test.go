package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"github.com/Noospaceio/v19/internal/db/localstore"
	"github.com/Noospaceio/v19/internal/features/admin"
	"github.com/Noospaceio/v19/internal/features/feed"
	"github.com/Noospaceio/v19/internal/features/harvest"
	"github.com/Noospaceio/v19/internal/features/ledger"
	"github.com/Noospaceio/v19/internal/features/posting"
	"github.com/Noospaceio/v19/internal/features/quota"
	"github.com/Noospaceio/v19/internal/storage"
)

type testEnv struct {
	handler http.Handler
	gw      *storage.Gateway
}

func openMemory(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func adminHash(password string) string {
	salt := []byte("fedcba9876543210")
	key := argon2.IDKey([]byte(password), salt, 1, 1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=1024,t=1,p=1$%s$%s", argon2.Version,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

// newEnv собирает сервер поверх in-memory хранилищ.
// withRemote подставляет второе in-memory хранилище в роли удалённого.
func newEnv(t *testing.T, withRemote bool, opts Options) *testEnv {
	t.Helper()
	local := openMemory(t)
	var remote storage.Backend
	if withRemote {
		remote = openMemory(t)
	}

	gw := storage.NewGateway(local, remote, storage.Options{RemoteTimeout: time.Second})
	l := ledger.New(gw)
	fs := feed.NewService(gw, l)

	srv := NewServer(Deps{
		Remote:  gw,
		Ledger:  l,
		Harvest: harvest.NewService(l, gw),
		Feed:    fs,
		Posting: posting.NewService(quota.NewTracker(local), l, fs, time.UTC),
		Admin:   admin.NewService(adminHash("letmein")),
	}, opts)
	t.Cleanup(srv.Close)

	return &testEnv{handler: srv.Handler(), gw: gw}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHarvestEndpoint(t *testing.T) {
	t.Run("method not allowed", func(t *testing.T) {
		env := newEnv(t, true, Options{})
		rec, body := env.do(t, http.MethodGet, "/api/harvest", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, false, body["ok"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("missing wallet", func(t *testing.T) {
		env := newEnv(t, true, Options{})
		rec, body := env.do(t, http.MethodPost, "/api/harvest", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing wallet", body["error"])

		rec, _ = env.do(t, http.MethodPost, "/api/harvest", `{not json`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("remote not configured", func(t *testing.T) {
		env := newEnv(t, false, Options{})
		rec, body := env.do(t, http.MethodPost, "/api/harvest", `{"wallet":"w"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["ok"])
	})

	t.Run("settles once", func(t *testing.T) {
		env := newEnv(t, true, Options{})
		ctx := testContext(t)
		require.NoError(t, env.gw.SetAmount(ctx, storage.FieldUnclaimed, "w", 14))

		rec, body := env.do(t, http.MethodPost, "/api/harvest", `{"wallet":"w"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, float64(14), body["awarded"])

		_, body = env.do(t, http.MethodPost, "/api/harvest", `{"wallet":"w"}`, nil)
		assert.Equal(t, float64(0), body["awarded"])

		balance, err := env.gw.GetAmount(ctx, storage.FieldBalance, "w")
		require.NoError(t, err)
		assert.Equal(t, int64(14), balance)
	})
}

func TestPostsFlow(t *testing.T) {
	env := newEnv(t, false, Options{})
	session := map[string]string{headerSessionID: "s1"}

	rec, body := env.do(t, http.MethodPost, "/api/posts", `{"wallet":"w","text":"hello","intent":true}`, session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(1), body["used_today"])
	post, ok := body["post"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), post["reward"])
	id, _ := post["id"].(string)
	require.NotEmpty(t, id)

	for i := 0; i < 2; i++ {
		rec, _ = env.do(t, http.MethodPost, "/api/posts", `{"wallet":"w","text":"more"}`, session)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/posts", `{"wallet":"w","text":"too many"}`, session)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/posts", `{"wallet":"w","text":"hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/posts?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts, ok := body["posts"].([]any)
	require.True(t, ok)
	assert.Len(t, posts, 2)

	rec, _ = env.do(t, http.MethodPost, "/api/posts/"+id+"/resonate", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/wallets/w", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(17), body["unclaimed"])
	assert.Equal(t, float64(0), body["balance"])
	assert.Equal(t, float64(17), body["farmed"])

	rec, body = env.do(t, http.MethodGet, "/api/quota", "", session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["used_today"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, float64(9), body["days_until_harvest"])
}

func TestSacrificeEndpoint(t *testing.T) {
	env := newEnv(t, false, Options{})
	ctx := testContext(t)
	require.NoError(t, env.gw.AppendPost(ctx, &storage.Post{ID: "p1", Text: "x", CreatedAt: time.Now()}))
	require.NoError(t, env.gw.SetAmount(ctx, storage.FieldBalance, "w", 10))

	rec, _ := env.do(t, http.MethodPost, "/api/posts/p1/sacrifice", `{"wallet":"w"}`, nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/posts/nope/sacrifice", `{"wallet":"w"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/posts/p1/sacrifice", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, env.gw.SetAmount(ctx, storage.FieldBalance, "w", 25))
	rec, body := env.do(t, http.MethodPost, "/api/posts/p1/sacrifice", `{"wallet":"w"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), body["balance"])

	// Чужая запись в farmed не входит, остаётся только баланс
	_, body = env.do(t, http.MethodGet, "/api/wallets/w", "", nil)
	assert.Equal(t, float64(5), body["farmed"])
}

func TestAdminSweep(t *testing.T) {
	env := newEnv(t, false, Options{})
	ctx := testContext(t)
	require.NoError(t, env.gw.SetAmount(ctx, storage.FieldUnclaimed, "a", 5))

	rec, _ := env.do(t, http.MethodPost, "/api/admin/sweep", "", map[string]string{headerAdminPassword: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/admin/sweep", "", map[string]string{headerAdminPassword: "letmein"})
	require.Equal(t, http.StatusOK, rec.Code)
	report, ok := body["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), report["awarded"])
}

func TestRateLimit(t *testing.T) {
	env := newEnv(t, false, Options{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodGet, "/api/posts", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := env.do(t, http.MethodGet, "/api/posts", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Служебные маршруты лимитом не ограничены
	rec, _ = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(2 * time.Minute)
	rl.sweep()
	assert.Zero(t, rl.Len())
	assert.True(t, rl.Allow("a"))
}

// testContext mirrors testing.T.Context (Go 1.24+): the context is canceled
// just before the test's Cleanup-registered functions run.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
