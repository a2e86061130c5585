// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: хранилища, шлюз, сервисы, HTTP API
// и планировщик собираются в одну структуру App.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/api"
	"github.com/Noospaceio/v19/internal/config"
	"github.com/Noospaceio/v19/internal/db/localstore"
	"github.com/Noospaceio/v19/internal/db/postgres"
	"github.com/Noospaceio/v19/internal/features/admin"
	"github.com/Noospaceio/v19/internal/features/feed"
	"github.com/Noospaceio/v19/internal/features/harvest"
	"github.com/Noospaceio/v19/internal/features/ledger"
	"github.com/Noospaceio/v19/internal/features/posting"
	"github.com/Noospaceio/v19/internal/features/quota"
	"github.com/Noospaceio/v19/internal/jobs"
	"github.com/Noospaceio/v19/internal/storage"
)

// App содержит все компоненты приложения.
type App struct {
	HTTP      *http.Server
	API       *api.Server
	Scheduler *jobs.Scheduler
	Gateway   *storage.Gateway
	Local     *localstore.Store
	DB        *pgxpool.Pool // nil, если удалённое хранилище не настроено или недоступно
}

// New создаёт и инициализирует приложение.
// Недоступное удалённое хранилище не ошибка: сервис работает на локальном.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Локальное хранилище ===
	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия локального хранилища: %w", err)
	}

	// === 2. Удалённое хранилище ===
	pool := connectRemote(ctx, cfg)
	var remote storage.Backend
	if pool != nil {
		remote = postgres.NewStore(pool)
	}

	// === 3. Шлюз персистентности ===
	gw := storage.NewGateway(local, remote, storage.Options{RemoteTimeout: cfg.RemoteTimeout})

	// === 4. Сервисы ===
	loc := cfg.Location()
	ledgerService := ledger.New(gw)
	tracker := quota.NewTracker(local)
	harvestService := harvest.NewService(ledgerService, gw)
	feedService := feed.NewService(gw, ledgerService)
	postingService := posting.NewService(tracker, ledgerService, feedService, loc)
	adminService := admin.NewService(cfg.AdminPasswordHash)

	// === 5. HTTP API ===
	apiServer := api.NewServer(api.Deps{
		Remote:  gw,
		Ledger:  ledgerService,
		Harvest: harvestService,
		Feed:    feedService,
		Posting: postingService,
		Admin:   adminService,
	}, api.Options{
		RequestTimeout:    cfg.HTTPRequestTimeout,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		MetricsEnabled:    cfg.MetricsEnabled,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// === 6. Фоновые задачи ===
	jobOpts := jobs.Options{
		PruneSchedule: cfg.QuotaPruneSchedule,
		Location:      loc,
	}
	if cfg.HarvestSweepEnabled {
		jobOpts.SweepSchedule = cfg.HarvestSweepSchedule
	}
	scheduler := jobs.NewScheduler(harvestService, tracker, jobOpts)

	return &App{
		HTTP:      httpServer,
		API:       apiServer,
		Scheduler: scheduler,
		Gateway:   gw,
		Local:     local,
		DB:        pool,
	}, nil
}

// connectRemote подключается к Postgres и применяет миграции.
// Возвращает nil, если DSN не задан или подключиться не удалось.
func connectRemote(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	if !cfg.RemoteConfigured() {
		log.Info("REMOTE_DSN не задан, работаем только с локальным хранилищем")
		return nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Удалённое хранилище недоступно, работаем с локальным")
		return nil
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.WithError(err).Warn("Ошибка миграций, удалённое хранилище отключено")
		pool.Close()
		return nil
	}
	return pool
}

// Run запускает планировщик и HTTP-сервер и блокируется до отмены ctx.
// После отмены сервер завершает текущие запросы за shutdownTimeout.
func (a *App) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", a.HTTP.Addr).Info("HTTP-сервер запущен")
		if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.HTTP.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP-сервера: %w", err)
	}
	log.Info("HTTP-сервер остановлен")
	return nil
}

// Close освобождает хранилища и фоновые ресурсы.
func (a *App) Close() {
	a.API.Close()
	if a.DB != nil {
		a.DB.Close()
	}
	if err := a.Local.Close(); err != nil {
		log.WithError(err).Warn("Ошибка закрытия локального хранилища")
	}
}
