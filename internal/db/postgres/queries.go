// Package postgres — queries.go содержит SQL-миграции и утилиту для их применения.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// migrationLockID — ключ advisory-блокировки: несколько экземпляров сервиса,
// стартующих одновременно, применяют миграции по очереди.
const migrationLockID = 190419

type migration struct {
	version int
	name    string
	sql     string
}

// SQL-миграции встроены в код для упрощения деплоя.
var migrations = []migration{
	{1, "posts", migration001Posts},
	{2, "ledger", migration002Ledger},
}

var migration001Posts = `
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    owner TEXT,
    text VARCHAR(240) NOT NULL,
    reward BIGINT NOT NULL DEFAULT 0 CHECK (reward >= 0),
    resonates BIGINT NOT NULL DEFAULT 0 CHECK (resonates >= 0),
    highlighted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_owner ON posts(owner);
`

var migration002Ledger = `
CREATE TABLE IF NOT EXISTS balances (
    wallet TEXT PRIMARY KEY,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS unclaimed (
    wallet TEXT PRIMARY KEY,
    amount BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// applyMigration применяет миграцию m в одной транзакции, если она ещё не
// записана в schema_migrations. Возвращает false, если миграция уже была.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) (bool, error) {
	entry := log.WithFields(log.Fields{"version": m.version, "name": m.name})

	applied := false
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("ошибка блокировки миграций: %w", err)
		}

		var done bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version,
		).Scan(&done); err != nil {
			return fmt.Errorf("ошибка проверки версии: %w", err)
		}
		if done {
			return nil
		}

		entry.Debug("Применяем миграцию")
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("ошибка выполнения SQL: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)", m.version,
		); err != nil {
			return fmt.Errorf("ошибка записи версии: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		entry.WithError(err).Error("Миграция не применена")
		return false, err
	}
	return applied, nil
}
