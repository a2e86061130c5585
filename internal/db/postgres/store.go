// Package postgres — store.go реализует удалённое хранилище (storage.Backend)
// поверх таблиц posts, balances и unclaimed.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Noospaceio/v19/internal/common"
	"github.com/Noospaceio/v19/internal/storage"
)

// Store — удалённое хранилище.
type Store struct {
	db *pgxpool.Pool
}

// NewStore создаёт удалённое хранилище поверх пула.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Name возвращает имя хранилища для логов.
func (s *Store) Name() string { return "remote" }

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return common.ErrBackendUnavailable
	}
	return nil
}

// GetAmount возвращает баланс или несобранный урожай кошелька.
// Нет строки — 0, это не ошибка.
func (s *Store) GetAmount(ctx context.Context, field storage.Field, wallet string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var query string
	switch field {
	case storage.FieldBalance:
		query = `SELECT balance FROM balances WHERE wallet = $1`
	case storage.FieldUnclaimed:
		query = `SELECT amount FROM unclaimed WHERE wallet = $1`
	default:
		return 0, fmt.Errorf("неизвестное поле %q", field)
	}

	var amount int64
	err := s.db.QueryRow(ctx, query, wallet).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения %s: %w", field, err)
	}
	return amount, nil
}

// SetAmount записывает поле кошелька (insert-or-update по wallet).
// Нулевой unclaimed удаляет строку целиком.
func (s *Store) SetAmount(ctx context.Context, field storage.Field, wallet string, amount int64) error {
	if err := s.ready(); err != nil {
		return err
	}

	var (
		query string
		args  = []any{wallet, amount}
	)
	switch {
	case field == storage.FieldBalance:
		query = `
			INSERT INTO balances (wallet, balance) VALUES ($1, $2)
			ON CONFLICT (wallet) DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()
		`
	case field == storage.FieldUnclaimed && amount == 0:
		query = `DELETE FROM unclaimed WHERE wallet = $1`
		args = args[:1]
	case field == storage.FieldUnclaimed:
		query = `
			INSERT INTO unclaimed (wallet, amount) VALUES ($1, $2)
			ON CONFLICT (wallet) DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()
		`
	default:
		return fmt.Errorf("неизвестное поле %q", field)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", field, err)
	}
	return nil
}

// AppendPost вставляет пост. Удалённая таблица не обрезается:
// лимит в 200 записей применяется при чтении.
func (s *Store) AppendPost(ctx context.Context, post *storage.Post) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO posts (id, owner, text, reward, resonates, highlighted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, post.ID, post.Wallet, post.Text, post.Reward, post.Resonates, post.Highlighted, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения поста: %w", err)
	}
	return nil
}

const postColumns = `id, owner, text, reward, resonates, highlighted, created_at`

func scanPost(row pgx.Row) (*storage.Post, error) {
	var p storage.Post
	if err := row.Scan(&p.ID, &p.Wallet, &p.Text, &p.Reward, &p.Resonates, &p.Highlighted, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts возвращает последние limit постов, новые первыми.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]*storage.Post, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > storage.MaxPosts {
		limit = storage.MaxPosts
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ленты: %w", err)
	}
	defer rows.Close()

	posts := make([]*storage.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования поста: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения ленты: %w", err)
	}
	return posts, nil
}

// GetPost возвращает пост по ID или nil.
func (s *Store) GetPost(ctx context.Context, id string) (*storage.Post, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	p, err := scanPost(s.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения поста: %w", err)
	}
	return p, nil
}

// IncrementResonates атомарно увеличивает счётчик. Нет поста — 0 строк, не ошибка.
func (s *Store) IncrementResonates(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `UPDATE posts SET resonates = resonates + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ошибка обновления резонансов: %w", err)
	}
	return nil
}

// SetHighlighted помечает пост подсвеченным.
func (s *Store) SetHighlighted(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `UPDATE posts SET highlighted = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("ошибка подсветки поста: %w", err)
	}
	return nil
}

// PendingWallets возвращает кошельки с несобранным урожаем.
func (s *Store) PendingWallets(ctx context.Context) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT wallet FROM unclaimed WHERE amount > 0 ORDER BY wallet`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения кошельков: %w", err)
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
