// Package localstore — локальное резервное хранилище на LevelDB.
//
// Хранилище строковое: ключ → значение, как localStorage в браузере.
// Имена ключей стабильные, чтобы данные переживали перезапуск процесса:
//
//	balance:<wallet>            подтверждённый баланс
//	unclaimed:<wallet>          несобранный урожай
//	posts                       JSON-список постов, новые первыми, максимум 200
//	dailyUsed:<context>:<day>   посты за день в сессии
//	cycleStart:<context>        начало цикла сбора (unix ms)
//	shadow:<context>            теневой счётчик наград гостя
//
// Отсутствие ключа — не ошибка: числа читаются как 0, списки как пустые.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Noospaceio/v19/internal/storage"
)

// Префиксы и имена ключей
const (
	postsKey        = "posts"
	balancePrefix   = "balance:"
	unclaimedPrefix = "unclaimed:"
)

// Store — локальное хранилище. Реализует storage.Backend.
type Store struct {
	db *leveldb.DB

	// postsMu сериализует read-modify-write списка постов
	postsMu sync.Mutex
}

// Open открывает (или создаёт) базу по указанному пути.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("не указан путь к локальному хранилищу")
	}
	db, err := leveldb.OpenFile(trimmed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия локального хранилища: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory открывает хранилище в памяти (для тестов и демо-режима).
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия хранилища в памяти: %w", err)
	}
	return &Store{db: db}, nil
}

// Close освобождает ресурсы LevelDB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Name возвращает имя хранилища для логов.
func (s *Store) Name() string { return "local" }

func amountKey(field storage.Field, wallet string) (string, error) {
	switch field {
	case storage.FieldBalance:
		return balancePrefix + wallet, nil
	case storage.FieldUnclaimed:
		return unclaimedPrefix + wallet, nil
	default:
		return "", fmt.Errorf("неизвестное поле %q", field)
	}
}

// GetAmount читает поле леджера кошелька.
func (s *Store) GetAmount(ctx context.Context, field storage.Field, wallet string) (int64, error) {
	key, err := amountKey(field, wallet)
	if err != nil {
		return 0, err
	}
	return s.GetCounter(ctx, key)
}

// SetAmount записывает поле леджера кошелька.
func (s *Store) SetAmount(ctx context.Context, field storage.Field, wallet string, amount int64) error {
	key, err := amountKey(field, wallet)
	if err != nil {
		return err
	}
	return s.SetCounter(ctx, key, amount)
}

// GetCounter читает целое значение по ключу (0, если ключа нет).
func (s *Store) GetCounter(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения %s: %w", key, err)
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("повреждённое значение %s: %w", key, err)
	}
	return v, nil
}

// SetCounter записывает целое значение по ключу.
func (s *Store) SetCounter(ctx context.Context, key string, v int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Put([]byte(key), []byte(strconv.FormatInt(v, 10)), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", key, err)
	}
	return nil
}

// DeleteCounter удаляет ключ. Отсутствующий ключ — не ошибка.
func (s *Store) DeleteCounter(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", key, err)
	}
	return nil
}

// CounterKeys возвращает все ключи с указанным префиксом.
func (s *Store) CounterKeys(ctx context.Context, prefix string) ([]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("ошибка обхода ключей %s*: %w", prefix, err)
	}
	return keys, nil
}

// loadPosts читает список постов. Вызывать под postsMu.
func (s *Store) loadPosts() ([]*storage.Post, error) {
	raw, err := s.db.Get([]byte(postsKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ленты: %w", err)
	}
	var posts []*storage.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("повреждённая лента: %w", err)
	}
	return posts, nil
}

// savePosts записывает список постов. Вызывать под postsMu.
func (s *Store) savePosts(posts []*storage.Post) error {
	raw, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("ошибка сериализации ленты: %w", err)
	}
	if err := s.db.Put([]byte(postsKey), raw, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("ошибка записи ленты: %w", err)
	}
	return nil
}

// AppendPost добавляет пост в начало ленты и обрезает её до 200 записей.
func (s *Store) AppendPost(ctx context.Context, post *storage.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.postsMu.Lock()
	defer s.postsMu.Unlock()

	posts, err := s.loadPosts()
	if err != nil {
		return err
	}
	cp := *post
	posts = append([]*storage.Post{&cp}, posts...)
	if len(posts) > storage.MaxPosts {
		posts = posts[:storage.MaxPosts]
	}
	return s.savePosts(posts)
}

// ListPosts возвращает последние limit постов, новые первыми.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]*storage.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.postsMu.Lock()
	posts, err := s.loadPosts()
	s.postsMu.Unlock()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	if posts == nil {
		posts = []*storage.Post{}
	}
	return posts, nil
}

// GetPost возвращает пост по ID или nil.
func (s *Store) GetPost(ctx context.Context, id string) (*storage.Post, error) {
	posts, err := s.ListPosts(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

// updatePost применяет fn к посту с указанным ID. Нет поста — ничего не делает.
func (s *Store) updatePost(ctx context.Context, id string, fn func(p *storage.Post)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.postsMu.Lock()
	defer s.postsMu.Unlock()

	posts, err := s.loadPosts()
	if err != nil {
		return err
	}
	for _, p := range posts {
		if p.ID == id {
			fn(p)
			return s.savePosts(posts)
		}
	}
	return nil
}

// IncrementResonates увеличивает счётчик резонансов на 1.
func (s *Store) IncrementResonates(ctx context.Context, id string) error {
	return s.updatePost(ctx, id, func(p *storage.Post) { p.Resonates++ })
}

// SetHighlighted помечает пост подсвеченным.
func (s *Store) SetHighlighted(ctx context.Context, id string) error {
	return s.updatePost(ctx, id, func(p *storage.Post) { p.Highlighted = true })
}

// PendingWallets возвращает кошельки с unclaimed > 0.
func (s *Store) PendingWallets(ctx context.Context) ([]string, error) {
	keys, err := s.CounterKeys(ctx, unclaimedPrefix)
	if err != nil {
		return nil, err
	}
	wallets := make([]string, 0, len(keys))
	for _, key := range keys {
		v, err := s.GetCounter(ctx, key)
		if err != nil {
			return nil, err
		}
		if v > 0 {
			wallets = append(wallets, strings.TrimPrefix(key, unclaimedPrefix))
		}
	}
	return wallets, nil
}
