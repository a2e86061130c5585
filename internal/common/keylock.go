package common

import (
	"context"
	"sync"
)

// KeyLock — мьютекс по строковому ключу (кошелёк, сессия).
// Операции с разными ключами друг друга не блокируют.
// Ожидание блокировки прерывается отменой контекста.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{} // буфер 1: занят = в канале лежит значение
	refs int           // сколько горутин держат или ждут ключ
}

// NewKeyLock создаёт пустой набор блокировок.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyEntry)}
}

// Lock захватывает ключ. Возвращает функцию освобождения.
// Если ctx отменён раньше, чем ключ освободился, возвращает ctx.Err().
func (k *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *KeyLock) release(key string, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Len возвращает число ключей, которые сейчас кем-то заняты или ожидаются.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
