// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять клиенту понятные сообщения.
package common

import (
	"errors"
	"fmt"
)

// Ошибки хранилища
var (
	// ErrBackendUnavailable — удалённое хранилище недоступно или не настроено.
	// Наружу за пределы шлюза не выходит: шлюз уходит в локальное хранилище.
	ErrBackendUnavailable = errors.New("удалённое хранилище недоступно")
)

// Ошибки леджера (балансы, сбор урожая)
var (
	// ErrInsufficientFunds — списание больше, чем есть на счёте
	ErrInsufficientFunds = errors.New("недостаточно NOO на счёте")
	// ErrInternal — непредвиденная ошибка в бизнес-логике, операция прервана
	ErrInternal = errors.New("внутренняя ошибка")
	// ErrPostNotFound — запись ленты не найдена
	ErrPostNotFound = errors.New("запись не найдена")
)

// Ошибки квоты
var (
	// ErrQuotaExceeded — дневной лимит постов исчерпан
	ErrQuotaExceeded = errors.New("сегодняшние сферы израсходованы")
)

// Ошибки входных данных. Все они оборачивают ErrInvalidInput,
// поэтому errors.Is(err, ErrInvalidInput) ловит любую из них.
var (
	ErrInvalidInput = errors.New("некорректный запрос")

	// ErrWalletRequired — не передан кошелёк
	ErrWalletRequired = fmt.Errorf("%w: не указан кошелёк", ErrInvalidInput)
	// ErrContextRequired — не передан идентификатор сессии
	ErrContextRequired = fmt.Errorf("%w: не указан идентификатор сессии", ErrInvalidInput)
	// ErrEmptyText — пустой текст поста
	ErrEmptyText = fmt.Errorf("%w: пустой текст", ErrInvalidInput)
	// ErrTextTooLong — текст длиннее 240 символов
	ErrTextTooLong = fmt.Errorf("%w: текст длиннее 240 символов", ErrInvalidInput)
	// ErrInvalidAmount — отрицательная сумма
	ErrInvalidAmount = fmt.Errorf("%w: сумма не может быть отрицательной", ErrInvalidInput)
)

// Ошибки админ-доступа
var (
	// ErrAdminDisabled — хеш пароля администратора не настроен
	ErrAdminDisabled = errors.New("админ-доступ отключён")
	// ErrWrongPassword — неверный пароль администратора
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)
