// Package admin — service.go содержит проверку пароля Argon2id
// и ограничение неудачных попыток.
package admin

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"github.com/Noospaceio/v19/internal/common"
)

// Service проверяет доступ администратора.
type Service struct {
	passwordHash string

	mu       sync.Mutex
	attempts map[string]*attempts // Неудачные попытки по клиенту (in-memory)

	now func() time.Time
}

// NewService создаёт сервис. Пустой passwordHash отключает админ-доступ.
func NewService(passwordHash string) *Service {
	return &Service{
		passwordHash: passwordHash,
		attempts:     make(map[string]*attempts),
		now:          time.Now,
	}
}

// Enabled сообщает, настроен ли админ-доступ.
func (s *Service) Enabled() bool {
	return s.passwordHash != ""
}

// VerifyPassword проверяет пароль администратора с использованием Argon2id.
// Включает защиту от brute-force: 3 неудачные попытки за час = блокировка клиента.
func (s *Service) VerifyPassword(clientID, password string) error {
	if !s.Enabled() {
		return common.ErrAdminDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	a, ok := s.attempts[clientID]
	if !ok {
		a = &attempts{}
		s.attempts[clientID] = a
	}
	if a.recent(now.Add(-AttemptWindow)) >= MaxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	if !verifyArgon2id(password, s.passwordHash) {
		a.failed = append(a.failed, now)
		log.WithField("client", clientID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}

	delete(s.attempts, clientID)
	return nil
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		log.Error("Неподдерживаемая версия Argon2id")
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
