package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/common"
)

const (
	serverErrorMessage = "server error"
	maxBodyBytes       = 64 << 10
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Ошибка записи ответа")
	}
}

// writeOK отвечает {"ok": true, ...fields}.
func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// decodeJSON читает тело запроса в dst. Пустое тело — ошибка.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: пустое тело запроса", common.ErrInvalidInput)
		}
		return fmt.Errorf("%w: некорректный JSON", common.ErrInvalidInput)
	}
	return nil
}

// statusFor сопоставляет ошибку сервиса с HTTP-кодом.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrQuotaExceeded), errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, common.ErrPostNotFound), errors.Is(err, common.ErrAdminDisabled):
		return http.StatusNotFound
	case errors.Is(err, common.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError отвечает кодом, соответствующим ошибке.
// Непредвиденные ошибки наружу не отдаются, только в лог.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error("Ошибка обработки запроса")
		writeError(w, status, serverErrorMessage)
		return
	}
	writeError(w, status, err.Error())
}
