package api

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// clientIP возвращает IP клиента. После middleware.RealIP в RemoteAddr
// может оказаться как "ip:port", так и голый IP.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestLogger пишет строку лога на каждый запрос.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"client":     clientIP(r),
			"duration":   time.Since(start).String(),
		}).Debug("HTTP запрос")
	})
}

// recoverPanic перехватывает панику обработчика и отвечает 500.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			// http.ErrAbortHandler — штатный способ оборвать ответ
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.WithFields(log.Fields{
				"component":  "panic_recovery",
				"panic":      fmt.Sprintf("%v", rec),
				"stack":      string(debug.Stack()),
				"request_id": middleware.GetReqID(r.Context()),
			}).Error("Паника в обработчике восстановлена")
			writeError(w, http.StatusInternalServerError, serverErrorMessage)
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit отклоняет запросы сверх лимита клиента с кодом 429.
func rateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
				writeError(w, http.StatusTooManyRequests, "слишком много запросов")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
