// Package main — точка входа сервиса.
// Загружает конфигурацию, инициализирует приложение и запускает HTTP API.
// Обеспечивает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Noospaceio/v19/internal/app"
	"github.com/Noospaceio/v19/internal/config"
)

// shutdownTimeout — сколько ждём завершения текущих запросов при остановке.
const shutdownTimeout = 15 * time.Second

func main() {
	setupLogging()

	log.Info("=== Сервис запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	// Уровень логирования из конфига
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	// Контекст отменяется сигналом остановки (Ctrl+C, docker stop)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	log.WithFields(log.Fields{
		"env":    cfg.AppEnv,
		"remote": application.Gateway.RemoteConfigured(),
	}).Info("=== Сервис готов к работе ===")

	if err := application.Run(ctx, shutdownTimeout); err != nil {
		log.WithError(err).Error("Сервис завершился с ошибкой")
		return
	}

	log.Info("=== Сервис остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
