package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// fallbackTotal считает вызовы, ушедшие в локальное хранилище из-за ошибки удалённого.
var fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "noospace",
	Subsystem: "storage",
	Name:      "fallback_total",
	Help:      "Remote store calls that fell back to the local store.",
}, []string{"op"})
