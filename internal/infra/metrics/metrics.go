package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_cycles_total",
		Help: "Количество завершённых циклов синхронизации",
	})
	SyncStageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_stage_errors_total",
		Help: "Ошибки по стадиям цикла синхронизации",
	}, []string{"stage"})
	SyncCycleSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_cycle_seconds",
		Help:    "Время полного цикла синхронизации",
		Buckets: prometheus.DefBuckets,
	})
	SeedWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seed_writes_total",
		Help: "Засев пустых удалённых коллекций дефолтами",
	}, []string{"collection"})
	ToastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toasts_total",
		Help: "Количество показанных всплывающих уведомлений",
	})
	BroadcastDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_deliveries_total",
		Help: "Доставка рассылок по статусу",
	}, []string{"status"})
	SkippedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skipped_records_total",
		Help: "Записи коллекций, пропущенные из-за битого содержимого",
	}, []string{"collection"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SyncCyclesTotal,
		SyncStageErrors,
		SyncCycleSeconds,
		SeedWritesTotal,
		ToastsTotal,
		BroadcastDeliveries,
		SkippedRecordsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest фиксирует длительность и статус сетевого
// запроса адаптера.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := []string{component, operation, target, status}
	NetworkRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(labels...).Inc()
}
