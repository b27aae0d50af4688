package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// gRPC метрики
	GRPCRequestsTotal    *prometheus.CounterVec
	GRPCRequestDuration  *prometheus.HistogramVec
	GRPCRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	RuleFiresTotal      *prometheus.CounterVec
	ActionsTotal        *prometheus.CounterVec
	ActionDuration      *prometheus.HistogramVec
	ResizeRequestsTotal *prometheus.CounterVec
	LedgerSize          *prometheus.GaugeVec
	GroupStatValue      *prometheus.GaugeVec

	// Системные метрики
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		// gRPC метрики
		GRPCRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_requests_total",
				Help:      "Total number of gRPC requests",
			},
			[]string{"method", "status"},
		),

		GRPCRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_request_duration_seconds",
				Help:      "Duration of gRPC requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		GRPCRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_requests_in_flight",
				Help:      "Current number of gRPC requests being processed",
			},
		),

		// Бизнес-метрики
		RuleFiresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_fires_total",
				Help:      "Total number of times a rule's condition evaluated true",
			},
			[]string{"rule", "group"},
		),

		ActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "actions_total",
				Help:      "Total number of dispatched actions",
			},
			[]string{"action", "status"},
		),

		ActionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "action_duration_seconds",
				Help:      "Duration of dispatched action handlers",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"action"},
		),

		ResizeRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "resize_requests_total",
				Help:      "Total number of resize requests sent to the elasticity endpoint",
			},
			[]string{"direction", "status"},
		),

		LedgerSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ledger_size",
				Help:      "Number of jobs currently tracked in the job ledger",
			},
			[]string{"group"},
		),

		GroupStatValue: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "group_stat_value",
				Help:      "Last computed value of a per-group running statistic",
			},
			[]string{"group", "metric", "estimator"},
		),

		// Системные метрики
		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("ensemble", "controller")
	}
	return defaultMetrics
}

// RecordGRPCRequest записывает метрики gRPC запроса
func (m *Metrics) RecordGRPCRequest(method string, status string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRuleFire records that a rule's condition evaluated true for a group.
func (m *Metrics) RecordRuleFire(rule, group string) {
	m.RuleFiresTotal.WithLabelValues(rule, group).Inc()
}

// RecordAction records the outcome and duration of a dispatched action.
func (m *Metrics) RecordAction(action string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}

	m.ActionsTotal.WithLabelValues(action, status).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordResizeRequest records a resize request sent to the elasticity endpoint.
func (m *Metrics) RecordResizeRequest(direction string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ResizeRequestsTotal.WithLabelValues(direction, status).Inc()
}

// SetLedgerSize reports the current number of jobs tracked for a group.
func (m *Metrics) SetLedgerSize(group string, size int) {
	m.LedgerSize.WithLabelValues(group).Set(float64(size))
}

// SetGroupStatValue reports the last computed value of a running estimator.
func (m *Metrics) SetGroupStatValue(group, metric, estimator string, value float64) {
	m.GroupStatValue.WithLabelValues(group, metric, estimator).Set(value)
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
