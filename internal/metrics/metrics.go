package metrics

import (
	"errors"
	"fmt"
	"time"
	"vedtak/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for lifecycle operations, outbox delivery and automatic runs
type Observer interface {
	RecordOperation(operation string, duration time.Duration, err error)
	RecordDelivery(kind models.OutboxKind, result string)
	RecordAutomaticRun(mode models.RunMode, err error)
	SetOutboxBacklog(status models.OutboxStatus, count int)
}

// Delivery results
const (
	DeliverySent  = "sent"
	DeliveryRetry = "retry"
	DeliveryDead  = "dead"
)

// PrometheusObserver exports service metrics to Prometheus
type PrometheusObserver struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	automaticRuns     *prometheus.CounterVec
	outboxBacklog     *prometheus.GaugeVec
}

// NewPrometheusObserver registers the service metrics on reg
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "vedtak"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of decision lifecycle operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed decision lifecycle operations by error code.",
		}, []string{"operation", "code"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deliveries_total",
			Help:      "Outbox delivery attempts by message kind and result.",
		}, []string{"kind", "result"}),
		automaticRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automatic_runs_total",
			Help:      "Automatic orchestrator phases by run mode and result.",
		}, []string{"mode", "result"}),
		outboxBacklog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_messages",
			Help:      "Outbox messages by delivery status.",
		}, []string{"status"}),
	}

	if err := register(reg, &o.operationDuration); err != nil {
		return nil, err
	}
	if err := register(reg, &o.operationErrors); err != nil {
		return nil, err
	}
	if err := register(reg, &o.deliveries); err != nil {
		return nil, err
	}
	if err := register(reg, &o.automaticRuns); err != nil {
		return nil, err
	}
	if err := register(reg, &o.outboxBacklog); err != nil {
		return nil, err
	}
	return o, nil
}

// register swaps *c for the existing collector when an equal one was registered before
func register[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				*c = existing
				return nil
			}
		}
		return fmt.Errorf("register metric: %w", err)
	}
	return nil
}

func (o *PrometheusObserver) RecordOperation(operation string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		code := models.ErrorCode(err)
		if code == "" {
			code = "INTERNAL"
		}
		o.operationErrors.WithLabelValues(operation, code).Inc()
	}
}

func (o *PrometheusObserver) RecordDelivery(kind models.OutboxKind, result string) {
	if o == nil {
		return
	}
	o.deliveries.WithLabelValues(string(kind), result).Inc()
}

func (o *PrometheusObserver) RecordAutomaticRun(mode models.RunMode, err error) {
	if o == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.automaticRuns.WithLabelValues(string(mode), result).Inc()
}

func (o *PrometheusObserver) SetOutboxBacklog(status models.OutboxStatus, count int) {
	if o == nil {
		return
	}
	o.outboxBacklog.WithLabelValues(string(status)).Set(float64(count))
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordOperation(string, time.Duration, error) {}

func (Nop) RecordDelivery(models.OutboxKind, string) {}

func (Nop) RecordAutomaticRun(models.RunMode, error) {}

func (Nop) SetOutboxBacklog(models.OutboxStatus, int) {}
