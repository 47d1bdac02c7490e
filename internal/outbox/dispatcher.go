// Package outbox delivers case notifications and domain events that were
// committed together with a decision change. Delivery is at least once; the
// message id is the idempotency key downstream.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"vedtak/internal/metrics"
	"vedtak/internal/models"
	"vedtak/internal/observability"
	"vedtak/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CaseNotifier receives case notifications
type CaseNotifier interface {
	NotifyTransition(ctx context.Context, caseInstanceID uuid.UUID, status models.DecisionStatus, note models.TransitionNote) error
}

// EventPublisher receives domain events
type EventPublisher interface {
	Publish(ctx context.Context, event models.DecisionEvent) error
}

// Config tunes claiming and retries
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Lease        time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 20
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	return c
}

// Dispatcher drains the outbox
type Dispatcher struct {
	store     repository.OutboxStore
	notifier  CaseNotifier
	publisher EventPublisher
	cfg       Config

	now      func() time.Time
	observer metrics.Observer
	tracer   trace.Tracer
	kick     chan struct{}
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithObserver sets the metrics observer
func WithObserver(o metrics.Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTracer sets the tracer
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(store repository.OutboxStore, notifier CaseNotifier, publisher EventPublisher, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		observer:  metrics.Nop{},
		tracer:    observability.NoopTracer(),
		kick:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Kick wakes Run without waiting for the next poll
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// ProcessDue claims one batch of due messages and delivers them. It returns
// the number of messages processed, whatever the delivery result.
func (d *Dispatcher) ProcessDue(ctx context.Context) (int, error) {
	now := d.now()
	due, err := d.store.ClaimOutboxDue(ctx, now, now.Add(d.cfg.Lease), d.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := d.handle(ctx, msg); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// Drain repeats ProcessDue until nothing is due. Each round frees the next
// message of every case instance whose head was delivered.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := d.ProcessDue(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

// handle delivers one message and records the result. Only store failures are returned.
func (d *Dispatcher) handle(ctx context.Context, msg models.OutboxMessage) error {
	ctx, span := d.tracer.Start(ctx, "outbox.deliver", trace.WithAttributes(
		attribute.String(observability.AttrOutboxKind, string(msg.Kind)),
		attribute.String(observability.AttrCaseInstanceID, msg.CaseInstanceID.String()),
	))
	deliveryErr := d.deliver(WithMessageID(ctx, msg.ID), msg)
	observability.End(span, deliveryErr)

	now := d.now()
	if deliveryErr == nil {
		d.observer.RecordDelivery(msg.Kind, metrics.DeliverySent)
		return d.store.MarkOutboxSent(ctx, msg.ID, now)
	}

	attempts := msg.AttemptCount + 1
	if isPermanent(deliveryErr) || attempts >= d.cfg.MaxAttempts {
		d.observer.RecordDelivery(msg.Kind, metrics.DeliveryDead)
		slog.Error("Outbox message dead-lettered",
			"message_id", msg.ID,
			"kind", msg.Kind,
			"case_instance_id", msg.CaseInstanceID,
			"attempts", attempts,
			"error", deliveryErr)
		return d.store.MarkOutboxDead(ctx, msg.ID, attempts, deliveryErr.Error(), now)
	}

	next := now.Add(d.backoff(attempts - 1))
	d.observer.RecordDelivery(msg.Kind, metrics.DeliveryRetry)
	slog.Warn("Outbox delivery failed, will retry",
		"message_id", msg.ID,
		"kind", msg.Kind,
		"case_instance_id", msg.CaseInstanceID,
		"attempts", attempts,
		"next_attempt_at", next,
		"error", deliveryErr)
	return d.store.MarkOutboxRetry(ctx, msg.ID, attempts, next, deliveryErr.Error())
}

func (d *Dispatcher) deliver(ctx context.Context, msg models.OutboxMessage) error {
	switch msg.Kind {
	case models.OutboxCaseNotification:
		var n models.CaseNotification
		if err := json.Unmarshal(msg.Payload, &n); err != nil {
			return &permanentError{fmt.Errorf("invalid case notification payload: %w", err)}
		}
		return d.notifier.NotifyTransition(ctx, n.CaseInstanceID, n.Status, n.Note)
	case models.OutboxDomainEvent:
		var e models.DecisionEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return &permanentError{fmt.Errorf("invalid domain event payload: %w", err)}
		}
		return d.publisher.Publish(ctx, e)
	default:
		return &permanentError{fmt.Errorf("unknown outbox kind %q", msg.Kind)}
	}
}

// backoff is BaseBackoff doubled per earlier failure, capped at MaxBackoff
func (d *Dispatcher) backoff(failures int) time.Duration {
	if failures <= 0 {
		return d.cfg.BaseBackoff
	}
	if failures > 30 {
		return d.cfg.MaxBackoff
	}
	b := d.cfg.BaseBackoff << failures
	if b > d.cfg.MaxBackoff || b <= 0 {
		return d.cfg.MaxBackoff
	}
	return b
}

// RecordBacklog publishes the PENDING and DEAD counts to the observer
func (d *Dispatcher) RecordBacklog(ctx context.Context) error {
	for _, status := range []models.OutboxStatus{models.OutboxPending, models.OutboxDead} {
		n, err := d.store.CountOutbox(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to count outbox messages: %w", err)
		}
		d.observer.SetOutboxBacklog(status, n)
	}
	return nil
}

// Run drains on every poll tick and every Kick until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("Outbox dispatcher started", "poll_interval", d.cfg.PollInterval, "batch_size", d.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox dispatcher stopped")
			return
		case <-ticker.C:
		case <-d.kick:
		}
		if _, err := d.Drain(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Outbox drain failed", "error", err)
		}
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func (e *permanentError) Permanent() bool { return true }

// isPermanent reports whether a downstream said the message can never be delivered
func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

type messageIDKey struct{}

// WithMessageID attaches the outbox message id used as idempotency key
func WithMessageID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// MessageID returns the outbox message id being delivered, if any
func MessageID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(messageIDKey{}).(uuid.UUID)
	return id, ok
}
