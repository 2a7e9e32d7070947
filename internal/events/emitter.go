package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/metastore/internal/metrics"
)

// Emitter hands events to the outbound channel.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// ErrCodeNotDelivered identifies a DeliveryError.
const ErrCodeNotDelivered = "EVENT_NOT_DELIVERED"

// DeliveryError reports an event the channel did not accept in time. It is
// only returned under the required delivery policy.
type DeliveryError struct {
	EventID string
	Reason  string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: event %s: %s", ErrCodeNotDelivered, e.EventID, e.Reason)
}

// IsDeliveryError returns true if err is a DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// DefaultTimeout bounds a required delivery.
const DefaultTimeout = 5 * time.Second

// ChannelEmitter delivers events to a buffered channel.
//
// Under the optional policy (default) an event is dropped with a warning
// when the buffer is full. Under the required policy Emit waits up to the
// timeout and then fails with a DeliveryError.
type ChannelEmitter struct {
	mu       sync.RWMutex
	ch       chan Event
	closed   bool
	required bool
	timeout  time.Duration
	ids      IDGenerator
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a ChannelEmitter.
type Option func(*ChannelEmitter)

// WithRequired makes delivery part of the commit contract.
func WithRequired(required bool) Option {
	return func(e *ChannelEmitter) { e.required = required }
}

// WithTimeout sets how long a required delivery may wait.
func WithTimeout(d time.Duration) Option {
	return func(e *ChannelEmitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithIDGenerator sets the event ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *ChannelEmitter) { e.ids = g }
}

// WithClock sets the timestamp source for events emitted without one.
func WithClock(now func() time.Time) Option {
	return func(e *ChannelEmitter) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *ChannelEmitter) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *ChannelEmitter) { e.metrics = m }
}

// NewChannelEmitter returns an emitter with a buffer of the given size.
func NewChannelEmitter(buffer int, opts ...Option) *ChannelEmitter {
	if buffer < 0 {
		buffer = 0
	}
	e := &ChannelEmitter{
		ch:      make(chan Event, buffer),
		timeout: DefaultTimeout,
		ids:     UUIDv7Generator{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the outbound channel. It is closed by Close.
func (e *ChannelEmitter) Events() <-chan Event {
	return e.ch
}

// Required reports whether delivery failures are returned to the caller.
func (e *ChannelEmitter) Required() bool {
	return e.required
}

// Emit implements Emitter.
func (e *ChannelEmitter) Emit(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = e.ids.Generate()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return e.fail(ev, "emitter closed")
	}

	if !e.required {
		select {
		case e.ch <- ev:
			return nil
		default:
			return e.fail(ev, "buffer full")
		}
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	select {
	case e.ch <- ev:
		return nil
	case <-timer.C:
		return e.fail(ev, "timed out after "+e.timeout.String())
	case <-ctx.Done():
		return e.fail(ev, ctx.Err().Error())
	}
}

func (e *ChannelEmitter) fail(ev Event, reason string) error {
	e.metrics.EventDropped()
	if e.required {
		return &DeliveryError{EventID: ev.ID, Reason: reason}
	}
	e.logger.Warn("event dropped",
		"id", ev.ID,
		"category", ev.Category,
		"type", ev.Type,
		"reason", reason,
	)
	return nil
}

// Close closes the outbound channel. Later emits fail.
func (e *ChannelEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}

// Drain logs every event until the channel is closed or ctx is done.
// It stands in for a consumer when none is attached.
func Drain(ctx context.Context, ch <-chan Event, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			logger.Info("event",
				"id", ev.ID,
				"category", ev.Category,
				"type", ev.Type,
				"actor", ev.Actor,
				"seq", ev.Seq,
			)
		}
	}
}
