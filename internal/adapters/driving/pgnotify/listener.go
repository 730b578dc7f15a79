// Package pgnotify receives CMS mutation notifications over PostgreSQL
// LISTEN/NOTIFY. The CMS (or a trigger) sends a JSON payload such as
//
//	SELECT pg_notify('content_mutations',
//	    '{"record_type":"news","record_id":42,"operation":"updated"}');
//
// and each valid notice is published on the mutation bus.
package pgnotify

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/logger"
	"github.com/custodia-labs/campus/internal/metrics"
)

// Listener defaults.
const (
	DefaultPingInterval = 90 * time.Second
	DefaultMinReconnect = 2 * time.Second
	DefaultMaxReconnect = time.Minute

	transport = "pgnotify"
)

// Listener forwards notifications from one channel to a publisher.
type Listener struct {
	dsn          string
	channel      string
	publisher    driving.MutationPublisher
	metrics      *metrics.Metrics
	pingInterval time.Duration
	minReconnect time.Duration
	maxReconnect time.Duration
	onReconnect  func()
}

// Option configures the listener.
type Option func(*Listener)

// WithMetrics counts received mutations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// WithPingInterval sets how often an idle connection is checked.
func WithPingInterval(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.pingInterval = d
		}
	}
}

// WithReconnectBackoff bounds the delay between reconnection attempts.
func WithReconnectBackoff(minDelay, maxDelay time.Duration) Option {
	return func(l *Listener) {
		if minDelay > 0 && maxDelay >= minDelay {
			l.minReconnect, l.maxReconnect = minDelay, maxDelay
		}
	}
}

// WithReconnectHook runs fn after the connection is re-established.
// Notifications sent while disconnected are lost, so callers typically
// schedule a reindex here.
func WithReconnectHook(fn func()) Option {
	return func(l *Listener) {
		l.onReconnect = fn
	}
}

// New creates a listener for channel on the database at dsn.
func New(dsn, channel string, publisher driving.MutationPublisher, opts ...Option) (*Listener, error) {
	if dsn == "" || channel == "" {
		return nil, fmt.Errorf("%w: notify dsn and channel are required", domain.ErrInvalidInput)
	}
	l := &Listener{
		dsn:          dsn,
		channel:      channel,
		publisher:    publisher,
		pingInterval: DefaultPingInterval,
		minReconnect: DefaultMinReconnect,
		maxReconnect: DefaultMaxReconnect,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run listens until ctx is cancelled. Connection loss is handled by
// reconnecting with backoff; only the initial LISTEN can fail Run.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, l.minReconnect, l.maxReconnect, l.event)
	defer listener.Close() //nolint:errcheck

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listening on %s: %w", l.channel, err)
	}
	logger.Info("pgnotify: listening on channel %s", l.channel)

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case n := <-listener.Notify:
			// A nil notification marks a re-established connection
			if n == nil {
				continue
			}
			if err := l.Handle(ctx, n.Extra); err != nil {
				logger.Warn("pgnotify: rejected notification %q: %v", n.Extra, err)
			}

		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					logger.Warn("pgnotify: ping failed: %v", err)
				}
			}()
		}
	}
}

// Handle decodes one payload and publishes the mutation.
func (l *Listener) Handle(ctx context.Context, payload string) error {
	m, err := domain.ParseMutationNotice([]byte(payload))
	if err != nil {
		return err
	}
	if err := l.publisher.Publish(ctx, m); err != nil {
		return err
	}
	l.metrics.MutationReceived(transport, string(m.Op))
	return nil
}

func (l *Listener) event(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		logger.Debug("pgnotify: connected")
	case pq.ListenerEventDisconnected:
		logger.Warn("pgnotify: disconnected: %v", err)
	case pq.ListenerEventReconnected:
		logger.Info("pgnotify: reconnected to %s", l.channel)
		if l.onReconnect != nil {
			l.onReconnect()
		}
	case pq.ListenerEventConnectionAttemptFailed:
		logger.Warn("pgnotify: connection attempt failed: %v", err)
	}
}
