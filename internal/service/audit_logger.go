package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sentrypost/authcore/internal/data"
	domainauth "github.com/sentrypost/authcore/internal/domain/auth"
	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/ports"
)

const (
	defaultAuditQueueSize    = 1024
	defaultAuditWriteTimeout = 5 * time.Second
)

// AuditLoggerOptions groups dependencies for AuditLogger.
type AuditLoggerOptions struct {
	Sink         ports.AuditSink      // Required
	QueueSize    int                  // Optional: defaults to 1024
	WriteTimeout time.Duration        // Optional: per-entry sink deadline, defaults to 5s
	Clock        data.TimeProvider    // Optional
	Metrics      *metrics.AuthMetrics // Optional
	Logger       *slog.Logger
}

// AuditLogger delivers audit entries to a sink from a single background worker.
// Record never blocks the caller; entries that do not fit in the queue are dropped.
type AuditLogger struct {
	sink         ports.AuditSink
	writeTimeout time.Duration
	clock        data.TimeProvider
	metrics      *metrics.AuthMetrics
	logger       *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan domainauth.AuditEntry
	done    chan struct{}
	dropped atomic.Int64
}

// NewAuditLogger constructs an AuditLogger and starts its worker. Stop it with Close.
func NewAuditLogger(opts AuditLoggerOptions) (*AuditLogger, error) {
	if opts.Sink == nil {
		return nil, errors.New("AuditSink is required")
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultAuditQueueSize
	}
	l := &AuditLogger{
		sink:         opts.Sink,
		writeTimeout: opts.WriteTimeout,
		clock:        opts.Clock,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		queue:        make(chan domainauth.AuditEntry, size),
		done:         make(chan struct{}),
	}
	if l.writeTimeout <= 0 {
		l.writeTimeout = defaultAuditWriteTimeout
	}
	if l.clock == nil {
		l.clock = data.RealTimeProvider{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("component", "audit_logger")

	go l.run()
	return l, nil
}

// Record enqueues entry. It assigns an ID and timestamp when missing.
func (l *AuditLogger) Record(entry domainauth.AuditEntry) {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = l.clock.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.drop(entry, "closed")
		return
	}
	select {
	case l.queue <- entry:
	default:
		l.drop(entry, "queue_full")
	}
}

func (l *AuditLogger) drop(entry domainauth.AuditEntry, reason string) {
	n := l.dropped.Add(1)
	l.metrics.AuditDropped()
	l.logger.Warn("audit entry dropped",
		"reason", reason,
		"action", entry.Action,
		"audit_id", entry.ID,
		"dropped_total", n,
	)
}

// Dropped returns how many entries have been discarded.
func (l *AuditLogger) Dropped() int64 { return l.dropped.Load() }

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (l *AuditLogger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain audit queue: %w", ctx.Err())
	}
}

func (l *AuditLogger) run() {
	defer close(l.done)
	for entry := range l.queue {
		l.write(entry)
	}
}

func (l *AuditLogger) write(entry domainauth.AuditEntry) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.AuditFailed(fmt.Errorf("panic: %v", r))
			l.logger.Error("audit sink panicked", "panic", r, "audit_id", entry.ID)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()
	if err := l.sink.Write(ctx, entry); err != nil {
		l.metrics.AuditFailed(err)
		l.logger.Error("audit sink write failed", "error", err, "audit_id", entry.ID, "action", entry.Action)
		return
	}
	l.metrics.AuditWritten()
}
