package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/sentrypost/authcore/internal/observability/metrics"
	"github.com/sentrypost/authcore/internal/ports"
)

const (
	defaultReaperInterval = 10 * time.Minute
	defaultReaperBatch    = 500
)

// SessionReaperOptions groups dependencies for SessionReaper.
type SessionReaperOptions struct {
	Store    ports.SessionIndexPruner // Required
	Interval time.Duration            // Optional: defaults to 10m
	Batch    int                      // Optional: index keys inspected per pass, defaults to 500
	Metrics  *metrics.AuthMetrics     // Optional
	Logger   *slog.Logger
}

// SessionReaper periodically removes expired session hashes from the per-user indexes
// so bulk revocation stays proportional to live sessions.
type SessionReaper struct {
	store    ports.SessionIndexPruner
	interval time.Duration
	batch    int
	metrics  *metrics.AuthMetrics
	logger   *slog.Logger
}

// NewSessionReaper constructs a SessionReaper.
func NewSessionReaper(opts SessionReaperOptions) (*SessionReaper, error) {
	if opts.Store == nil {
		return nil, errors.New("SessionIndexPruner is required")
	}
	r := &SessionReaper{
		store:    opts.Store,
		interval: opts.Interval,
		batch:    opts.Batch,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if r.interval <= 0 {
		r.interval = defaultReaperInterval
	}
	if r.batch <= 0 {
		r.batch = defaultReaperBatch
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "session_reaper")
	return r, nil
}

// Run prunes once after a short jitter, then at every interval until ctx is canceled.
// Returns nil on graceful shutdown (context.Canceled).
func (r *SessionReaper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting session reaper", "interval", r.interval, "batch", r.batch)

	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && !isContextCancellation(err) {
			r.logger.WarnContext(ctx, "session index prune failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single prune pass.
func (r *SessionReaper) RunOnce(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := r.store.PruneStaleIndexes(ctx, r.batch)
	r.metrics.SessionIndexPruned(n)
	if err != nil {
		r.metrics.SessionOp("prune_index", metrics.ResultError)
		return n, err
	}
	r.metrics.SessionOp("prune_index", metrics.ResultSuccess)
	if n > 0 {
		r.logger.InfoContext(ctx, "pruned session indexes", "removed", n, "elapsed", time.Since(start))
	}
	return n, nil
}

// waitWithJitter delays up to 10% of the interval so replicas do not scan in lockstep.
func (r *SessionReaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
