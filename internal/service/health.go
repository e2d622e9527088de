package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentrypost/authcore/internal/ports"
)

// Health check states.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"

	CheckOK            = "ok"
	CheckUnavailable   = "unavailable"
	CheckNotConfigured = "not_configured"
	CheckConfigured    = "configured"
)

const defaultHealthTimeout = 2 * time.Second

// Pinger is any dependency with a reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is the result of one probe.
type HealthCheck struct {
	Status string `json:"status"`
	Mode   string `json:"mode,omitempty"`
}

// HealthReport is the /healthz payload.
type HealthReport struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

// HealthServiceOptions groups dependencies for HealthService. Every field is optional.
type HealthServiceOptions struct {
	Database Pinger
	Sessions Pinger
	Verifier ports.IdentityVerifier
	Timeout  time.Duration
	Logger   *slog.Logger
}

// HealthService reports datastore reachability and identity-platform configuration.
type HealthService struct {
	database Pinger
	sessions Pinger
	verifier ports.IdentityVerifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHealthService constructs a HealthService.
func NewHealthService(opts HealthServiceOptions) *HealthService {
	s := &HealthService{
		database: opts.Database,
		sessions: opts.Sessions,
		verifier: opts.Verifier,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = defaultHealthTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Check probes the datastores concurrently. Probe failures degrade the report; they are never returned.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var mu sync.Mutex
	checks := map[string]HealthCheck{}
	set := func(name string, c HealthCheck) {
		mu.Lock()
		checks[name] = c
		mu.Unlock()
	}

	var g errgroup.Group
	probe := func(name string, p Pinger) {
		if p == nil {
			set(name, HealthCheck{Status: CheckNotConfigured})
			return
		}
		g.Go(func() error {
			if err := p.Ping(ctx); err != nil {
				set(name, HealthCheck{Status: CheckUnavailable})
				return fmt.Errorf("%s: %w", name, err)
			}
			set(name, HealthCheck{Status: CheckOK})
			return nil
		})
	}
	probe("database", s.database)
	probe("sessions", s.sessions)
	// A plain Group (no WithContext) so one failed probe does not cancel the others.
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "health probe failed", "error", err)
	}

	if s.verifier != nil {
		checks["identity_platform"] = HealthCheck{Status: CheckConfigured, Mode: s.verifier.Mode()}
	} else {
		checks["identity_platform"] = HealthCheck{Status: CheckNotConfigured}
	}

	status := HealthOK
	for _, name := range []string{"database", "sessions"} {
		if checks[name].Status != CheckOK {
			status = HealthDegraded
		}
	}
	return HealthReport{Status: status, Checks: checks}
}
