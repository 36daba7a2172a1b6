package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. The chat pipeline keeps serving
	// through its fallbacks, so a degraded report is still a 200.
	Degraded Status = "degraded"
	// Unhealthy indicates the corpus database is unreachable; without it
	// no retrieval path works at all.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// checkTimeout bounds each component probe so one stuck dependency
// cannot hang the whole report.
const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	cache    CachePinger
	provider ProviderChecker
}

// New creates a Service. cache and provider can be nil when the
// deployment runs without them.
func New(db DBPinger, cache CachePinger, provider ProviderChecker) *Service {
	return &Service{db: db, cache: cache, provider: provider}
}

// Check probes every configured component and aggregates the outcome.
// A database failure is unhealthy; any other failure only degrades.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["database"] = s.probe(ctx, s.db.Ping)
	if s.cache != nil {
		checks["cache"] = s.probe(ctx, s.cache.Ping)
	}
	if s.provider != nil {
		checks["provider"] = s.probe(ctx, s.provider.HealthCheck)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["database"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
