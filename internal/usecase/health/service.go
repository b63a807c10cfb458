package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/puppyradar/internal/version"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
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

// Component names reported in Report.Checks.
const (
	ComponentSessionStore = "session_store"
	ComponentDogsAPI      = "dogs_api"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Build  version.Build          `json:"build"`
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	upstream UpstreamChecker
	timeout  time.Duration
}

// New creates a Service. upstream can be nil.
func New(db DBPinger, upstream UpstreamChecker) *Service {
	return &Service{db: db, upstream: upstream, timeout: defaultCheckTimeout}
}

// Check runs all component checks in parallel, each bounded by the check timeout.
func (s *Service) Check(ctx context.Context) Report {
	probes := map[string]func(context.Context) error{
		ComponentSessionStore: s.db.Ping,
	}
	if s.upstream != nil {
		probes[ComponentDogsAPI] = s.upstream.HealthCheck
	}

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(probes))
	)
	var g errgroup.Group
	for name, probe := range probes {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := probe(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks, Build: version.Current()}
}
