package repositories

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// HealthStatus summarises a dependency probe.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// DependencyCheck describes a dependency probe executed during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyResult is the outcome of a single probe.
type DependencyResult struct {
	Status    HealthStatus
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// ReadinessReport aggregates every probe.
type ReadinessReport struct {
	Status      HealthStatus
	Checks      map[string]DependencyResult
	GeneratedAt time.Time
}

// ReadinessOption customises the prober.
type ReadinessOption func(*ReadinessProber)

// WithDependencyTimeout overrides the timeout applied when a check omits its own.
func WithDependencyTimeout(timeout time.Duration) ReadinessOption {
	return func(p *ReadinessProber) {
		if timeout > 0 {
			p.defaultTimeout = timeout
		}
	}
}

// WithDependencyClock injects a custom clock primarily for tests.
func WithDependencyClock(clock func() time.Time) ReadinessOption {
	return func(p *ReadinessProber) {
		if clock != nil {
			p.now = clock
		}
	}
}

// ReadinessProber runs dependency probes concurrently, each bounded by a timeout.
type ReadinessProber struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

// NewReadinessProber validates and stores the check set. An empty set always reports ok.
func NewReadinessProber(checks []DependencyCheck, opts ...ReadinessOption) (*ReadinessProber, error) {
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("readiness: dependency check missing name")
		}
		if check.Check == nil {
			return nil, errors.New("readiness: dependency " + check.Name + " missing check function")
		}
	}
	p := &ReadinessProber{
		checks:         append([]DependencyCheck(nil), checks...),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Collect executes every probe and aggregates the worst status.
func (p *ReadinessProber) Collect(ctx context.Context) ReadinessReport {
	results := make(map[string]DependencyResult, len(p.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, check := range p.checks {
		check := check
		wg.Add(1)
		go func() {
			defer wg.Done()

			timeout := check.Timeout
			if timeout <= 0 {
				timeout = p.defaultTimeout
			}
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := p.now()
			err := check.Check(checkCtx)
			end := p.now()

			result := DependencyResult{Status: HealthStatusOK, Detail: "ok", Latency: end.Sub(start), CheckedAt: end}
			switch {
			case err == nil:
			case errors.Is(err, context.DeadlineExceeded):
				result.Status = HealthStatusError
				result.Detail = "timeout"
			case errors.Is(err, context.Canceled):
				result.Status = HealthStatusError
				result.Detail = "cancelled"
			default:
				result.Status = HealthStatusDegraded
				result.Detail = err.Error()
			}

			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := HealthStatusOK
	for _, result := range results {
		if result.Status == HealthStatusError {
			status = HealthStatusError
			break
		}
		if result.Status == HealthStatusDegraded {
			status = HealthStatusDegraded
		}
	}

	return ReadinessReport{Status: status, Checks: results, GeneratedAt: p.now()}
}
