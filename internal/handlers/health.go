package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/hanko-field/commerce-api/internal/platform/httpx"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// ReadinessCollector runs dependency probes. *repositories.ReadinessProber satisfies it.
type ReadinessCollector interface {
	Collect(ctx context.Context) repositories.ReadinessReport
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build     BuildInfo
	readiness ReadinessCollector
	now       func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by both probes.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthReadiness sets the dependency probes run by /readyz.
func WithHealthReadiness(collector ReadinessCollector) HealthOption {
	return func(h *HealthHandlers) {
		h.readiness = collector
	}
}

// WithHealthClock overrides the time source.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.now = clock
		}
	}
}

// NewHealthHandlers constructs health handlers. Without probes /readyz always reports ok.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now()
	}
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type healthResponse struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime"`
	Timestamp   string                        `json:"timestamp"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	Details     []string                      `json:"details,omitempty"`
}

// Healthz reports liveness only.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	httpx.WriteJSON(w, http.StatusOK, h.baseResponse(string(repositories.HealthStatusOK), now))
}

// Readyz runs the dependency probes; any non-ok dependency answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	if h.readiness == nil {
		httpx.WriteJSON(w, http.StatusOK, h.baseResponse(string(repositories.HealthStatusOK), now))
		return
	}

	report := h.readiness.Collect(r.Context())
	resp := h.baseResponse(string(report.Status), now)
	resp.Checks = make(map[string]healthCheckPayload, len(report.Checks))

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		result := report.Checks[name]
		resp.Checks[name] = healthCheckPayload{
			Status:    string(result.Status),
			Detail:    result.Detail,
			LatencyMS: result.Latency.Milliseconds(),
			CheckedAt: formatTime(result.CheckedAt),
		}
		if result.Status != repositories.HealthStatusOK {
			resp.Details = append(resp.Details, name+": "+result.Detail)
		}
	}

	status := http.StatusOK
	if report.Status != repositories.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *HealthHandlers) baseResponse(status string, now time.Time) healthResponse {
	return healthResponse{
		Status:      status,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Truncate(time.Second).String(),
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
}
