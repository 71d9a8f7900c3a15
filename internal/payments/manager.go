package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/hanko-field/commerce-api/internal/domain"
)

const meterName = "github.com/hanko-field/commerce-api/internal/payments"

// Manager dispatches payment operations to the gateway registered for an order's
// payment method and records per-call metrics.
type Manager struct {
	gateways map[domain.PaymentMethod]Gateway
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	now      func() time.Time
}

// ManagerOption customises a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	meter metric.Meter
	clock func() time.Time
}

// WithMeter overrides the meter used for gateway metrics.
func WithMeter(m metric.Meter) ManagerOption {
	return func(cfg *managerConfig) {
		if m != nil {
			cfg.meter = m
		}
	}
}

// WithManagerClock overrides the clock used for latency measurements.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(cfg *managerConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// NewManager registers gateways by their method. Registering two gateways for the same
// method is an error.
func NewManager(gateways []Gateway, opts ...ManagerOption) (*Manager, error) {
	cfg := managerConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(meterName)
	}

	m := &Manager{gateways: make(map[domain.PaymentMethod]Gateway, len(gateways)), now: cfg.clock}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		method := gw.Method()
		if _, exists := m.gateways[method]; exists {
			return nil, fmt.Errorf("payments: duplicate gateway for %s", method)
		}
		m.gateways[method] = gw
	}

	var err error
	m.requests, err = cfg.meter.Int64Counter("payments.requests",
		metric.WithDescription("Count of payment gateway calls by method, operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("payments: register request counter: %w", err)
	}
	m.latency, err = cfg.meter.Float64Histogram("payments.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of payment gateway calls"))
	if err != nil {
		return nil, fmt.Errorf("payments: register latency histogram: %w", err)
	}
	return m, nil
}

// Gateway returns the gateway for method.
func (m *Manager) Gateway(method domain.PaymentMethod) (Gateway, error) {
	if m == nil {
		return nil, ErrUnsupportedMethod
	}
	gw, ok := m.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return gw, nil
}

// Supports reports whether a gateway is registered for method.
func (m *Manager) Supports(method domain.PaymentMethod) bool {
	_, err := m.Gateway(method)
	return err == nil
}

// Initiate starts a payment through the method's gateway.
func (m *Manager) Initiate(ctx context.Context, method domain.PaymentMethod, req InitiateRequest) (Handle, error) {
	gw, err := m.Gateway(method)
	if err != nil {
		return Handle{}, err
	}
	start := m.now()
	handle, err := gw.Initiate(ctx, req)
	m.record(ctx, method, "initiate", start, err)
	return handle, err
}

// VerifyClientConfirmation verifies a client-submitted confirmation for order.
func (m *Manager) VerifyClientConfirmation(ctx context.Context, order domain.Order, confirmation ClientConfirmation) (Confirmation, error) {
	gw, err := m.Gateway(order.PaymentMethod)
	if err != nil {
		return Confirmation{}, err
	}
	start := m.now()
	out, err := gw.VerifyClientConfirmation(ctx, order, confirmation)
	m.record(ctx, order.PaymentMethod, "verify", start, err)
	return out, err
}

// VerifyWebhook authenticates a provider callback for method.
func (m *Manager) VerifyWebhook(ctx context.Context, method domain.PaymentMethod, payload []byte, headers http.Header) (WebhookEvent, error) {
	gw, err := m.Gateway(method)
	if err != nil {
		return WebhookEvent{}, err
	}
	start := m.now()
	event, err := gw.VerifyWebhook(ctx, payload, headers)
	m.record(ctx, method, "webhook", start, err)
	return event, err
}

// Refund refunds order through its gateway.
func (m *Manager) Refund(ctx context.Context, order domain.Order, reason string) (RefundResult, error) {
	gw, err := m.Gateway(order.PaymentMethod)
	if err != nil {
		return RefundResult{}, err
	}
	start := m.now()
	out, err := gw.Refund(ctx, order, reason)
	m.record(ctx, order.PaymentMethod, "refund", start, err)
	return out, err
}

func (m *Manager) record(ctx context.Context, method domain.PaymentMethod, op string, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("method", string(method)),
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(m.now().Sub(start).Microseconds())/1000, attrs)
}

func outcome(err error) string {
	var providerErr *ProviderError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &providerErr):
		return "provider_error"
	case errors.Is(err, ErrSignature):
		return "invalid_signature"
	default:
		return "rejected"
	}
}
