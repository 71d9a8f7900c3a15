package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/platform/config"
	"github.com/hanko-field/commerce-api/internal/platform/events"
	"github.com/hanko-field/commerce-api/internal/platform/idempotency"
	"github.com/hanko-field/commerce-api/internal/repositories/memory"
)

func memoryConfig() config.Config {
	return config.Config{
		Persistence: config.PersistenceConfig{Driver: config.DriverMemory},
		Events:      config.EventsConfig{Driver: config.EventsNone},
		Orders:      config.OrderConfig{CODLimit: 500},
	}
}

func TestNewContainerMemoryDefaults(t *testing.T) {
	c, err := NewContainer(context.Background(), memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	assert.NotNil(t, c.Services.Orders)
	assert.NotNil(t, c.Services.Carts)
	assert.NotNil(t, c.Services.Catalog)
	assert.Nil(t, c.Redis)
	assert.IsType(t, events.Noop{}, c.Events)

	assert.True(t, c.Payments.Supports(domain.PaymentMethodCOD))
	assert.False(t, c.Payments.Supports(domain.PaymentMethodCard))
	assert.False(t, c.Payments.Supports(domain.PaymentMethodRegional))
	assert.Empty(t, c.ReadinessChecks())
}

func TestNewContainerUsesInjectedRegistry(t *testing.T) {
	reg := memory.NewRegistry(domain.Product{
		ID:        "prd_mug",
		Name:      "Mug",
		Price:     12,
		SizeStock: []domain.SizeStock{{Size: "ONE", Stock: 4}},
	})

	c, err := NewContainer(context.Background(), memoryConfig(),
		WithRegistry(reg),
		WithPublisher(events.Noop{}),
	)
	require.NoError(t, err)

	product, err := c.Services.Catalog.GetProduct(context.Background(), "prd_mug")
	require.NoError(t, err)
	assert.Equal(t, "Mug", product.Name)
	assert.NoError(t, c.Close(context.Background()))
}

func TestNewContainerRegistersConfiguredGateways(t *testing.T) {
	cfg := memoryConfig()
	cfg.PSP = config.PSPConfig{
		StripeAPIKey:          "sk_test_123",
		StripeWebhookSecret:   "whsec_123",
		CardCurrency:          "usd",
		RegionalBaseURL:       "https://regional.test/v1",
		RegionalKeyID:         "key",
		RegionalKeySecret:     "secret",
		RegionalWebhookSecret: "hook",
		RegionalCurrency:      "INR",
	}

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	assert.True(t, c.Payments.Supports(domain.PaymentMethodCard))
	assert.True(t, c.Payments.Supports(domain.PaymentMethodRegional))
}

func TestNewContainerRejectsUnknownDrivers(t *testing.T) {
	cfg := memoryConfig()
	cfg.Persistence.Driver = "mongo"
	_, err := NewContainer(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown persistence driver")

	cfg = memoryConfig()
	cfg.Events.Driver = "nats"
	_, err = NewContainer(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown events driver")
}

func TestContainerIdempotencyStoreSelection(t *testing.T) {
	ctx := context.Background()

	c, err := NewContainer(ctx, memoryConfig())
	require.NoError(t, err)
	store, err := c.IdempotencyStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &idempotency.MemoryStore{}, store)
	require.NoError(t, c.Close(ctx))

	cfg := memoryConfig()
	cfg.Redis.Addr = "127.0.0.1:0"
	c, err = NewContainer(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(ctx) })
	store, err = c.IdempotencyStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &idempotency.RedisStore{}, store)
}
