package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/hanko-field/commerce-api/internal/payments"
	"github.com/hanko-field/commerce-api/internal/platform/config"
	"github.com/hanko-field/commerce-api/internal/platform/events"
	pfirestore "github.com/hanko-field/commerce-api/internal/platform/firestore"
	"github.com/hanko-field/commerce-api/internal/platform/idempotency"
	"github.com/hanko-field/commerce-api/internal/platform/observability"
	"github.com/hanko-field/commerce-api/internal/repositories"
	firestoreRepo "github.com/hanko-field/commerce-api/internal/repositories/firestore"
	"github.com/hanko-field/commerce-api/internal/repositories/memory"
	"github.com/hanko-field/commerce-api/internal/repositories/postgres"
	redisRepo "github.com/hanko-field/commerce-api/internal/repositories/redis"
	"github.com/hanko-field/commerce-api/internal/services"
)

const paymentsMeterName = "github.com/hanko-field/commerce-api/internal/payments"

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders  services.OrderService
	Carts   services.CartService
	Catalog services.CatalogService
}

// Container wires repositories, payment gateways, the event publisher and services.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Redis        redis.UniversalClient
	Payments     *payments.Manager
	Events       events.Publisher
	Services     Services

	firestore *pfirestore.Provider
	closers   []func(context.Context) error
}

type containerOptions struct {
	logger    *zap.Logger
	registry  repositories.Registry
	publisher events.Publisher
	gateways  []payments.Gateway
	clock     func() time.Time
}

// Option customises container construction.
type Option func(*containerOptions)

// WithLogger sets the base logger handed to services and gateways.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithRegistry bypasses the configured persistence driver.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *containerOptions) { o.registry = reg }
}

// WithPublisher bypasses the configured events driver.
func WithPublisher(pub events.Publisher) Option {
	return func(o *containerOptions) { o.publisher = pub }
}

// WithGateways replaces the gateways derived from PSP configuration.
func WithGateways(gateways ...payments.Gateway) Option {
	return func(o *containerOptions) { o.gateways = gateways }
}

// WithClock overrides the clock used by services.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) { o.clock = clock }
}

// NewContainer constructs the runtime dependencies for cfg. On error, anything opened so
// far is closed before returning.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (_ *Container, err error) {
	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = time.Now
	}

	c := &Container{Config: cfg}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.Redis = client
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
	}

	reg := options.registry
	if reg == nil {
		reg, c.firestore, err = openRegistry(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, reg.Close)
	}
	if c.Redis != nil {
		carts, cartErr := redisRepo.NewCartRepository(c.Redis, redisRepo.WithTTL(cfg.Redis.CartTTL))
		if cartErr != nil {
			return nil, fmt.Errorf("build redis carts: %w", cartErr)
		}
		reg = repositories.WithCarts(reg, carts)
	}
	c.Repositories = reg

	pub := options.publisher
	if pub == nil {
		pub, err = openPublisher(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { return pub.Close() })
	}
	c.Events = pub

	gateways := options.gateways
	if gateways == nil {
		gateways, err = buildGateways(cfg, options.logger)
		if err != nil {
			return nil, err
		}
	}
	c.Payments, err = payments.NewManager(gateways,
		payments.WithMeter(otel.GetMeterProvider().Meter(paymentsMeterName)),
		payments.WithManagerClock(options.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("build payment manager: %w", err)
	}

	c.Services, err = buildServices(reg, c.Payments, pub, options)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReadinessChecks returns one probe per remote dependency the container opened.
func (c *Container) ReadinessChecks() []repositories.DependencyCheck {
	if c == nil {
		return nil
	}
	var checks []repositories.DependencyCheck
	if pinger, ok := c.Repositories.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, repositories.DependencyCheck{
			Name:    c.Config.Persistence.Driver,
			Timeout: 2 * time.Second,
			Check:   pinger.Ping,
		})
	}
	if c.Redis != nil {
		client := c.Redis
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	return checks
}

// IdempotencyStore returns the store shared by instances: Redis when configured, else
// Firestore when it is the persistence driver, else process memory.
func (c *Container) IdempotencyStore(ctx context.Context) (idempotency.Store, error) {
	if c.Redis != nil {
		store, err := idempotency.NewRedisStore(c.Redis, "")
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if c.firestore != nil {
		client, err := c.firestore.Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		store, err := idempotency.NewFirestoreStore(client, idempotency.WithCollection(c.Config.Idempotency.Collection))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return idempotency.NewMemoryStore(), nil
}

// Close releases clients in reverse order of construction.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func openRegistry(ctx context.Context, cfg config.Config) (repositories.Registry, *pfirestore.Provider, error) {
	switch cfg.Persistence.Driver {
	case "", config.DriverMemory:
		return memory.NewRegistry(), nil, nil
	case config.DriverFirestore:
		provider := pfirestore.NewProvider(pfirestore.Settings{
			ProjectID:    cfg.Firestore.ProjectID,
			EmulatorHost: cfg.Firestore.EmulatorHost,
		})
		reg, err := firestoreRepo.NewRegistry(provider)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, nil, fmt.Errorf("build firestore registry: %w", err)
		}
		return reg, provider, nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, postgres.Settings{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		reg, err := postgres.NewRegistry(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("build postgres registry: %w", err)
		}
		return reg, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence driver %q", cfg.Persistence.Driver)
	}
}

func openPublisher(ctx context.Context, cfg config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "", config.EventsNone:
		return events.Noop{}, nil
	case config.EventsPubSub:
		projectID := cfg.Firestore.ProjectID
		if projectID == "" {
			projectID = cfg.Firebase.ProjectID
		}
		client, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		pub, err := events.NewPubSubPublisher(client, cfg.Events.Topic)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return pub, nil
	case config.EventsKafka:
		pub, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}

func buildGateways(cfg config.Config, logger *zap.Logger) ([]payments.Gateway, error) {
	gateways := []payments.Gateway{payments.NewCODGateway(cfg.Orders.CODLimit)}
	gatewayLogger := payments.Logger(observability.EventLogger(logger.Named("payments")))

	if cfg.PSP.CardEnabled() {
		card, err := payments.NewCardGateway(payments.CardConfig{
			APIKey:        cfg.PSP.StripeAPIKey,
			WebhookSecret: cfg.PSP.StripeWebhookSecret,
			Currency:      cfg.PSP.CardCurrency,
			Timeout:       cfg.PSP.Timeout,
			Logger:        gatewayLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("build card gateway: %w", err)
		}
		gateways = append(gateways, card)
	}

	if cfg.PSP.RegionalEnabled() {
		regional, err := payments.NewRegionalGateway(payments.RegionalConfig{
			KeyID:         cfg.PSP.RegionalKeyID,
			KeySecret:     cfg.PSP.RegionalKeySecret,
			WebhookSecret: cfg.PSP.RegionalWebhookSecret,
			BaseURL:       cfg.PSP.RegionalBaseURL,
			Currency:      cfg.PSP.RegionalCurrency,
			Timeout:       cfg.PSP.Timeout,
			Logger:        gatewayLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("build regional gateway: %w", err)
		}
		gateways = append(gateways, regional)
	}
	return gateways, nil
}

func buildServices(reg repositories.Registry, gateways services.PaymentGateways, pub events.Publisher, options containerOptions) (Services, error) {
	logger := options.logger.Named("services")

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Logger:   observability.EventLogger(logger),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}

	carts, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Clock:    options.clock,
		Logger:   observability.EventLogger(logger),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Products:   reg.Products(),
		Carts:      reg.Carts(),
		UnitOfWork: reg,
		Payments:   gateways,
		Events:     pub,
		Clock:      options.clock,
		Logger:     observability.EventLogger(logger),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	return Services{Orders: orders, Carts: carts, Catalog: catalog}, nil
}
