package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"

	"github.com/teamcoffee/storefront/internal/api"
	"github.com/teamcoffee/storefront/internal/catalog"
	"github.com/teamcoffee/storefront/internal/config"
	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/internal/event"
	"github.com/teamcoffee/storefront/internal/order"
	"github.com/teamcoffee/storefront/internal/session"
	"github.com/teamcoffee/storefront/internal/storage"
	"github.com/teamcoffee/storefront/internal/wishlist"
	"github.com/teamcoffee/storefront/pkg/database"
	"github.com/teamcoffee/storefront/pkg/health"
	"github.com/teamcoffee/storefront/pkg/httpclient"
	pkgkafka "github.com/teamcoffee/storefront/pkg/kafka"
	"github.com/teamcoffee/storefront/pkg/tracing"
)

// ServiceName tags logs, spans and events from this client.
const ServiceName = "storefront-cli"

// Events is everything the components publish.
type Events interface {
	UserLoggedIn(ctx context.Context, s domain.Session) error
	UserLoggedOut(ctx context.Context, email string) error
	WishlistChanged(ctx context.Context, data event.WishlistChangedData) error
	OrderSubmitted(ctx context.Context, email, origin string, orders []domain.Order) error
	Close() error
}

// App wires together all dependencies of the storefront client.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Client   *api.Client
	Session  *session.Store
	Wishlist *wishlist.Reconciler
	Orders   *order.Service
	Catalog  *catalog.Service

	store    storage.Store
	registry *prometheus.Registry
	health   *health.Registry
	closers  []func(context.Context) error
}

// Option adjusts how New wires the app.
type Option func(*options)

type options struct {
	navigator api.Navigator
	store     storage.Store
}

// WithNavigator sets the hook run when the backend demands a new login.
func WithNavigator(n api.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// WithStore overrides the session store selected by SESSION_STORE.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// New creates the application, initializing all dependencies, and restores a
// persisted session if one exists.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.navigator == nil {
		o.navigator = api.NavigatorFunc(func(ctx context.Context) {
			logger.WarnContext(ctx, "login required")
		})
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		health:   health.NewRegistry(cfg.HTTPTimeout),
	}

	// Tracing. The propagator is installed even when export is disabled.
	tcfg := tracing.DefaultConfig(ServiceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.Enabled = cfg.TracingEnabled
	shutdownTracer, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, shutdownTracer)

	// Session persistence.
	store := o.store
	if store == nil {
		store, err = a.openStore(ctx)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
	}
	a.store = store

	// Events.
	events := a.openEvents()

	// HTTP transport: cookie jar, optional circuit breaker.
	jar, err := cookiejar.New(nil)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	httpCfg.Jar = jar
	var doer httpclient.Doer = httpclient.New(httpCfg)
	if cfg.BreakerEnabled {
		doer = httpclient.NewCircuitBreakerClient(doer, httpclient.DefaultCircuitBreakerConfig("storefront-api"), logger)
	}
	if cfg.RateLimitRPS > 0 {
		doer = httpclient.NewRateLimitedClient(doer, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	a.Client = api.New(cfg.APIURL, doer,
		api.WithNavigator(o.navigator),
		api.WithHeaders(cfg.Headers()),
		api.WithLogger(logger),
		api.WithMetrics(api.NewMetrics(a.registry)),
	)
	endpoints := api.NewEndpoints(a.Client, api.Paths{Refresh: cfg.RefreshPath, Wishlists: cfg.WishlistPath})

	// Domain services.
	a.Session = session.New(endpoints.Users, store,
		session.WithEvents(events),
		session.WithLogger(logger),
		session.WithProactiveRefresh(cfg.ProactiveRefresh, cfg.RefreshSkew),
	)
	a.Client.SetAuthenticator(a.Session)

	a.Wishlist = wishlist.New(endpoints.Wishlists, a.Session, events, logger)
	a.Session.OnLogout(a.Wishlist.Reset)

	a.Orders = order.New(endpoints.Orders, a.Session, a.Wishlist,
		order.WithPlaceholderAddress(cfg.PlaceholderAddress),
		order.WithEvents(events),
		order.WithLogger(logger),
	)
	a.Catalog = catalog.New(endpoints.Products, a.Session, logger)

	a.health.Register("backend", func(ctx context.Context) error {
		_, err := a.Catalog.List(ctx)
		return err
	})

	restored, err := a.Session.Restore(ctx)
	if err != nil {
		logger.WarnContext(ctx, "stored session unreadable, starting signed out", slog.String("error", err.Error()))
	} else if restored {
		logger.DebugContext(ctx, "session restored", slog.String("user_email", a.Session.Current().UserEmail))
	}

	logger.DebugContext(ctx, "storefront client initialized",
		slog.String("api_url", cfg.APIURL),
		slog.String("session_store", cfg.SessionStore),
		slog.Bool("breaker", cfg.BreakerEnabled),
		slog.Float64("rate_limit_rps", cfg.RateLimitRPS),
		slog.Bool("events", len(cfg.KafkaBrokers) > 0),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.SessionStore {
	case config.StoreMemory:
		return storage.NewMemory(), nil
	case config.StoreRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Addr = a.cfg.RedisAddr
		rcfg.Password = a.cfg.RedisPassword
		rcfg.DB = a.cfg.RedisDB
		client, err := database.NewRedisClientWithLogger(ctx, rcfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open redis session store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.health.Register("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return storage.NewRedis(client, a.cfg.SessionNamespace, a.cfg.SessionTTL), nil
	default:
		path := a.cfg.SessionFile
		if path == "" {
			var err error
			if path, err = storage.DefaultFilePath(); err != nil {
				return nil, err
			}
		}
		return storage.NewFile(path), nil
	}
}

func (a *App) openEvents() Events {
	if len(a.cfg.KafkaBrokers) == 0 {
		return event.Nop{}
	}
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	a.health.Register("kafka", producer.Ping)
	events := event.NewProducer(producer, a.logger)
	a.closers = append(a.closers, func(context.Context) error { return events.Close() })
	a.logger.Debug("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	return events
}

// Health runs every dependency check.
func (a *App) Health(ctx context.Context) health.Report {
	return a.health.Check(ctx)
}

// Metrics gathers the client's collectors together with the process-wide
// breaker and producer collectors.
func (a *App) Metrics() ([]*dto.MetricFamily, error) {
	return prometheus.Gatherers{a.registry, prometheus.DefaultGatherer}.Gather()
}

// Store returns the session persistence backend.
func (a *App) Store() storage.Store {
	return a.store
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && !errors.Is(err, redis.ErrClosed) {
			a.logger.Error("close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
