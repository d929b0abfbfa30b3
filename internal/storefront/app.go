// internal/storefront/app.go
package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/clients"
	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/orders"
	"storefront/internal/session"
	"storefront/internal/telemetry"
)

// Option replaces one of the collaborators New would otherwise build.
type Option func(*options)

type options struct {
	httpClient *http.Client
	tokenStore session.TokenStore
	redis      *redis.Client
	persister  cart.Persister
	logger     *logrus.Logger
}

// WithHTTPClient sends every API request through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithTokenStore skips the configured token backend.
func WithTokenStore(store session.TokenStore) Option {
	return func(o *options) {
		o.tokenStore = store
	}
}

// WithRedis supplies the redis client. The caller keeps ownership of it.
func WithRedis(client *redis.Client) Option {
	return func(o *options) {
		o.redis = client
	}
}

// WithPersister persists the cart through p regardless of configuration.
func WithPersister(p cart.Persister) Option {
	return func(o *options) {
		o.persister = p
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// App wires the storefront state layer together.
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	API     *clients.APIClient
	Session session.Service
	Catalog catalog.Service
	Cart    *cart.Cart
	Orders  *orders.Book
	TaxRate decimal.Decimal

	shutdown  telemetry.ShutdownFunc
	redis     *redis.Client
	ownsRedis bool
	db        *sqlx.DB
}

// New builds the application from cfg. Nothing is fetched until Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	app := &App{
		Config:  cfg,
		Logger:  o.logger,
		TaxRate: decimal.NewFromFloat(cfg.Cart.TaxRate),
		redis:   o.redis,
	}
	if app.Logger == nil {
		app.Logger = logging.New(cfg.Logging)
	}

	shutdown, err := telemetry.Setup(context.Background(), cfg.Telemetry, app.Logger)
	if err != nil {
		return nil, err
	}
	app.shutdown = shutdown

	if app.redis == nil && cfg.NeedsRedis() {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.ownsRedis = true
	}

	store := o.tokenStore
	if store == nil {
		store, err = app.openTokenStore(context.Background())
		if err != nil {
			app.Close(context.Background())
			return nil, err
		}
	}

	var apiOpts []clients.Option
	if o.httpClient != nil {
		apiOpts = append(apiOpts, clients.WithHTTPClient(o.httpClient))
	}
	app.API = clients.NewAPIClient(cfg, session.NewTokenSource(store), app.Logger, apiOpts...)

	app.Session = session.NewManager(session.NewHTTPRemote(app.API), store, app.Logger)

	catalogOpts := []catalog.Option{catalog.WithLowStockThreshold(cfg.Catalog.LowStockThreshold)}
	if cfg.Catalog.FixturesPath != "" {
		fixtures, err := catalog.LoadFixtures(cfg.Catalog.FixturesPath)
		if err != nil {
			app.Close(context.Background())
			return nil, err
		}
		catalogOpts = append(catalogOpts, catalog.WithFixtures(fixtures))
	}
	app.Catalog = catalog.NewService(catalog.NewHTTPRemote(app.API), app.Logger, catalogOpts...)

	persister := o.persister
	if persister == nil && cfg.Cart.Persist {
		persister = cart.NewRedisPersister(app.redis, cfg.Cart.SessionID)
	}
	var cartOpts []cart.Option
	if persister != nil {
		cartOpts = append(cartOpts, cart.WithPersister(persister))
	}
	app.Cart = cart.New(app.Logger, cartOpts...)

	app.Orders = orders.NewBook(orders.NewHTTPRemote(app.API), app.Logger)

	return app, nil
}

func (a *App) openTokenStore(ctx context.Context) (session.TokenStore, error) {
	cfg := a.Config.Session

	var store session.TokenStore
	switch cfg.TokenStore {
	case config.TokenStoreFile:
		store = session.NewFileTokenStore(cfg.TokenPath)
	case config.TokenStoreRedis:
		store = session.NewRedisTokenStore(a.redis, cfg.KeyPrefix)
	case config.TokenStorePostgres:
		db, err := session.OpenPostgres(ctx, a.Config.Database.URL)
		if err != nil {
			return nil, err
		}
		a.db = db
		pg := session.NewPostgresTokenStore(db, cfg.KeyPrefix)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	case config.TokenStoreMemory:
		store = session.NewMemoryTokenStore()
	default:
		return nil, fmt.Errorf("%w: unknown token store %q", config.ErrInvalidConfig, cfg.TokenStore)
	}

	if cfg.Passphrase != "" {
		store = session.NewEncryptedTokenStore(store, cfg.Passphrase)
	}
	return store, nil
}

// Start restores the session, loads the catalog and restores the cart.
// A rejected session is logged and leaves the app anonymous.
func (a *App) Start(ctx context.Context) {
	if err := a.Session.Restore(ctx); err != nil {
		a.Logger.WithError(err).Warn("stored session was rejected")
	}
	a.Catalog.InitialLoad(ctx)
	if err := a.Cart.Restore(ctx); err != nil {
		a.Logger.WithError(err).Warn("could not restore cart")
	}
}

// Close flushes telemetry and releases the connections New opened.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	if a.redis != nil && a.ownsRedis {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
