// Package simple wires the storefront engine end to end: configuration,
// state cache, auth session manager, request gateway, and the cart and
// wishlist stores. It is the reference composition for embedding the engine
// in a client application.
package simple

import (
	"context"
	"errors"
	"log/slog"

	"github.com/silstore/storefront/core/auth"
	"github.com/silstore/storefront/core/cart"
	"github.com/silstore/storefront/core/commerce"
	"github.com/silstore/storefront/core/config"
	"github.com/silstore/storefront/core/gateway"
	"github.com/silstore/storefront/core/logger"
	"github.com/silstore/storefront/core/statecache"
	"github.com/silstore/storefront/core/wishlist"
)

type App struct {
	config   Config
	cache    statecache.Store
	auth     *auth.Manager
	gateway  *gateway.Gateway
	cart     *cart.Store
	wishlist *wishlist.Store
	logger   *slog.Logger
}

type AppOption func(*App) error

// NewApp loads configuration from the environment and assembles the engine.
// Options override individual components before the defaults fill the gaps.
func NewApp(ctx context.Context, opts ...AppOption) (*App, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	app := &App{
		config: cfg,
		logger: logger.New(logger.WithProduction(cfg.AppName)),
	}
	if cfg.Env == "development" {
		app.logger = logger.New(logger.WithDevelopment(cfg.AppName))
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.cache == nil {
		store, err := newStateStore(cfg)
		if err != nil {
			return nil, err
		}
		app.cache = store
	}

	if app.auth == nil {
		mgr, err := auth.New(ctx, cfg.authConfig(), app.cache,
			auth.WithLogger(app.logger))
		if err != nil {
			return nil, err
		}
		app.auth = mgr
	}

	if app.gateway == nil {
		app.gateway = gateway.New(cfg.Backend.BaseURL, app.auth,
			gateway.WithLogger(app.logger))
	}

	persister := commerce.NewPersister(app.cache)
	app.cart = cart.New(app.gateway, app.auth, persister, cart.WithLogger(app.logger))
	app.wishlist = wishlist.New(app.gateway, app.auth, persister, wishlist.WithLogger(app.logger))

	return app, nil
}

func newStateStore(cfg Config) (statecache.Store, error) {
	if cfg.State.RedisAddr != "" {
		return statecache.NewRedisStore(cfg.State.RedisAddr, cfg.State.RedisPass, "")
	}
	return statecache.NewFileStore(cfg.State.Dir)
}

// Boot restores the previous run's state: the commerce snapshots are read
// back from the cache, then the auth session is revalidated (scheduling
// credential renewal when one survives). The stores load first so the
// SignedIn transition from a rehydrated session finds any pending local
// snapshot and reconciles it. Safe to call exactly once, right after NewApp.
func (a *App) Boot(ctx context.Context) {
	a.cart.Load(ctx)
	a.wishlist.Load(ctx)
	a.auth.CheckStatus(ctx)
}

// Auth exposes the session manager for login and logout flows.
func (a *App) Auth() *auth.Manager { return a.auth }

// Cart exposes the cart store.
func (a *App) Cart() *cart.Store { return a.cart }

// Wishlist exposes the wishlist store.
func (a *App) Wishlist() *wishlist.Store { return a.wishlist }

// Gateway exposes the request gateway for direct backend calls.
func (a *App) Gateway() *gateway.Gateway { return a.gateway }

func WithLogger(log *slog.Logger) AppOption {
	return func(app *App) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		app.logger = log
		return nil
	}
}

func WithStateStore(store statecache.Store) AppOption {
	return func(app *App) error {
		if store == nil {
			return errors.New("state store cannot be nil")
		}
		app.cache = store
		return nil
	}
}

func WithAuthManager(mgr *auth.Manager) AppOption {
	return func(app *App) error {
		if mgr == nil {
			return errors.New("auth manager cannot be nil")
		}
		app.auth = mgr
		return nil
	}
}

func WithGateway(gw *gateway.Gateway) AppOption {
	return func(app *App) error {
		if gw == nil {
			return errors.New("gateway cannot be nil")
		}
		app.gateway = gw
		return nil
	}
}
