package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mkrupp/storefront/internal/domain"
	"github.com/mkrupp/storefront/internal/infra/config"
	"github.com/mkrupp/storefront/internal/infra/logging"
	"github.com/mkrupp/storefront/internal/infra/messaging/rabbitmq"
	http_ "github.com/mkrupp/storefront/internal/infra/transport/http"
	"github.com/mkrupp/storefront/internal/repo/kv"
	"github.com/mkrupp/storefront/internal/svc/cartsvc"
	"github.com/mkrupp/storefront/internal/svc/catalogsvc"
	"github.com/mkrupp/storefront/internal/svc/identitysvc"
	"github.com/mkrupp/storefront/internal/svc/ordersvc"
)

// Config is the complete storefront configuration, read from STOREFRONT_* variables.
type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig       `envPrefix:"LOG_"`
	Store    kv.StoreConfig             `envPrefix:"STORE_"`
	HTTP     http_.HTTPTransportConfig  `envPrefix:"HTTP_"`
	Catalog  catalogsvc.CatalogConfig   `envPrefix:"CATALOG_"`
	Identity identitysvc.IdentityConfig `envPrefix:"IDENTITY_"`
	Pricing  cartsvc.PricingConfig      `envPrefix:"PRICING_"`
	AMQP     rabbitmq.Config            `envPrefix:"AMQP_"`
}

// app holds the wired services of one process.
type app struct {
	store    *kv.Adapter
	identity *identitysvc.IdentityService
	catalog  *catalogsvc.CatalogService
	carts    *cartsvc.CartService
	orders   *ordersvc.OrderService
	amqpConn *amqp.Connection
}

// newApp opens the store and wires the services. With withEvents the order
// service publishes to the configured broker.
func newApp(ctx context.Context, cfg Config, withEvents bool) (_ *app, err error) {
	a := &app{}

	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close())
		}
	}()

	a.store, err = kv.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.identity = identitysvc.NewIdentityService(a.store, cfg.Identity)
	if err := a.identity.SeedAdmin(ctx); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	a.catalog, err = catalogsvc.NewCatalogService(a.store, a.identity, cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("new catalog service: %w", err)
	}

	a.carts = cartsvc.NewCartService(a.store, a.catalog, cfg.Pricing)

	var events ordersvc.EventPublisher = ordersvc.NopPublisher{}

	if withEvents && cfg.AMQP.Enabled() {
		conn, ch, err := rabbitmq.SetupConn(ctx, cfg.AMQP)
		if err != nil {
			return nil, fmt.Errorf("setup rabbitmq: %w", err)
		}

		a.amqpConn = conn
		events = rabbitmq.NewOrderPublisher(ch, cfg.AMQP.Exchange)
	}

	a.orders = ordersvc.NewOrderService(a.store, a.carts, a.identity, events)

	return a, nil
}

// handler returns the HTTP handler serving every service.
func (a *app) handler() http.Handler {
	router := http_.NewRouter(
		catalogsvc.NewHTTPTransport(a.catalog),
		identitysvc.NewHTTPTransport(a.identity),
		cartsvc.NewHTTPTransport(a.carts),
		ordersvc.NewHTTPTransport(a.orders),
	)

	return http_.Handler(router, a.identity)
}

// Close releases the broker connection and the store.
func (a *app) Close() error {
	var errs []error

	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close rabbitmq: %w", err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	return errors.Join(errs...)
}

func badgeObserver(log logging.Logger) cartsvc.Observer {
	return func(ctx context.Context, key domain.CartKey, cart domain.Cart) {
		log.DebugContext(ctx, "cart badge", "cart", key, "count", cartsvc.ItemCount(cart))
	}
}
