// Package app wires configuration into repositories, gateway clients and the
// payment service. cmd/order-service and cmd/payctl share it.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/ordenes-pagos/internal/config"
	"github.com/MikeMC777/ordenes-pagos/internal/db"
	"github.com/MikeMC777/ordenes-pagos/internal/gateway"
	"github.com/MikeMC777/ordenes-pagos/internal/memstore"
	"github.com/MikeMC777/ordenes-pagos/internal/notify"
	"github.com/MikeMC777/ordenes-pagos/internal/order"
	"github.com/MikeMC777/ordenes-pagos/internal/payment"
	"github.com/MikeMC777/ordenes-pagos/internal/product"
	"github.com/MikeMC777/ordenes-pagos/internal/user"
)

type App struct {
	Orders   order.Repository
	Products product.Repository
	Users    user.Repository
	Payments *payment.Service

	closers []func()
}

// Stores bundles the three repositories so callers can supply their own.
type Stores struct {
	Orders   order.Repository
	Products product.Repository
	Users    user.Repository
}

func MemoryStores(s *memstore.Store) Stores {
	return Stores{Orders: s.Orders(), Products: s.Products(), Users: s.Users()}
}

func postgresStores(pool *pgxpool.Pool) Stores {
	return Stores{Orders: order.NewPGRepo(pool), Products: product.NewPGRepo(pool), Users: user.NewPGRepo(pool)}
}

// New builds the application from configuration: the store selected by STORE,
// gateway clients for the credentials that are present and the notifier.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{}
	var stores Stores
	switch cfg.Store {
	case "memory":
		log.Printf("[app] using in-memory store")
		stores = MemoryStores(memstore.New())
	case "postgres", "":
		if err := db.MigrateUp(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := db.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		stores = postgresStores(pool)
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	var n notify.Notifier = notify.LogNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, cfg.NotifyTimeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = k.Close() })
		n = k
	}

	a.wire(stores, n, cfg, Gateways(cfg)...)
	return a, nil
}

// NewWith builds the application over caller-provided stores and clients.
func NewWith(stores Stores, n notify.Notifier, cfg config.Config, clients ...gateway.Client) *App {
	a := &App{}
	a.wire(stores, n, cfg, clients...)
	return a
}

func (a *App) wire(stores Stores, n notify.Notifier, cfg config.Config, clients ...gateway.Client) {
	a.Orders, a.Products, a.Users = stores.Orders, stores.Products, stores.Users
	rec := payment.NewReconciler(a.Orders, a.Users, payment.NewStockAdjuster(a.Products), n,
		payment.WithNotifyTimeout(cfg.NotifyTimeout))
	a.Payments = payment.NewService(rec, a.Orders, payment.Config{
		WompiEventsSecret:        cfg.WompiEventsSecret,
		WompiIntegritySecret:     cfg.WompiIntegritySecret,
		WompiPublicKey:           cfg.WompiPublicKey,
		MercadoPagoWebhookSecret: cfg.MercadoPagoWebhookSecret,
		Currency:                 cfg.Currency,
	}, clients...)
}

// Gateways returns a client for every gateway whose credential is set and valid.
func Gateways(cfg config.Config) []gateway.Client {
	var out []gateway.Client
	if cfg.WompiPublicKey != "" {
		c, err := gateway.NewWompi(cfg.WompiPublicKey, cfg.GatewayTimeout)
		if err != nil {
			log.Printf("[app] CRITICAL: wompi client disabled: %v", err)
		} else {
			log.Printf("[app] wompi client env=%s", c.Environment())
			out = append(out, c)
		}
	}
	if cfg.MercadoPagoAccessToken != "" {
		c, err := gateway.NewMercadoPago(cfg.MercadoPagoAccessToken, cfg.GatewayTimeout)
		if err != nil {
			log.Printf("[app] CRITICAL: mercadopago client disabled: %v", err)
		} else {
			log.Printf("[app] mercadopago client env=%s", c.Environment())
			out = append(out, c)
		}
	}
	return out
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
