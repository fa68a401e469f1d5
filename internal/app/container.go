package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/wareneingang/internal/catalog"
	"github.com/odyssey-erp/wareneingang/internal/observability"
	"github.com/odyssey-erp/wareneingang/internal/platform/blob"
	"github.com/odyssey-erp/wareneingang/internal/platform/cache"
	"github.com/odyssey-erp/wareneingang/internal/platform/db"
	"github.com/odyssey-erp/wareneingang/internal/procurement"
	"github.com/odyssey-erp/wareneingang/internal/receiving"
	"github.com/odyssey-erp/wareneingang/internal/shared"
	"github.com/odyssey-erp/wareneingang/internal/tickets"
)

// Container wires repositories and services over one blob store.
type Container struct {
	Logger  *slog.Logger
	Store   blob.Store
	Metrics *observability.Metrics

	Catalog     *catalog.Service
	Procurement *procurement.Service
	Receiving   *receiving.Service
	Tickets     *tickets.Service

	loaders []loader
	closers []func()
}

type loader interface {
	Load(ctx context.Context) error
}

// Overrides replaces collaborators, mainly for tests.
type Overrides struct {
	Store       blob.Store
	RedisClient *redis.Client
	IDs         shared.IDFunc
	Clock       shared.Clock
}

// NewContainer opens the configured backends and builds every service.
func NewContainer(ctx context.Context, cfg *Config, logger *slog.Logger, overrides Overrides) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = NewLogger(cfg)
	}
	c := &Container{Logger: logger, Metrics: observability.NewMetrics()}

	redisClient := overrides.RedisClient
	needsRedis := cfg.ReceiptLockEnabled || cfg.StoreDriver == StoreRedis && overrides.Store == nil
	if redisClient == nil && needsRedis {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		redisClient = client
		c.closers = append(c.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
	}

	store, err := c.openStore(ctx, cfg, overrides.Store, redisClient)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = store

	audit := shared.NewAuditLogger(logger)

	catalogRepo := catalog.NewRepository(store, cfg.StorePrefix)
	procurementRepo := procurement.NewRepository(store, cfg.StorePrefix)
	receivingRepo := receiving.NewRepository(store, cfg.StorePrefix)
	ticketRepo := tickets.NewRepository(store, cfg.StorePrefix)
	c.loaders = []loader{catalogRepo, procurementRepo, receivingRepo, ticketRepo}

	c.Catalog = catalog.NewService(catalogRepo, audit, catalog.Options{IDs: overrides.IDs, Clock: overrides.Clock, Logger: logger})
	c.Procurement = procurement.NewService(procurementRepo, audit, overrides.Clock)

	// tickets needs the receipt lookup and receiving needs the open-ticket check.
	ticketLookup := &receiptLookup{}
	c.Tickets = tickets.NewService(ticketRepo, ticketLookup, audit, tickets.Options{IDs: overrides.IDs, Clock: overrides.Clock, Logger: logger, Metrics: c.Metrics})

	opts := receiving.Options{
		IDs:        overrides.IDs,
		Clock:      overrides.Clock,
		Logger:     logger,
		Tickets:    c.Tickets,
		Metrics:    c.Metrics,
		SyncOrders: cfg.POSyncOnBooking,
	}
	if cfg.ReceiptLockEnabled {
		opts.Locker = cache.NewReceiptLocker(redisClient, cfg.ReceiptLockTTL)
	}
	c.Receiving = receiving.NewService(receivingRepo, c.Catalog, c.Procurement, audit, opts)
	ticketLookup.receipts = c.Receiving

	logger.Debug("container ready", slog.String("store", cfg.StoreDriver), slog.Bool("receipt_lock", cfg.ReceiptLockEnabled), slog.Bool("po_sync", cfg.POSyncOnBooking))
	return c, nil
}

func (c *Container) openStore(ctx context.Context, cfg *Config, override blob.Store, redisClient *redis.Client) (blob.Store, error) {
	if override != nil {
		return override, nil
	}
	switch cfg.StoreDriver {
	case StoreFile:
		store, err := blob.NewFile(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreMemory:
		return blob.NewMemory(), nil
	case StoreRedis:
		return blob.NewRedis(redisClient), nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)
		store, err := blob.NewPostgres(ctx, pool)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}

// Load reads every persisted collection concurrently.
func (c *Container) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range c.loaders {
		l := l
		g.Go(func() error {
			return l.Load(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: load state: %w", err)
	}
	return nil
}

// Close releases backend connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

type receiptLookup struct {
	receipts *receiving.Service
}

func (l *receiptLookup) ReceiptExists(ctx context.Context, batchID string) (bool, error) {
	if l.receipts == nil {
		return false, errors.New("app: receiving not wired")
	}
	return l.receipts.ReceiptExists(ctx, batchID)
}
