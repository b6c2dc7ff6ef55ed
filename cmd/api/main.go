package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logx"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/replenish"
	"github.com/ariefcatur/go-storefront/internal/scheduler"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logx.New(cfg.LogLevel, cfg.ServiceName)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if len(cfg.JWTSecret) == 0 {
		return errors.New("JWT_SECRET is required")
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return err
	}

	var notifier notify.Notifier = notify.Log(logger.Named("notify"))
	if len(cfg.KafkaBrokers) > 0 {
		// producers outlive the HTTP server so late notifications still flush
		prodCtx, stopProducers := context.WithCancel(context.Background())
		orderProd := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicOrderEvents, cfg.NotificationBuffer, logger)
		stockProd := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicStockEvents, cfg.NotificationBuffer, logger)
		orderProd.Start(prodCtx)
		stockProd.Start(prodCtx)
		defer func() {
			orderProd.Close()
			stockProd.Close()
			orderProd.WaitClosed()
			stockProd.WaitClosed()
			stopProducers()
		}()
		notifier = &notify.KafkaNotifier{
			Orders:  orderProd,
			Stock:   stockProd,
			Service: cfg.ServiceName,
			Log:     logger,
		}
	} else {
		logger.Warn("KAFKA_BROKERS is empty, notifications are only logged")
	}

	loc := cfg.Location()
	store := &catalog.Store{DB: db}
	rules := &settings.Store{DB: db, Defaults: settings.OrderRules{
		AutoCancelEnabled: cfg.AutoCancelEnabled,
		AutoCancelHours:   cfg.AutoCancelHours,
	}}
	repo := &orders.Repo{DB: db}
	engine := &orders.Engine{DB: db, IDs: node, Notify: notifier, Log: logger.Named("checkout")}
	machine := &orders.Machine{DB: db, Notify: notifier, Log: logger.Named("orders")}
	shipments := &orders.Shipments{DB: db, Loc: loc, Notify: notifier, Log: logger.Named("shipments")}
	gateway := &replenish.Gateway{
		DB:     db,
		Key:    cfg.RFIDKey,
		Dedup:  &replenish.RedisDeduper{RDB: rdb, TTL: redisx.TTLDedup},
		Notify: notifier,
		Log:    logger.Named("replenish"),
	}
	if cfg.RFIDKey == "" {
		logger.Warn("RFID_API_KEY is empty, replenishment endpoint rejects every request")
	}

	router := httpx.NewRouter(logger)
	api := &httpx.API{
		JWTSecret: []byte(cfg.JWTSecret),
		Catalog:   &httpx.CatalogHandler{Store: store, Log: logger},
		Cart:      &httpx.CartHandler{Cart: &cart.Manager{DB: db}, Log: logger},
		Orders:    &httpx.OrdersHandler{Checkout: engine, Orders: repo, Machine: machine, Log: logger},
		Shipments: &httpx.ShipmentsHandler{Shipments: shipments, Loc: loc, Log: logger},
		Settings:  &httpx.SettingsHandler{Rules: rules, Log: logger},
		RFID:      &httpx.RFIDHandler{Gateway: gateway, Log: logger},
	}
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if cfg.RunScheduler {
		sched := &scheduler.Service{
			Interval: cfg.AutoCancelInterval,
			LockTTL:  cfg.AutoCancelInterval,
			Rules:    rules,
			Orders:   repo,
			Machine:  machine,
			Lock:     redisx.NewLocker(rdb),
			Log:      logger.Named("scheduler"),
		}
		g.Go(func() error {
			sched.Start(gctx)
			<-gctx.Done()
			sched.Stop()
			return nil
		})
	}

	return g.Wait()
}
