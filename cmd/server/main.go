package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatori-be/internal/auth"
	"chatori-be/internal/cart"
	"chatori-be/internal/config"
	"chatori-be/internal/db"
	"chatori-be/internal/events"
	"chatori-be/internal/logger"
	"chatori-be/internal/metrics"
	"chatori-be/internal/middleware"
	"chatori-be/internal/order"
	"chatori-be/internal/payment"
	"chatori-be/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// store bundles the repositories of the configured backend.
type store struct {
	carts  cart.Repository
	orders order.Repository
	ping   server.Pinger
	close  func() error
}

var (
	openStoreFunc    = openStore
	newPublisherFunc = newPublisher
	startServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		logger.L().Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st, err := openStoreFunc(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.L().Warn("failed to close store", zap.Error(err))
		}
	}()

	pub, err := newPublisherFunc(cfg)
	if err != nil {
		return err
	}
	dispatcher := events.NewDispatcher(pub, m)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.L().Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	go limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           newServer(cfg, st, dispatcher, limiter, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("event_broker", cfg.EventBroker),
		)
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newServer(cfg *config.Config, st *store, emitter *events.Dispatcher, limiter *middleware.RateLimiter, m *metrics.Metrics) http.Handler {
	cartSvc := cart.NewService(st.carts)
	orderSvc := order.NewService(st.orders, cartSvc, emitter, m)

	gateway := payment.NewRazorpayGateway(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout)
	paymentSvc := payment.NewService(gateway, orderSvc, cfg.RazorpayKeySecret, m)

	return server.NewRouter(server.Deps{
		Tokens:     auth.NewTokenParser(cfg.JWTSecret),
		Limiter:    limiter,
		Metrics:    m,
		CORSOrigin: cfg.CORSOrigin,
		Health:     st.ping,
		Carts:      cart.NewHandler(cartSvc),
		Orders:     order.NewHandler(orderSvc),
		Payments:   payment.NewHandler(paymentSvc),
	})
}

func openStore(cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, database, err := db.NewMongo(cfg)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.EnsureIndexes(ctx, database); err != nil {
			_ = db.CloseMongo(client)
			return nil, err
		}
		return &store{
			carts:  cart.NewMongoRepository(database, db.CartsCollection),
			orders: order.NewMongoRepository(database),
			ping:   func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:  func() error { return db.CloseMongo(client) },
		}, nil

	default:
		database, err := db.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return &store{
			carts:  cart.NewRepository(database),
			orders: order.NewRepository(database),
			ping:   database.PingContext,
			close:  database.Close,
		}, nil
	}
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventBroker {
	case config.EventBrokerNATS:
		pub, err := events.NewNatsPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case config.EventBrokerKafka:
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return events.Noop{}, nil
	}
}
