package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"checkout-service/handlers"
	"checkout-service/internal/auth"
	"checkout-service/internal/config"
	"checkout-service/internal/consul"
	"checkout-service/internal/orders"
	"checkout-service/internal/payments"
	"checkout-service/internal/stores/kafka"
	"checkout-service/internal/stores/memstore"
	"checkout-service/internal/stores/postgres"
	"checkout-service/internal/tracing"
	"checkout-service/middleware"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", slog.Any("error", err))
		os.Exit(1)
	}

	setupSlog(cfg)
	if err := startApp(cfg); err != nil {
		slog.Error("service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func setupSlog(cfg *config.Config) {
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.LogLevel,
	})
	logger := slog.New(logHandler).With(slog.String("service", cfg.ServiceName))
	slog.SetDefault(logger)
}

func openStore(ctx context.Context, cfg *config.Config) (orders.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	db, err := postgres.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store, err := postgres.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}

func startApp(cfg *config.Config) error {
	ctx := context.Background()

	slog.Info("main: Started: Initializing tracing")
	_, shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	slog.Info("main: Started: Initializing db support")
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore()

	if cfg.StripeSecretKey == "" {
		slog.Warn("STRIPE_SECRET_KEY is empty, checkout session creation will fail")
	}
	gateway := payments.NewStripe(payments.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.Currency,
	})

	cartSource, err := orders.ParseCartSource(cfg.CartSource)
	if err != nil {
		return err
	}
	o, err := orders.NewConf(store, gateway, orders.Options{
		CartSource:     cartSource,
		DefaultCountry: cfg.DefaultCountry,
		SuccessURL:     cfg.SuccessURL,
		CancelURL:      cfg.CancelURL,
		GatewayTimeout: cfg.GatewayTimeout,
		Method:         payments.MethodStripe,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("creating orders conf: %w", err)
	}

	slog.Info("main: Started: Initializing kafka producer")
	k, err := kafka.NewConf(cfg.KafkaBrokers, cfg.ServiceName, slog.Default())
	if err != nil {
		return fmt.Errorf("connecting to kafka: %w", err)
	}
	defer k.Close()

	keys, err := auth.NewKeys(cfg.JWTAccessSecret)
	if err != nil {
		return err
	}
	resolver := auth.NewResolver(keys, store, slog.Default())
	m, err := middleware.NewMid(keys, resolver)
	if err != nil {
		return err
	}
	h, err := handlers.NewHandler(o, gateway, k)
	if err != nil {
		return err
	}

	api := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      handlers.API(cfg.EndpointPrefix, m, h),
	}

	var registry *consul.Registry
	instanceID := cfg.ServiceName + "-" + uuid.NewString()
	if cfg.ConsulAddr != "" {
		registry, err = consul.NewRegistry(cfg.ConsulAddr, slog.Default())
		if err != nil {
			return err
		}
		if err := registry.Register(instanceID, cfg.ServiceName, cfg.ServiceHost, cfg.ServicePort); err != nil {
			return err
		}
		defer func() {
			if err := registry.Deregister(instanceID); err != nil {
				slog.Error("consul deregister failed", slog.Any("error", err))
			}
		}()
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("main: API listening", slog.String("addr", api.Addr))
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		slog.Info("main: Start shutdown", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.Shutdown(ctx); err != nil {
			_ = api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}
