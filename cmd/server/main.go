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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/tokenauth/internal/auth"
	"github.com/hongminglow/tokenauth/internal/config"
	"github.com/hongminglow/tokenauth/internal/server"
	"github.com/hongminglow/tokenauth/internal/storage/sqlbridge"
	"github.com/hongminglow/tokenauth/internal/users"
)

const shutdownTimeout = 15 * time.Second

// httpServer is the part of server.Server the serve loop drives.
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(log); err != nil {
		log.Fatal(err)
	}
}

func run(log *logrus.Logger) error {
	loadLocalEnv(log)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx := context.Background()
	bridge, err := sqlbridge.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, sqlbridge.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, sqlbridge.WithLogger(log.WithField("component", "sqlbridge")), sqlbridge.WithMetrics(sqlbridge.NewMetrics(registry)))
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer bridge.Close()

	svc, err := users.NewService(bridge, cfg.UserTable,
		users.WithHasher(auth.NewBcryptHasher(cfg.BcryptCost)),
		users.WithTokens(tokenGenerator(cfg)),
		users.WithTokenTTL(cfg.TokenTTL),
		users.WithLogger(log.WithField("component", "users")),
	)
	if err != nil {
		return fmt.Errorf("init user service: %w", err)
	}
	if err := svc.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	srv := server.New(cfg, svc, registry, log.WithField("component", "http"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log.Infof("tokenauth listening on %s", cfg.HTTPAddress())
	return serve(srv, sigCh, log)
}

// serve runs srv until it fails or a signal arrives, then shuts it down.
func serve(srv httpServer, stop <-chan os.Signal, log logrus.FieldLogger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func tokenGenerator(cfg config.Config) auth.TokenGenerator {
	if cfg.TokenFormat == config.TokenFormatJWT {
		return auth.NewJWTTokens(cfg.JWTSecret, cfg.JWTIssuer)
	}
	return auth.NewRandomTokens(cfg.TokenLength)
}

func loadLocalEnv(log logrus.FieldLogger) {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found; relying on existing environment")
	}
}
