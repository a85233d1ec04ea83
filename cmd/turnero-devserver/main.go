package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/config"
	"github.com/campe111/turnero/internal/devserver"
	"github.com/campe111/turnero/internal/logging"
	"github.com/campe111/turnero/internal/telemetry"
)

func main() {
	config.LoadEnv()
	cfg := config.LoadServer()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := telemetry.Setup(context.Background(), config.LoadTelemetry("turnero-devserver"), logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatal("generate jwt secret", zap.Error(err))
		}
		logger.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}

	clk := clock.Real()
	store := devserver.NewStore(clk)
	handler := devserver.NewHandler(store, devserver.NewTokenIssuer(secret, cfg.TokenTTL, clk), logger)
	if err := handler.SeedAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	limiter := devserver.NewRateLimiter(devserver.RateLimitConfig{
		PerMinute:         cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
		TrustForwardedFor: cfg.TrustProxy,
		Clock:             clk,
	})

	routes := devserver.LoggingMiddleware(logger)(limiter.Middleware(handler.Routes()))
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(routes, "turnero-devserver"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("turnero-devserver listening", zap.String("addr", server.Addr), zap.String("admin", cfg.AdminEmail))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
