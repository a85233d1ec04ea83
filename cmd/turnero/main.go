package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/cli"
	"github.com/campe111/turnero/internal/client"
	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/config"
	"github.com/campe111/turnero/internal/logging"
	"github.com/campe111/turnero/internal/session"
	"github.com/campe111/turnero/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	config.LoadEnv()
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := telemetry.Setup(context.Background(), config.LoadTelemetry("turnero"), logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	clk := clock.Real()
	sess := openSession(session.NewFileStore(cfg.CredentialsFile), clk, logger, os.Stderr)

	c, err := client.New(client.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.HTTPTimeout,
		Session: sess,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		return 1
	}

	app := &cli.App{
		Client:          c,
		Session:         sess,
		Logger:          logger,
		Clock:           clk,
		RefreshInterval: cfg.RefreshInterval,
		In:              os.Stdin,
		Out:             os.Stdout,
		Err:             os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", cli.Describe(err))
		return 1
	}
	return 0
}

// openSession restores saved credentials. An unreadable credentials file
// is reported and then ignored, so logout and login still work.
func openSession(store session.Store, clk clock.Clock, logger *zap.Logger, stderr io.Writer) *session.Session {
	sess, err := session.New(store, clk, logger)
	if err != nil {
		logger.Warn("ignoring unreadable credentials", zap.Error(err))
		fmt.Fprintln(stderr, "Credenciales guardadas ilegibles; se descartan")
		sess.Clear(session.ReasonLogout)
	}
	sess.OnCleared(func(reason string) {
		if reason == session.ReasonUnauthorized || reason == session.ReasonExpired {
			fmt.Fprintln(stderr, "Sesión expirada, iniciá sesión nuevamente con 'turnero login'")
		}
	})
	return sess
}
