package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-harvest/cmd/harvest/config"
	"github.com/goliatone/go-router"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Resolve(args, os.LookupEnv)
	if err != nil {
		return err
	}

	base, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = base.Sync() }()
	logger := base.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Errorf("close: %v", err)
		}
	}()

	if cfg.Import != "" {
		out, err := app.Import.Run(ctx, cfg.Import)
		if err != nil {
			return fmt.Errorf("import %s: %w", cfg.Import, err)
		}
		logger.Infof("imported %d entries from %s", out.Recorded, cfg.Import)
	}

	srv := router.NewFiberAdapter(fiberAppInitializer())
	app.SetupRoutes(srv.Router())

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("serving %s on http://%s", cfg.Harvest.FarmName, cfg.Addr())
		errCh <- srv.Serve(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func fiberAppInitializer() func(*fiber.App) *fiber.App {
	return func(*fiber.App) *fiber.App {
		fiberApp := fiber.New(fiber.Config{
			AppName:               "Harvest",
			BodyLimit:             1 << 20,
			DisableStartupMessage: true,
		})
		fiberApp.Use(recover.New())
		fiberApp.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		}))
		return fiberApp
	}
}
