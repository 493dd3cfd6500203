package main

import (
	"context"
	"fmt"

	"github.com/goliatone/go-command/dispatcher"
	harvestpdf "github.com/goliatone/go-harvest/adapters/pdf"
	harvestrouter "github.com/goliatone/go-harvest/adapters/router"
	storefs "github.com/goliatone/go-harvest/adapters/store/fs"
	harvesttemplate "github.com/goliatone/go-harvest/adapters/template"
	trackerbun "github.com/goliatone/go-harvest/adapters/tracker/bun"
	"github.com/goliatone/go-harvest/cmd/harvest/config"
	harvestcmd "github.com/goliatone/go-harvest/command"
	"github.com/goliatone/go-harvest/harvest"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// App holds the application dependencies.
type App struct {
	Config  config.Config
	Logger  *zap.SugaredLogger
	Service harvest.Service
	Pages   *harvesttemplate.Renderer
	Host    *harvestpdf.ChromiumHost
	Import  *harvestcmd.ImportCommand

	store         *storefs.Store
	db            *bun.DB
	subscriptions []dispatcher.Subscription
}

// NewApp creates and initializes the application.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	app := &App{Config: cfg, Logger: logger}

	formatter, err := harvest.NewFormatter(cfg.Harvest.Locale, cfg.Harvest.Timezone)
	if err != nil {
		return nil, fmt.Errorf("formatter: %w", err)
	}

	app.Pages, err = harvesttemplate.NewRenderer(harvesttemplate.Config{
		FarmName:  cfg.Harvest.FarmName,
		Formatter: formatter,
		Width:     cfg.PDF.Width,
	})
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	app.Host = &harvestpdf.ChromiumHost{
		BrowserPath:          cfg.PDF.ChromiumPath,
		Headless:             cfg.PDF.Headless,
		Args:                 cfg.PDF.Args,
		Settle:               harvestpdf.SettleMode(cfg.PDF.SettleMode),
		SettleDelay:          cfg.PDF.SettleDelay,
		ExternalAssetsPolicy: harvestpdf.ExternalAssetsPolicy(cfg.PDF.ExternalAssetsPolicy),
		BaseURL:              cfg.PDF.BaseURL,
		Logger:               logger,
	}
	pipeline := &harvestpdf.Pipeline{
		Renderer: app.Pages,
		Host:     app.Host,
		Logger:   logger,
		Timeout:  cfg.PDF.Timeout,
		Width:    cfg.PDF.Width,
		Scale:    cfg.PDF.Scale,
	}

	serviceCfg := harvest.ServiceConfig{
		Exporter:        pipeline,
		Formatter:       formatter,
		Logger:          logger,
		FarmName:        cfg.Harvest.FarmName,
		ReceiptFilename: cfg.Harvest.ReceiptFilename,
		SummaryFilename: cfg.Harvest.SummaryFilename,
	}

	// documents never outlive the session
	if cfg.Storage.DocumentDir != "" {
		app.store = storefs.NewStore(cfg.Storage.DocumentDir)
		if err := app.store.Purge(ctx); err != nil {
			return nil, fmt.Errorf("purge documents: %w", err)
		}
		serviceCfg.Store = app.store
	}

	if cfg.Storage.Tracker == config.TrackerSQLite {
		app.db, err = trackerbun.OpenSession(ctx, "harvest")
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open export history: %w", err)
		}
		tracker := trackerbun.NewTracker(app.db)
		if err := tracker.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("export history schema: %w", err)
		}
		serviceCfg.Tracker = tracker
	}

	app.Service = harvest.NewService(serviceCfg)
	app.Import = harvestcmd.NewImportCommand(app.Service, nil)

	app.subscriptions, err = RegisterHarvestHandlers(nil, app.Service)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("register harvest handlers: %w", err)
	}
	return app, nil
}

// SetupRoutes registers the page and API on a go-router router.
func (a *App) SetupRoutes(r any) {
	harvestrouter.NewHandler(harvestrouter.Config{
		Service:           a.Service,
		Pages:             a.Pages,
		Logger:            a.Logger,
		DefaultPricePerKg: a.Config.Harvest.DefaultPricePerKg,
		HistoryLimit:      a.Config.Harvest.HistoryLimit,
	}).RegisterRoutes(r)
}

// Close releases app resources.
func (a *App) Close() error {
	for _, sub := range a.subscriptions {
		sub.Unsubscribe()
	}
	a.subscriptions = nil

	var firstErr error
	if a.Host != nil {
		if err := a.Host.Close(); err != nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Purge(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.db = nil
	}
	return firstErr
}
