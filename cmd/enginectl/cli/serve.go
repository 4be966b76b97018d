package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/arturoeanton/go-git-analyzer-ollama/internal/audit"
	"github.com/arturoeanton/go-git-analyzer-ollama/internal/event"
	runtimefiber "github.com/arturoeanton/go-git-analyzer-ollama/internal/fiber"
	"github.com/arturoeanton/go-git-analyzer-ollama/internal/handler"
	"github.com/arturoeanton/go-git-analyzer-ollama/internal/modest"
	"github.com/arturoeanton/go-git-analyzer-ollama/internal/telemetry"
	"github.com/arturoeanton/go-git-analyzer-ollama/pkg/config"
)

// lifecycleTapID is the reserved event id on which the EngineHandler
// publishes started/stopped Events for the Operations it submits, and
// on which the audit Observer and SSE handler are registered. No tap
// routes other event ids to it.
const lifecycleTapID event.ID = 1

// NewServeCmd builds the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Boot the engine's HTTP admin surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg := config.Load()
	slog.Info("booting engine runtime",
		"port", cfg.Port,
		"engine_pool_size", cfg.EnginePoolSize,
		"fiber_workers", cfg.FiberWorkers,
	)

	provider, err := telemetry.Init(cfg.AppName, nil)
	if err != nil {
		slog.Warn("tracing disabled: failed to init exporter", "error", err)
	}
	if provider != nil {
		defer func() { _ = provider.Shutdown(context.Background()) }()
	}
	tracer := telemetry.Tracer(cfg.AppName)

	engine := modest.NewEngine(modest.Config{
		PoolSize:     cfg.EnginePoolSize,
		ThreadExpire: cfg.EngineThreadExpire,
		Tracer:       tracer,
	})
	defer engine.Stop()

	scheduler := runtimefiber.NewScheduler(cfg.FiberWorkers, cfg.FiberMaxCount)
	defer scheduler.Stop()

	bus := event.NewObservable(engine)
	bus.Start()
	defer bus.Stop()

	daemon := event.NewDaemon(engine, bus)
	daemon.Start()
	defer daemon.Stop()

	eventsHandler := handler.NewEventsHandler()
	bus.RegisterObserver(eventsHandler, lifecycleTapID)

	if store, err := audit.Open(cfg.DatabaseURL); err != nil {
		slog.Warn("audit persistence disabled: database unavailable", "error", err)
	} else {
		defer store.Close()
		if err := audit.Migrate(store.DB()); err != nil {
			slog.Warn("audit migrations failed", "error", err)
		} else {
			observer := audit.NewObserver(store, func(err error) {
				slog.Error("audit write failed", "error", err)
			})
			bus.RegisterObserver(observer, lifecycleTapID)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "app": cfg.AppName})
	})

	api := app.Group("/api/v1")
	handler.NewEngineHandler(engine, 2*time.Second, bus, lifecycleTapID).Register(api)
	handler.NewFiberHandler(scheduler).Register(api)
	eventsHandler.Register(api)

	config.WatchReload(func(c *config.Config) {
		slog.Info("config reloaded", "engine_pool_size", c.EnginePoolSize, "log_level", c.LogLevel)
	})

	slog.Info("admin surface listening", "port", cfg.Port)
	return app.Listen(":" + cfg.Port)
}
