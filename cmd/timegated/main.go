package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"timegate/config"
	"timegate/internal/catalog"
	"timegate/internal/coordinator"
	"timegate/internal/fallback"
	"timegate/internal/host"
	"timegate/internal/logging"
	"timegate/internal/overlay"
	"timegate/internal/permission"
	"timegate/internal/storage/sqlite"
	"timegate/internal/watcher"
)

const defaultConfigPath = "config.json"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg *config.Config
	var err error

	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}

	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Log.Format,
		Level:  logging.ParseLevel(cfg.Log.Level),
	})

	clock := clockwork.NewRealClock()

	logger.Info("initializing session store", "path", cfg.Database.Path)
	db, err := sqlite.New(cfg.Database.Path, clock)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	apps := catalog.New()
	for _, app := range cfg.Apps {
		if err := apps.Register(&catalog.App{ID: app.ID, Name: app.Name}); err != nil {
			return fmt.Errorf("failed to register app %s: %w", app.ID, err)
		}
	}

	localHost := host.NewLocal(host.Grants{
		DisplayOverApps: cfg.Host.DisplayOverApps,
		Notifications:   cfg.Host.Notifications,
	}, logger)

	gatekeeper := permission.NewGatekeeper(localHost, clock, logger)
	surfaces := overlay.NewManager(localHost, gatekeeper, cfg.Host.Version, logger)
	dialog := fallback.NewPresenter(localHost, logger)

	expiryWatcher := watcher.New(db, clock, watcher.DefaultInterval, logger)

	coord := coordinator.New(coordinator.Config{
		Store:      db,
		Gatekeeper: gatekeeper,
		Surfaces:   surfaces,
		Dialog:     dialog,
		Foreground: localHost,
		Catalog:    apps,
		Settings:   cfg.Settings,
		Expiries:   expiryWatcher.Events(),
		Clock:      clock,
		Logger:     logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go expiryWatcher.Start(ctx)
	go coord.Run(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	logger.Info("received signal, starting graceful shutdown", "signal", sig.String())

	expiryWatcher.Stop()
	coord.Stop()
	cancel()

	logger.Info("graceful shutdown complete")
	return nil
}
