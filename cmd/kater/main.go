// Package main runs the kater host: one player's timed-action engine with an
// HTTP/websocket presentation API, periodic autosave and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/config"
	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/engine"
	"github.com/cory-johannsen/kater/internal/game/resource"
	"github.com/cory-johannsen/kater/internal/game/savefile"
	"github.com/cory-johannsen/kater/internal/gameserver"
	"github.com/cory-johannsen/kater/internal/observability"
	"github.com/cory-johannsen/kater/internal/scripting"
	"github.com/cory-johannsen/kater/internal/server"
	"github.com/cory-johannsen/kater/internal/storage"
	"github.com/cory-johannsen/kater/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file applied before config")
	flag.Parse()

	// A missing dotenv file is normal outside development.
	_ = godotenv.Load(*envFile)

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logging, err := observability.NewLogging(cfg.Logging, cfg.Storage.Player())
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logging.Sync() }()
	logger := logging.Root

	catalog, err := loadCatalog(cfg.Catalog)
	if err != nil {
		logger.Fatal("loading action catalog", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening save store", zap.Error(err))
	}
	defer store.close()

	opts := []engine.Option{
		engine.WithLogger(logging.Component("engine")),
		engine.WithRecorder(metrics),
	}
	if cfg.Scripting.Dir != "" {
		scripts := scripting.NewManager(logging.Component("scripting"))
		if err := scripts.LoadDir(cfg.Scripting.Dir, cfg.Scripting.InstructionLimit); err != nil {
			logger.Fatal("loading reward scripts", zap.String("dir", cfg.Scripting.Dir), zap.Error(err))
		}
		defer scripts.Close()
		opts = append(opts, engine.WithRewardHook(scripts))
		logger.Info("reward scripts loaded", zap.String("dir", cfg.Scripting.Dir))
	}

	eng, err := engine.New(engineConfig(cfg.Engine), catalog, opts...)
	if err != nil {
		logger.Fatal("creating engine", zap.Error(err))
	}

	session := gameserver.NewSession(eng, store, cfg.Storage.Player(), logging.Component("session"),
		gameserver.WithSaveRecorder(metrics),
	)
	restoreSession(ctx, session, logger)

	hub := gameserver.NewHub(logging.Component("hub"))
	loop := gameserver.NewLoop(session, hub, cfg.Engine.TickInterval(), cfg.Engine.AutosaveInterval(), logging.Component("loop"))
	httpSrv := gameserver.NewServer(cfg.HTTP.Addr(), session, hub, logging.Component("http"),
		gameserver.WithMiddleware(metrics.Middleware),
		gameserver.WithMetricsGatherer(reg),
		gameserver.WithReadiness(store.ready),
		gameserver.WithLogLevel(logging.Level),
	)

	lc := server.NewLifecycle(logging.Component("lifecycle"))
	lc.Add("loop", loop)
	lc.Add("http", httpSrv)

	logger.Info("kater starting",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("storage", cfg.Storage.Backend),
		zap.Duration("tick", cfg.Engine.TickInterval()),
		zap.Duration("startup", time.Since(start)),
	)
	if err := lc.Run(ctx); err != nil {
		logger.Error("kater stopped with errors", zap.Error(err))
	}
}

func loadCatalog(cfg config.CatalogConfig) (*action.Catalog, error) {
	if cfg.Path == "" {
		return action.DefaultCatalog(), nil
	}
	return action.LoadCatalog(cfg.Path)
}

func engineConfig(e config.EngineConfig) engine.Config {
	return engine.Config{
		Caps:              resource.Caps{Energy: e.EnergyCap, Hitpoints: e.HitpointsCap},
		EnergyRegen:       e.EnergyRegenPerTick,
		HitpointsRegen:    e.HitpointsRegenPerTick,
		RegenInterval:     e.RegenInterval(),
		InventoryCapacity: e.InventoryCapacity,
	}
}

// saveStore is the configured backend behind an LRU cache.
type saveStore struct {
	storage.Store
	ready func(ctx context.Context, timeout time.Duration) error
	close func()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (saveStore, error) {
	s := saveStore{
		ready: func(context.Context, time.Duration) error { return nil },
		close: func() {},
	}
	var backend storage.Store
	switch cfg.Storage.Backend {
	case "postgres":
		dbStart := time.Now()
		repo, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return saveStore{}, err
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		backend = repo
		s.ready = repo.Ready
		s.close = repo.Close
	default:
		fs, err := storage.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return saveStore{}, err
		}
		backend = fs
	}
	s.Store = storage.NewCachedStore(backend, cfg.Storage.CacheSize, cfg.Storage.CacheTTL)
	return s, nil
}

// restoreSession loads the stored record. A missing or malformed record leaves
// a fresh player; any other failure is fatal.
func restoreSession(ctx context.Context, session *gameserver.Session, logger *zap.Logger) {
	found, err := session.Restore(ctx)
	switch {
	case err == nil && found:
		logger.Info("save restored")
	case err == nil:
		logger.Info("no save found; starting fresh")
	case errors.Is(err, savefile.ErrMalformed):
		logger.Warn("save unreadable; starting fresh", zap.Error(err))
	default:
		logger.Fatal("restoring save", zap.Error(err))
	}
}
