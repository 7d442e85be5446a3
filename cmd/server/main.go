package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/config"
	"github.com/magefree/deckledger/internal/game"
	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/persistence"
	"github.com/magefree/deckledger/internal/repository"
	"github.com/magefree/deckledger/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting deckledger server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	catalog := cards.DefaultCatalog()
	if cfg.Game.CatalogPath != "" {
		catalog, err = cards.LoadCatalog(cfg.Game.CatalogPath)
		if err != nil {
			logger.Fatal("failed to load card catalog", zap.Error(err))
		}
	}

	// Open the persistence backend and read back anything already written
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open persistence backend", zap.Error(err))
	}
	var existing []actionlog.Entry
	if store != nil {
		existing, err = store.load(ctx)
		if err != nil {
			logger.Fatal("failed to read persisted action log", zap.Error(err))
		}
	}

	var worker *persistence.Worker
	if store != nil {
		worker = persistence.NewWorker(store.writer, logger.Named("persistence"),
			persistence.WithQueueSize(cfg.Persistence.QueueSize),
			persistence.WithPollInterval(cfg.Persistence.PollInterval),
		)
	}

	hub := server.NewHub(logger.Named("ws"))
	go hub.Run(ctx)

	sinks := actionlog.Sinks{hub}
	if worker != nil {
		sinks = append(sinks, skipThrough(worker, uint64(len(existing))))
	}
	opts := game.Options{
		Catalog:        catalog,
		BaselineHealth: cfg.Game.BaselineHealth,
		AuditRNG:       cfg.Game.AuditRNG,
		Logger:         logger.Named("game"),
		LogOptions:     []actionlog.Option{actionlog.WithSink(sinks)},
	}

	var g *game.Game
	if len(existing) > 0 {
		// Replay forces audit off; live play after resuming keeps the configured setting
		g, err = game.Replay(opts, existing)
		if err != nil {
			logger.Fatal("failed to resume from persisted action log", zap.Error(err))
		}
		g.SetAuditRNG(cfg.Game.AuditRNG)
		logger.Info("resumed game from action log",
			zap.Int("entries", len(existing)),
			zap.Uint64("seed", g.Seed()),
		)
	} else {
		g, err = game.New(opts)
		if err != nil {
			logger.Fatal("failed to create game", zap.Error(err))
		}
		if cfg.Game.Seed != game.DefaultSeed {
			if _, err := g.SetSeed(cfg.Game.Seed, actionlog.WithActor("server")); err != nil {
				logger.Fatal("failed to seed game", zap.Error(err))
			}
		}
	}

	wsServer := server.NewWebSocketServer(cfg.Server.WebSocket, g, hub, logger.Named("ws"))
	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, logger.Named("grpc"))

	go func() {
		if serveErr := grpcServer.ListenAndServe(); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	go func() {
		if wsErr := wsServer.ListenAndServe(); wsErr != nil {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("deckledger server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.String("persistence_backend", cfg.Persistence.Backend),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	grpcServer.SetGameServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket shutdown incomplete", zap.Error(err))
	}
	cancel()

	if worker != nil {
		if err := worker.Close(); err != nil {
			logger.Error("failed to close persistence worker", zap.Error(err))
		}
	}
	if store != nil && store.closePool != nil {
		store.closePool()
	}

	grpcServer.Stop()

	logger.Info("deckledger server stopped")
}

// store is an opened persistence backend.
type store struct {
	writer    persistence.BatchWriter
	load      func(ctx context.Context) ([]actionlog.Entry, error)
	closePool func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	switch cfg.Persistence.Backend {
	case config.BackendNone:
		logger.Warn("persistence disabled; the action log lives only in memory")
		return nil, nil

	case config.BackendFile:
		path := cfg.Persistence.Path
		load := func(context.Context) ([]actionlog.Entry, error) {
			entries, err := persistence.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return entries, err
		}
		// read before opening so a fresh file is not mistaken for an empty log
		entries, err := load(ctx)
		if err != nil {
			return nil, err
		}
		fw, err := persistence.OpenFile(path, persistence.FileOptions{
			Compress: cfg.Persistence.Compress,
			Fsync:    cfg.Persistence.Fsync,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("file persistence opened", zap.String("path", path), zap.Bool("compress", cfg.Persistence.Compress))
		return &store{
			writer: fw,
			load:   func(context.Context) ([]actionlog.Entry, error) { return entries, nil },
		}, nil

	case config.BackendSQLite:
		s, err := repository.OpenSQLite(cfg.Persistence.Path, logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		return &store{writer: s, load: s.LoadAll}, nil

	case config.BackendPostgres:
		pool, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		stats := pool.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		s, err := repository.NewPostgresStore(ctx, pool, logger.Named("postgres"))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &store{writer: s, load: s.LoadAll, closePool: pool.Close}, nil

	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}
}

// skipThrough drops entries already persisted, which a resumed game
// appends again while replaying.
func skipThrough(sink actionlog.Sink, seq uint64) actionlog.Sink {
	return actionlog.SinkFunc(func(entries []actionlog.Entry) error {
		fresh := entries[:0:0]
		for _, e := range entries {
			if e.Seq > seq {
				fresh = append(fresh, e)
			}
		}
		if len(fresh) == 0 {
			return nil
		}
		return sink.Submit(fresh)
	})
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
