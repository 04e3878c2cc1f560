package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/classtrack/api/handler"
	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/internal/config"
	"github.com/fastygo/classtrack/internal/infrastructure/boltdb"
	"github.com/fastygo/classtrack/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/classtrack/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/classtrack/internal/infrastructure/redis"
	"github.com/fastygo/classtrack/internal/middleware"
	"github.com/fastygo/classtrack/internal/router"
	"github.com/fastygo/classtrack/internal/services"
	"github.com/fastygo/classtrack/internal/services/lifecycle"
	"github.com/fastygo/classtrack/pkg/httpcontext"
	"github.com/fastygo/classtrack/repository"
	boltRepo "github.com/fastygo/classtrack/repository/bolt"
	"github.com/fastygo/classtrack/repository/postgres"
	redisRepo "github.com/fastygo/classtrack/repository/redis"
	"github.com/fastygo/classtrack/usecase/cascade"
	historyUC "github.com/fastygo/classtrack/usecase/history"
	progressUC "github.com/fastygo/classtrack/usecase/progress"
	statusUC "github.com/fastygo/classtrack/usecase/status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Starts the completion API, the dependency monitor and the expiry scanner",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type storage struct {
	catalog     repository.CatalogRepository
	completions repository.CompletionRepository
	history     repository.HistoryRepository
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	mon := monitor.New(10*time.Second, zapLogger)

	store, err := openStorage(appCtx, cfg, manager, mon, zapLogger)
	if err != nil {
		return err
	}

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
	if err != nil {
		return err
	}
	var cache repository.ProgressCache
	if redisClient != nil {
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		mon.Add("redis", 3*time.Second, func(ctx context.Context) error {
			return redisInfra.Ping(ctx, redisClient)
		})
		cache = redisRepo.NewProgressCache(redisClient, cfg.Redis.ProgressTTL)
	} else {
		zapLogger.Info("progress cache disabled")
	}

	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	scanner, err := services.NewExpiryScanner(store.completions, services.ScannerConfig{
		Schedule: cfg.Completion.ScanSchedule,
		TTL:      cfg.Completion.TTL,
	}, time.Now, zapLogger)
	if err != nil {
		return err
	}
	scanner.Start()
	manager.Register("expiry_scanner", func(ctx context.Context) error {
		scanner.Stop(ctx)
		return nil
	})

	progressUseCase := progressUC.New(store.catalog, store.completions, cache, zapLogger)
	archiver := historyUC.NewArchiver(zapLogger)
	engine := cascade.NewEngine(store.completions, archiver, time.Now, zapLogger)
	statusUseCase := statusUC.New(store.catalog, store.completions, engine, progressUseCase, time.Now, zapLogger)
	historyUseCase := historyUC.New(store.history, cfg.Completion.HistoryLimit)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	ttl := domain.NewTTL(cfg.Completion.TTL)

	handlers := router.Handlers{
		Status:   apiHandler.NewStatusHandler(statusUseCase, ttl, ctxAdapter, zapLogger),
		Progress: apiHandler.NewProgressHandler(progressUseCase, ctxAdapter, zapLogger),
		History:  apiHandler.NewHistoryHandler(historyUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, scanner, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("store", cfg.Store.Backend))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Error("server crashed", zap.Error(err))
			cancel()
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
		return err
	}
	return nil
}

// openStorage opens the configured backend and registers its probe and shutdown hook.
func openStorage(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, mon *monitor.Monitor, zapLogger *zap.Logger) (*storage, error) {
	switch cfg.Store.Backend {
	case config.BackendBolt:
		db, err := boltdb.Open(cfg.Store.BoltPath, boltRepo.Buckets...)
		if err != nil {
			return nil, err
		}
		manager.Register("boltdb", func(ctx context.Context) error {
			return db.Close()
		})
		mon.Add("boltdb", time.Second, func(ctx context.Context) error {
			return boltdb.Ping(db)
		})
		zapLogger.Info("bolt store opened", zap.String("path", cfg.Store.BoltPath))
		return &storage{
			catalog:     boltRepo.NewCatalogRepository(db),
			completions: boltRepo.NewCompletionRepository(db),
			history:     boltRepo.NewHistoryRepository(db),
		}, nil

	default:
		if err := pgInfra.RunMigrations(cfg, false, zapLogger); err != nil {
			return nil, err
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
		if err != nil {
			return nil, err
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		mon.Add("postgresql", 3*time.Second, pool.Ping)
		return &storage{
			catalog:     postgres.NewCatalogRepository(pool),
			completions: postgres.NewCompletionRepository(pool, cfg.Database.LockTimeout),
			history:     postgres.NewHistoryRepository(pool),
		}, nil
	}
}
