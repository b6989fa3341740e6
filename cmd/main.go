package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infiniteaudio/mixintel/internal/analyzer"
	appconfig "github.com/infiniteaudio/mixintel/internal/config"
	"github.com/infiniteaudio/mixintel/internal/database"
	"github.com/infiniteaudio/mixintel/internal/memstore"
	rediscache "github.com/infiniteaudio/mixintel/internal/redis"
	"github.com/infiniteaudio/mixintel/internal/repository"
	"github.com/infiniteaudio/mixintel/internal/scheduler"
	"github.com/infiniteaudio/mixintel/internal/server"
	"github.com/infiniteaudio/mixintel/internal/storage"
	"github.com/infiniteaudio/mixintel/internal/store"
	httpapi "github.com/infiniteaudio/mixintel/internal/transport/http"
)

func main() {
	cfg := appconfig.Load()
	slog.Info("starting mixintel", "addr", cfg.HTTPAddr, "store", cfg.StoreMode, "worker_enabled", cfg.WorkerEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var jobStore store.Store
	switch cfg.StoreMode {
	case "memory":
		slog.Warn("using in-memory job store, jobs will not survive a restart")
		jobStore = memstore.New()
	default:
		db, err := database.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := repository.New(db)
		if err := repo.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "err", err)
			os.Exit(1)
		}
		jobStore = repo
	}

	storageService, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	slog.Info("storage initialized", "mode", cfg.StorageMode)

	var cache *rediscache.Service
	if cfg.RedisURL != "" {
		cache, err = rediscache.New(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer cache.Close()
	} else {
		slog.Info("audit cache disabled, REDIS_URL not set")
	}

	narrator := analyzer.NewNarrator(cfg.OpenAIAPIKey)
	mixAnalyzer := analyzer.NewMixAnalyzer(storageService, nil, narrator)
	sched := scheduler.New(jobStore, mixAnalyzer)

	if cfg.WorkerEnabled {
		for i := 0; i < cfg.WorkerCount; i++ {
			w := scheduler.NewWorker(sched, cfg.WorkerPollInterval, cfg.WorkerErrorBackoff)
			go w.Run(ctx)
		}
	} else {
		slog.Info("background worker disabled, jobs claimed via process-next only")
	}

	handlers := &httpapi.Handlers{
		Store:   jobStore,
		Sched:   sched,
		Storage: storageService,
		Cache:   cache,
		Config:  cfg,
	}
	r := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	slog.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	cancel()
}
