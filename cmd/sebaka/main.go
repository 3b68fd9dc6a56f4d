package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/api"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/auth"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/httputil"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/metrics"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/propagation"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/scenario"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("SEBAKA_LOG_LEVEL")),
	}))

	addr := os.Getenv("SEBAKA_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	catalogFile := os.Getenv("SEBAKA_CATALOG_FILE")
	scn, err := scenario.Load(context.Background(), catalogFile, logger)
	if err != nil {
		logger.Error("loading scenario", "file", catalogFile, "error", err)
		os.Exit(1)
	}
	reg, err := scn.Registry()
	if err != nil {
		logger.Error("compiling events", "error", err)
		os.Exit(1)
	}

	store := catalog.NewStore(logger)
	if err := store.Set(scn.Catalog); err != nil {
		logger.Error("invalid catalog", "error", err)
		os.Exit(1)
	}
	metrics.SetCatalogRevision(store.Revision())
	logger.Info("scenario loaded",
		"file", catalogFile,
		"bodies", len(scn.Catalog.Stars)+len(scn.Catalog.Planets),
		"events", len(reg.Names()),
	)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeCfg := loadStoreConfig(logger)
	eventStore, closeStore, err := eventstore.Open(ctx, storeCfg.Backend, storeCfg.Path, storeCfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("opening event store", "backend", storeCfg.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	propCfg := loadPropConfig(logger)
	prop := propagation.NewPropagator(store, propCfg, logger)

	searchCfg := loadSearchConfig(logger)
	finder := search.NewFinder(logger)

	streamCfg := loadStreamConfig(logger)
	streamCfg.TrustProxy = searchCfg.TrustProxy
	streamHandler := stream.NewHandler(store, reg, finder, streamCfg, logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Catalog:       store,
		Events:        reg,
		Propagator:    prop,
		Finder:        finder,
		Store:         eventStore,
		Stream:        streamHandler,
		SearchLimiter: httputil.NewIPRateLimiter(searchCfg.Rate, searchCfg.Burst),
		TrustProxy:    searchCfg.TrustProxy,
		SearchTimeout: searchCfg.Timeout,
	})

	// Reload the body catalog on SIGHUP. Event definitions stay as loaded.
	if catalogFile != "" {
		go watchReload(ctx, catalogFile, store, logger)
	}

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"event_store", storeCfg.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func watchReload(ctx context.Context, path string, store *catalog.Store, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			scn, err := scenario.Load(ctx, path, logger)
			if err != nil {
				logger.Warn("catalog reload failed, keeping current catalog", "file", path, "error", err)
				continue
			}
			if err := store.Set(scn.Catalog); err != nil {
				logger.Warn("catalog reload rejected", "file", path, "error", err)
				continue
			}
			metrics.SetCatalogRevision(store.Revision())
		}
	}
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SEBAKA_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SEBAKA_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SEBAKA_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SEBAKA_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

type storeConfig struct {
	Backend     string
	Path        string
	DatabaseURL string
}

func loadStoreConfig(logger *slog.Logger) storeConfig {
	cfg := storeConfig{
		Backend: eventstore.BackendFile,
		Path:    "/tmp/sebaka/precomputed_events.json",
	}

	if v := os.Getenv("SEBAKA_STORE"); v != "" {
		switch v = strings.ToLower(v); v {
		case eventstore.BackendFile, eventstore.BackendPostgres, eventstore.BackendMemory, eventstore.BackendNone:
			cfg.Backend = v
		default:
			logger.Warn("invalid SEBAKA_STORE value, using default", "value", v, "default", cfg.Backend)
		}
	}

	if v := os.Getenv("SEBAKA_STORE_PATH"); v != "" {
		cfg.Path = v
	}
	cfg.DatabaseURL = os.Getenv("SEBAKA_DATABASE_URL")

	logger.Info("event store config",
		"backend", cfg.Backend,
		"path", cfg.Path,
		"database_url_set", cfg.DatabaseURL != "",
	)

	return cfg
}

func loadPropConfig(logger *slog.Logger) propagation.PropConfig {
	cfg := propagation.PropConfig{
		Workers:   runtime.NumCPU(),
		MaxFrames: propagation.DefaultMaxFrames,
	}

	if v := os.Getenv("SEBAKA_PROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEBAKA_PROP_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("SEBAKA_MAX_FRAMES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEBAKA_MAX_FRAMES value, using default", "value", v, "default", cfg.MaxFrames)
		} else {
			cfg.MaxFrames = n
		}
	}

	logger.Info("propagation config",
		"workers", cfg.Workers,
		"max_frames", cfg.MaxFrames,
	)

	return cfg
}

type searchConfig struct {
	Rate       float64
	Burst      int
	Timeout    time.Duration
	TrustProxy bool
}

func loadSearchConfig(logger *slog.Logger) searchConfig {
	cfg := searchConfig{
		Rate:    0.5,
		Burst:   5,
		Timeout: 60 * time.Second,
	}

	if v := os.Getenv("SEBAKA_SEARCH_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid SEBAKA_SEARCH_RATE value, using default", "value", v, "default", cfg.Rate)
		} else {
			cfg.Rate = f
		}
	}

	if v := os.Getenv("SEBAKA_SEARCH_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEBAKA_SEARCH_BURST value, using default", "value", v, "default", cfg.Burst)
		} else {
			cfg.Burst = n
		}
	}

	if v := os.Getenv("SEBAKA_SEARCH_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEBAKA_SEARCH_TIMEOUT value, using default", "value", v, "default", 60)
		} else {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SEBAKA_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SEBAKA_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	logger.Info("search config",
		"rate_per_second", cfg.Rate,
		"burst", cfg.Burst,
		"timeout_seconds", cfg.Timeout.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.DefaultConfig()

	if v := os.Getenv("SEBAKA_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEBAKA_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", cfg.MaxConcurrentPerIP)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("SEBAKA_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEBAKA_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 15)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SEBAKA_STREAM_PROGRESS_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid SEBAKA_STREAM_PROGRESS_INTERVAL_MS value, using default", "value", v, "default", 250)
		} else {
			cfg.ProgressInterval = time.Duration(n) * time.Millisecond
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"progress_interval_ms", cfg.ProgressInterval.Milliseconds(),
	)

	return cfg
}
