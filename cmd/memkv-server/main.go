package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv/internal/infra/buildinfo"
	"github.com/yndnr/memkv/internal/infra/confloader"
	"github.com/yndnr/memkv/internal/infra/shutdown"
	"github.com/yndnr/memkv/internal/server/config"
	"github.com/yndnr/memkv/internal/server/httpserver"
	"github.com/yndnr/memkv/internal/server/redisserver"
	"github.com/yndnr/memkv/internal/storage/memory"
	"github.com/yndnr/memkv/internal/telemetry/logger"
	"github.com/yndnr/memkv/internal/telemetry/metric"
)

// shutdownTimeout bounds the drain of all components.
const shutdownTimeout = 30 * time.Second

// envAliases are unprefixed variables accepted for Redis compatibility.
var envAliases = map[string]string{
	"REDIS_HOST": "server.redis.host",
	"REDIS_PORT": "server.redis.port",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "memkv-server",
		Usage:   "in-memory key-value cache speaking the Redis protocol",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"MEMKV_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.redis.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.redis.port)",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, flagOverrides(c), c.String("config"))
		},
	}
}

// flagOverrides collects the flags the user set, keyed by config path.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	if c.IsSet("host") {
		overrides["server.redis.host"] = c.String("host")
	}
	if c.IsSet("port") {
		overrides["server.redis.port"] = c.Int("port")
	}
	return overrides
}

func run(ctx context.Context, overrides map[string]any, configFile string) error {
	// Load configuration
	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting memkv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", configFile)

	// Storage and metrics
	store := memory.New(
		memory.WithSweepInterval(cfg.Storage.SweepInterval),
		memory.WithLogger(slogLogger.With("component", "storage")),
	)

	registry := metric.NewRegistry()
	registry.MustRegister(metric.NewStoreCollector(func() metric.StoreStats {
		st := store.Stats()
		return metric.StoreStats{
			Keys:          st.Entries,
			IndexSize:     st.IndexSize,
			ExpiredLazy:   st.ExpiredLazy,
			ExpiredActive: st.ExpiredActive,
		}
	}))

	// Redis listener
	redisSrv := redisserver.New(&redisserver.Config{
		Host:         cfg.Server.Redis.Host,
		Port:         cfg.Server.Redis.Port,
		ReadTimeout:  cfg.Server.Redis.ReadTimeout,
		WriteTimeout: cfg.Server.Redis.WriteTimeout,
		RateLimit:    cfg.Server.Redis.RateLimit,
	}, store,
		redisserver.WithMetrics(registry),
		redisserver.WithLogger(slogLogger.With("component", "redis")),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := redisSrv.Start(runCtx); err != nil {
		return fmt.Errorf("start redis server: %w", err)
	}

	// Setup graceful shutdown; hooks run in reverse order of registration.
	shutdownHandler := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(slogLogger))

	shutdownHandler.OnShutdown("redis", func(ctx context.Context) error {
		log.Info("shutting down redis server")
		return redisSrv.Shutdown(ctx)
	})

	// Optional metrics and health endpoint
	if cfg.Server.HTTP.Enabled {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics: registry,
			Health: func() error {
				if redisSrv.Addr() == nil {
					return errors.New("redis listener not bound")
				}
				return nil
			},
			Logger:    slogLogger.With("component", "http"),
			AllowList: cfg.Server.HTTP.AllowList,
		})
		httpSrv := httpserver.New(cfg.Server.HTTP.Addr, router, slogLogger.With("component", "http"))
		if err := httpSrv.Start(); err != nil {
			_ = redisSrv.Shutdown(context.Background())
			return fmt.Errorf("start http server: %w", err)
		}
		shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
			log.Info("shutting down HTTP server")
			return httpSrv.Shutdown(ctx)
		})
	}

	// Config reload on SIGHUP and on file changes. Only log.level is
	// applied at runtime; other settings need a restart.
	reload := func() {
		next, err := loadConfig(configFile, overrides)
		if err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if err := logger.SetLevel(next.Log.Level); err != nil {
			log.Warn("log level not applied", "error", err)
		}
		if next.RedisAddr() != cfg.RedisAddr() {
			log.Warn("listen address change requires a restart",
				"current", cfg.RedisAddr(), "configured", next.RedisAddr())
		}
		log.Info("config reloaded", "log_level", logger.GetLevel())
	}

	go shutdown.NewReloadHandler(reload, slogLogger).Run(runCtx)

	if configFile != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else if err := watcher.Watch(configFile); err != nil {
			log.Warn("config watcher unavailable", "error", err)
			_ = watcher.Stop()
		} else {
			watcher.OnChange(func(string) { reload() })
			watcher.StartAsync()
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	// Wait for shutdown signal
	log.Info("server started, press Ctrl+C to stop", "address", redisSrv.Addr().String())
	if err := shutdownHandler.WaitContext(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file, environment and
// flags, in increasing priority, then validates it.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithEnvAliases(envAliases)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.SetDefault(log)

	return log, logger.Slog(log), nil
}
