package main

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"typstapi/docs"
	"typstapi/internal/compiler"
	"typstapi/internal/config"
	"typstapi/internal/httpapi"
	"typstapi/internal/metrics"
	"typstapi/internal/pkg/logger"
	"typstapi/internal/pkg/middleware"
	"typstapi/internal/pkg/shutdown"
	"typstapi/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault().Fatal("failed to load configuration", err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "typstapi",
		AddSource:   cfg.Log.Source,
	})

	log.Info("starting typst compile API",
		"version", docs.SwaggerInfo.Version,
	)

	// Initialize shutdown manager
	shutdownMgr := shutdown.NewManager(log, cfg.Shutdown.Timeout)

	// Compiler
	typst := compiler.New(compiler.Options{
		Binary:           cfg.Compiler.Binary,
		DiagnosticFormat: cfg.Compiler.DiagnosticFormat,
		Timeout:          cfg.Compiler.Timeout,
		Env:              cfg.Compiler.Env,
		Logger:           log,
	})
	if path, err := typst.LookPath(); err != nil {
		log.Warn("typst binary not found; compile requests will fail until it is installed",
			"binary", typst.Binary(),
			"error", err.Error(),
		)
	} else {
		log.Info("typst binary resolved", "path", path)
	}
	if cfg.HTTP.WriteTimeout > 0 && cfg.Compiler.Timeout > 0 && cfg.HTTP.WriteTimeout <= cfg.Compiler.Timeout {
		log.Warn("http.write_timeout does not exceed compiler.timeout; slow compilations will lose their response",
			"write_timeout", cfg.HTTP.WriteTimeout.String(),
			"compiler_timeout", cfg.Compiler.Timeout.String(),
		)
	}

	recorder := metrics.NewRecorder(metrics.DefaultNamespace)

	// Connect to Redis when configured
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		log.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("failed to ping Redis", err)
		}
		log.Info("Redis connected")
	}

	// Create HTTP router
	router := httpapi.NewRouter(httpapi.Deps{
		Log:                log,
		Compiler:           recorder.Wrap(typst),
		Prober:             typst,
		RDB:                rdb,
		Limiter:            newLimiter(cfg, rdb, log),
		Metrics:            recorder.Handler(),
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		TrustProxy:         cfg.HTTP.TrustProxy,
		Version:            docs.SwaggerInfo.Version,
	})

	// Request contexts derive from baseCtx so shutdown can kill compilations
	// that would otherwise outlive the drain.
	baseCtx, cancelInFlight := context.WithCancel(context.Background())
	defer cancelInFlight()

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	// Register server shutdown
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpapi.DrainServer(ctx, server, cancelInFlight, drainGrace(cfg.Shutdown.Timeout))
	})

	serveCtx, stopServe := context.WithCancel(context.Background())
	defer stopServe()
	serveErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err.Error())
			serveErr <- err
			stopServe()
		}
	}()

	// Wait for shutdown signal
	if err := shutdownMgr.WaitWithContext(serveCtx); err != nil {
		log.Error("shutdown finished with errors", "error", err.Error())
		os.Exit(1)
	}
	select {
	case <-serveErr:
		os.Exit(1)
	default:
	}
}

// newLimiter picks the redis fixed-window limiter when redis is configured
// and the in-process token bucket otherwise.
func newLimiter(cfg *config.Config, rdb *redis.Client, log *logger.Logger) middleware.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	if rdb != nil {
		limit := int(math.Ceil(rl.RequestsPerSecond * rl.Window.Seconds()))
		if limit < rl.Burst {
			limit = rl.Burst
		}
		log.Info("rate limiting enabled", "backend", "redis", "limit", limit, "window", rl.Window.String())
		return ratelimit.NewRedisLimiter(rdb, limit, rl.Window, "")
	}
	log.Info("rate limiting enabled", "backend", "memory", "rps", rl.RequestsPerSecond, "burst", rl.Burst)
	return ratelimit.NewMemoryLimiter(rl.RequestsPerSecond, rl.Burst, 0)
}

// drainGrace keeps the in-flight cancel inside short shutdown timeouts.
func drainGrace(timeout time.Duration) time.Duration {
	if timeout > 0 && timeout < 2*httpapi.DefaultDrainGrace {
		return timeout / 2
	}
	return httpapi.DefaultDrainGrace
}
