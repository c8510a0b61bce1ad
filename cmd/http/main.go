package main

import (
	"context"
	"log"

	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/configs"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/metrics"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/ratelimiter"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/repository"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/tracing"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/ws"
	"github.com/cch137/webrtc-demo-2025-11/internal/presentation/api"
	"github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/dss"
	"github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/health"
	"github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/rooms"
	"github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/static"
)

const serviceName = "webrtc-relay"

func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Backend,
	})
	defer logger.Sync()

	shutdownTracer, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: serviceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize tracing", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	collector := metrics.New()

	store := repository.NewStore(repository.StoreOptions{
		InactivityTTL:   cfg.DSS.InactivityTTL,
		CleanupInterval: cfg.DSS.CleanupInterval,
		QueueCapacity:   cfg.DSS.MaxQueueSize,
		Logger:          logger,
		Observer:        collector,
	})

	roomManager := ws.NewRoomManager(ws.ManagerOptions{
		SendBuffer: cfg.WS.SendBuffer,
		Logger:     logger,
		Observer:   collector,
	})

	var limiter ratelimiter.Limiter
	if cfg.RateLimiter.Enabled {
		limiter = ratelimiter.New(ratelimiter.Options{
			MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
			MaxBurst:         cfg.RateLimiter.MaxBurst,
			CacheTTL:         cfg.RateLimiter.CacheTTL,
			SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
		})
	}

	app := api.NewApplication(
		*cfg,
		dss.NewHandler(store, cfg.DSS.MaxPayloadBytes, logger),
		rooms.NewHandler(roomManager, ws.SessionOptions{
			MaxMessageBytes: cfg.WS.MaxMessageBytes,
			WriteTimeout:    cfg.WS.WriteTimeout,
			PingInterval:    cfg.WS.PingInterval,
		}, cfg.HTTP.AllowedOrigins, logger),
		health.NewHandler(),
		static.NewHandler(cfg.HTTP.StaticDir),
		collector,
		logger,
		limiter,
	)

	logger.Info(logging.General, logging.Startup, "configuration loaded", map[logging.ExtraKey]any{
		"config_path": configPath,
		"static_dir":  cfg.HTTP.StaticDir,
		"rate_limit":  cfg.RateLimiter.Enabled,
		"tracing":     cfg.Tracing.Enabled,
	})

	mux := app.Mount()
	err = app.Run(mux,
		func(context.Context) error {
			store.Destroy()
			if limiter != nil {
				return limiter.Close()
			}
			return nil
		},
		shutdownTracer,
	)
	if err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
