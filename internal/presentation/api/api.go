package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/configs"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/logging"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/metrics"
	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/ratelimiter"
	dssHandler "github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/dss"
	healthHandler "github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/health"
	roomHandler "github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/rooms"
	staticHandler "github.com/cch137/webrtc-demo-2025-11/internal/presentation/handler/static"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 5 * time.Second

type Application struct {
	config         configs.Config
	dssHandler     *dssHandler.Handler
	roomHandler    *roomHandler.Handler
	healthHandler  *healthHandler.Handler
	staticHandler  *staticHandler.Handler
	metrics        *metrics.Collector
	logger         logging.Logger
	ratelimiter    ratelimiter.Limiter
	allowedOrigins map[string]struct{}
}

// NewApplication wires the HTTP surface. metrics and ratelimiter may be nil to
// disable them.
func NewApplication(
	config configs.Config,
	dssHandler *dssHandler.Handler,
	roomHandler *roomHandler.Handler,
	healthHandler *healthHandler.Handler,
	staticHandler *staticHandler.Handler,
	metrics *metrics.Collector,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	origins := make(map[string]struct{}, len(config.HTTP.AllowedOrigins))
	for _, o := range config.HTTP.AllowedOrigins {
		origins[o] = struct{}{}
	}

	return &Application{
		config:         config,
		dssHandler:     dssHandler,
		roomHandler:    roomHandler,
		healthHandler:  healthHandler,
		staticHandler:  staticHandler,
		metrics:        metrics,
		logger:         logger,
		ratelimiter:    ratelimiter,
		allowedOrigins: origins,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(app.recovererMiddleware)
	if app.metrics != nil {
		r.Use(app.prometheusMiddleware)
	}
	r.Use(app.enableCors)

	r.Group(func(r chi.Router) {
		if app.ratelimiter != nil {
			r.Use(app.rateLimiterMiddleware)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(app.requestTimeout()))

			r.Post("/data/{id}", app.dssHandler.PushHandler)
			r.Get("/data/{id}", app.dssHandler.PopHandler)
			r.Delete("/data/{id}", app.dssHandler.DeleteHandler)
		})

		// Upgraded connections outlive any request timeout.
		r.Get("/rooms/{id}", app.roomHandler.JoinRoomHandler)
	})

	r.Get("/health", app.healthHandler.GetHealth)
	r.Get("/healthz", app.healthHandler.GetHealth)

	if app.metrics != nil && app.config.Metrics.Enabled {
		r.Method(http.MethodGet, app.metricsPath(), app.metrics.Handler())
	}

	r.Method(http.MethodGet, "/", app.staticHandler)
	r.Method(http.MethodHead, "/", app.staticHandler)
	r.Method(http.MethodGet, "/*", app.staticHandler)
	r.Method(http.MethodHead, "/*", app.staticHandler)

	return r
}

func (app *Application) requestTimeout() time.Duration {
	if app.config.HTTP.WriteTimeout > 0 {
		return app.config.HTTP.WriteTimeout
	}
	return 30 * time.Second
}

func (app *Application) metricsPath() string {
	if app.config.Metrics.Path != "" {
		return app.config.Metrics.Path
	}
	return "/metrics"
}

// Run serves mux until SIGINT or SIGTERM, then shuts the server down and runs
// onShutdown in order.
func (app *Application) Run(mux http.Handler, onShutdown ...func(context.Context) error) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:           otelhttp.NewHandler(mux, "webrtc-relay"),
		ReadHeaderTimeout: app.config.HTTP.ReadTimeout,
		IdleTimeout:       time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})
		app.healthHandler.SetHealthy(false)

		err := srv.Shutdown(ctx)
		for _, fn := range onShutdown {
			err = errors.Join(err, fn(ctx))
		}
		shutdown <- err
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
