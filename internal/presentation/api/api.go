package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/interchange/internal/infrastructure/configs"
	"github.com/hilthontt/interchange/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/interchange/internal/presentation/handler/health"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Application struct {
	config        configs.Config
	socket        http.Handler
	healthHandler *healthHandler.Handler
	metrics       http.Handler
	logger        *zap.SugaredLogger
	ratelimiter   ratelimiter.Limiter
	onShutdown    []func()
}

// NewApplication builds the HTTP surface. limiter may be nil to disable handshake rate limiting.
func NewApplication(
	config configs.Config,
	socket http.Handler,
	healthHandler *healthHandler.Handler,
	metrics http.Handler,
	logger *zap.SugaredLogger,
	limiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:        config,
		socket:        socket,
		healthHandler: healthHandler,
		metrics:       metrics,
		logger:        logger,
		ratelimiter:   limiter,
	}
}

// OnShutdown registers f to run once the server stops accepting requests.
// Upgraded sockets are hijacked, so Shutdown does not wait for them; this is
// where they get closed.
func (app *Application) OnShutdown(f func()) {
	app.onShutdown = append(app.onShutdown, f)
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.requestLogger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(app.rateLimiterMiddleware)

		r.Get("/ws", app.socket.ServeHTTP)
		r.Get("/socket", app.socket.ServeHTTP)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetReady)
	})

	r.Handle("/metrics", app.metrics)

	return otelhttp.NewHandler(r, "interchange",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/metrics" }),
	)
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.Addr(),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}
	for _, f := range app.onShutdown {
		srv.RegisterOnShutdown(f)
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Infow("signal caught", "signal", s.String())
		app.healthHandler.Drain()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", srv.Addr)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", srv.Addr)

	return nil
}
