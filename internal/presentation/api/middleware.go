package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/interchange/internal/infrastructure/json"
	"github.com/hilthontt/interchange/internal/infrastructure/logging"
)

func (app *Application) rateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.ratelimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		if allow, retryAfter := app.ratelimiter.Allow(clientIP(r)); !allow {
			logging.With(app.logger, logging.Socket, logging.RateLimiting).
				Infow("handshake rate limited", string(logging.ClientIp), clientIP(r))
			json.WriteRateLimitError(w, retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *Application) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			app.logger.Debugw("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// clientIP strips the port RemoteAddr carries unless RealIP already rewrote it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
