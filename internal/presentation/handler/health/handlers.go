package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/interchange/internal/infrastructure/json"
	"go.uber.org/zap"
)

const readyTimeout = 2 * time.Second

// Pinger is anything readiness depends on; the shared log in practice.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	started  time.Time
	draining atomic.Bool
	deps     map[string]Pinger
	logger   *zap.SugaredLogger
}

func NewHandler(logger *zap.SugaredLogger, deps map[string]Pinger) *Handler {
	return &Handler{
		started: time.Now(),
		deps:    deps,
		logger:  logger,
	}
}

// Drain flips liveness to unhealthy so load balancers stop routing during shutdown.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		json.Write(w, http.StatusServiceUnavailable, h.response("unhealthy", nil))
		return
	}

	json.Write(w, http.StatusOK, h.response("ok", nil))
}

func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		json.Write(w, http.StatusServiceUnavailable, h.response("unhealthy", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	status, code := "ok", http.StatusOK
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warnw("readiness check failed", "dependency", name, "error", err)
			checks[name] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	json.Write(w, code, h.response(status, checks))
}

func (h *Handler) response(status string, checks map[string]string) healthResponse {
	return healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    checks,
	}
}
