package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/memkv/internal/infra/buildinfo"
	"github.com/yndnr/memkv/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics is exposed on /metrics. Nil serves the global registry.
	Metrics *metric.Registry

	// Health reports whether the server is serving. Nil is always healthy.
	Health func() error

	// Logger for request logging.
	Logger *slog.Logger

	// AllowList is the IP/CIDR allowlist (empty = no restriction).
	AllowList []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metricsHandler := metric.Handler()
	if cfg.Metrics != nil {
		metricsHandler = cfg.Metrics.Handler()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("GET /healthz", healthHandler(cfg.Health, time.Now()))

	middlewares := []Middleware{
		Recover(logger),
		RequestID(),
		AccessLog(logger),
	}
	if len(cfg.AllowList) > 0 {
		middlewares = append(middlewares, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AllowList,
			Logger:    logger,
		}))
	}

	return Chain(mux, middlewares...)
}

type healthResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func healthHandler(check func() error, started time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			Version: buildinfo.Version,
			Uptime:  time.Since(started).Truncate(time.Second).String(),
		}
		status := http.StatusOK

		if check != nil {
			if err := check(); err != nil {
				resp.Status = "unavailable"
				resp.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, status, resp)
	})
}
