package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics and /health on a dedicated listen address,
// separate from the main API router.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer builds a metrics server listening on addr (a bare port, e.g.
// "9090", or a full host:port).
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if !hasColon(addr) {
		addr = ":" + addr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger.With("component", "metrics-server"),
	}
}

// StartAsync starts the server in a background goroutine. Bind failures are
// logged, not returned — the caller observes them via Stop's error or via
// logs, matching the fire-and-forget lifecycle of a sidecar endpoint.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped unexpectedly", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func hasColon(addr string) bool {
	for i := 0; i < len(addr); i++ {
		if addr[i] == ':' {
			return true
		}
	}
	return false
}
