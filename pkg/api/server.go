// Package api exposes the verdict engine over HTTP: a synchronous check
// endpoint, a line-delimited-JSON streaming variant, and a health check
// (spec.md §6).
package api

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/truthgraph/internal/policygate"
	"github.com/codeready-toolchain/truthgraph/pkg/database"
	"github.com/codeready-toolchain/truthgraph/pkg/fetch"
	"github.com/codeready-toolchain/truthgraph/pkg/notify"
	"github.com/codeready-toolchain/truthgraph/pkg/verdictservice"
)

// Server is the HTTP API server fronting the verdict service.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	verdict *verdictservice.Service
	policy  *policygate.Gate
	notifySvc *notify.Service
	fetchSvc  *fetch.Service
	db        *sql.DB
}

// NewServer wires the verdict service, policy gate, notifier, and content
// fetcher into a gin router. notifySvc and fetchSvc may be nil (notify is
// nil-safe by construction; a nil fetchSvc means url-typed input is passed
// through unfetched).
func NewServer(verdict *verdictservice.Service, policy *policygate.Gate, notifySvc *notify.Service, fetchSvc *fetch.Service, db *sql.DB) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders())
	// Server-wide body size limit: requests are capped well above the 8 KB
	// text-claim ceiling (spec.md §6) to allow JSON envelope overhead.
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 64*1024)
		c.Next()
	})

	s := &Server{
		router:    router,
		verdict:   verdict,
		policy:    policy,
		notifySvc: notifySvc,
		fetchSvc:  fetchSvc,
		db:        db,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/v1")
	v1.POST("/check", s.checkHandler)
	v1.POST("/check/stream", s.checkStreamHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// primarily so tests can bind a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}

	dbHealth, err := database.Health(reqCtx, s.db)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": dbHealth, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": dbHealth})
}
