// Package api exposes the Engine API's core surface — execute,
// connect_service, disconnect_service — plus health, over HTTP. Grounded on
// the teacher's echo v5 Server (server.go): route registration in
// NewServer, Set*-style optional wiring, and the same security-headers +
// body-limit middleware stack. The SRE-specific chat/alert/session/runbook
// surface and dashboard static serving are out of scope (see DESIGN.md);
// only the Engine API and its transport plumbing survive the adaptation.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/engine"
	"github.com/flowforge/orchestrator/pkg/mcp"
	"github.com/flowforge/orchestrator/pkg/storage"
	"github.com/flowforge/orchestrator/pkg/version"
)

// WorkerStatus mirrors one worker's health for JSON serialization.
type WorkerStatus struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	TasksProcessed int    `json:"tasks_processed"`
}

// PoolHealthFunc adapts a queue worker pool's native Health() return type
// into the []WorkerStatus this package serializes, without pkg/api
// importing pkg/queue (pkg/queue already imports pkg/api's sibling pkg/engine,
// and this package only ever needs a point-in-time health snapshot).
type PoolHealthFunc func() []WorkerStatus

// Server is the HTTP front door onto the Engine API.
type Server struct {
	echo *echo.Echo
	http *http.Server

	db       *storage.DB
	eng      *engine.Engine
	manager  *mcp.Manager
	registry *config.ServiceRegistry

	bridges *bridgeRegistry

	workerHealth PoolHealthFunc // nil until SetWorkerPool is called
}

// NewServer wires the Engine API's HTTP surface.
func NewServer(db *storage.DB, eng *engine.Engine, manager *mcp.Manager, registry *config.ServiceRegistry) *Server {
	e := echo.New()

	s := &Server{
		echo:     e,
		db:       db,
		eng:      eng,
		manager:  manager,
		registry: registry,
		bridges:  newBridgeRegistry(),
	}

	s.setupRoutes()
	return s
}

// SetWorkerPool attaches a worker pool health source for /health.
func (s *Server) SetWorkerPool(fn PoolHealthFunc) {
	s.workerHealth = fn
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/tasks", s.executeHandler)
	v1.POST("/services/:name/connect", s.connectServiceHandler)
	v1.POST("/services/:name/disconnect", s.disconnectServiceHandler)
	v1.GET("/ws/:task_id", s.wsHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.echo}
	return s.http.ListenAndServe()
}

// StartWithListener starts the server on a pre-created listener, for test
// infrastructure binding a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.http = &http.Server{Handler: s.echo}
	return s.http.Serve(ln)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus, err := s.db.Health(reqCtx)
	if err != nil {
		status = "unhealthy"
	}

	resp := &HealthResponse{
		Status:   status,
		Version:  version.Full(),
		Database: dbStatus,
	}
	if s.workerHealth != nil {
		resp.Workers = s.workerHealth()
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	return c.JSON(httpStatus, resp)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string              `json:"status"`
	Version  string              `json:"version"`
	Database *storage.HealthStatus `json:"database"`
	Workers  []WorkerStatus      `json:"workers,omitempty"`
}
