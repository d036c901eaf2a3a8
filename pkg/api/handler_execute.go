package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/flowforge/orchestrator/pkg/auth"
	"github.com/flowforge/orchestrator/pkg/config"
)

// executeTaskRequest is the HTTP request body for POST /api/v1/tasks. It is
// enqueued onto storage's task_queue; a pkg/queue worker picks it up and
// runs engine.Engine against it. The caller streams progress over the
// WebSocket returned alongside the task_id.
type executeTaskRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

type executeTaskResponse struct {
	TaskID string `json:"task_id"`
}

// executeHandler handles POST /api/v1/tasks — the `execute` Engine API
// operation over HTTP. Actual execution happens asynchronously in a queue
// worker; the caller subscribes to /api/v1/ws/:task_id for the event
// stream and terminal_success.
func (s *Server) executeHandler(c *echo.Context) error {
	var req executeTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		req.UserID = extractAuthor(c)
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	taskID := uuid.NewString()
	if err := s.db.Enqueue(c.Request().Context(), taskID, req.UserID, req.Query); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusAccepted, &executeTaskResponse{TaskID: taskID})
}

// connectServiceRequest is the HTTP request body for POST
// /api/v1/services/:name/connect.
type connectServiceRequest struct {
	UserID    string                 `json:"user_id"`
	Transport config.TransportConfig `json:"transport"`
}

type connectServiceResponse struct {
	Result      string   `json:"result"` // "success" | "missing_auth" | "error"
	MissingKeys []string `json:"missing_keys,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// connectServiceHandler handles POST /api/v1/services/:name/connect — the
// `connect_service(user_id, service_config) -> success|missing_auth|error`
// Engine API operation.
func (s *Server) connectServiceHandler(c *echo.Context) error {
	name := c.Param("name")

	var req connectServiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	if !s.registry.Has(name) {
		s.registry.Register(name, &config.ServiceConfig{Transport: req.Transport})
	}

	err := s.manager.Connect(c.Request().Context(), req.UserID, name)
	if err == nil {
		return c.JSON(http.StatusOK, &connectServiceResponse{Result: "success"})
	}

	var missing *auth.ErrMissingAuth
	if errors.As(err, &missing) {
		return c.JSON(http.StatusOK, &connectServiceResponse{
			Result:      "missing_auth",
			MissingKeys: missing.MissingKeys,
		})
	}

	return c.JSON(http.StatusOK, &connectServiceResponse{Result: "error", Error: err.Error()})
}

// disconnectServiceHandler handles POST /api/v1/services/:name/disconnect —
// the `disconnect_service(user_id, service_name)` Engine API operation.
func (s *Server) disconnectServiceHandler(c *echo.Context) error {
	name := c.Param("name")
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id query parameter is required")
	}

	if err := s.manager.Disconnect(userID, name); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
