package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/flowforge/orchestrator/pkg/events"
)

// PublisherFor returns the callback pkg/queue.Worker uses to obtain the
// Publisher a claimed task's engine run should write events to, wiring it
// through this server's bridgeRegistry so a concurrent WebSocket client can
// find the same stream by task_id.
func (s *Server) PublisherFor(taskID string) *events.Publisher {
	return s.bridges.PublisherFor(taskID)
}

// wsHandler upgrades GET /api/v1/ws/:task_id to a WebSocket and streams
// that task's Event sequence until the run completes or the client
// disconnects. Grounded on the teacher's handler_ws.go upgrade call
// (coder/websocket, InsecureSkipVerify pending a real origin allowlist).
func (s *Server) wsHandler(c *echo.Context) error {
	taskID := c.Param("task_id")
	pub, ok := s.bridges.Get(taskID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no running task for this id")
	}
	defer s.bridges.Unregister(taskID)

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	bridge := events.NewBridge(conn)
	return bridge.Serve(c.Request().Context(), pub)
}
