package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeTimeout bounds how long a single event write may block a slow
// client before the bridge gives up on it, mirroring the teacher's
// ConnectionManager per-send timeout discipline without the multi-pod
// broadcast machinery a single run's event stream has no use for (see
// DESIGN.md).
const writeTimeout = 10 * time.Second

// Bridge streams one run's Event sequence to a single WebSocket client, in
// publish order, for as long as the run (or the client) stays alive.
// Grounded on the teacher's ConnectionManager connection lifecycle
// (accept -> forward -> close), narrowed from "N channels fanned out to M
// connections across pods" to "one Publisher, one socket" because a single
// `execute` invocation has exactly one event source and the caller already
// knows which task_id it is streaming.
type Bridge struct {
	conn *websocket.Conn
	id   string
}

// NewBridge accepts conn as the transport for one subscriber.
func NewBridge(conn *websocket.Conn) *Bridge {
	return &Bridge{conn: conn, id: uuid.NewString()}
}

// Serve subscribes to pub and forwards every Event to the client as JSON
// until ctx is cancelled, the Publisher closes its subscriber channel, or
// a write fails. It always closes conn before returning.
func (b *Bridge) Serve(ctx context.Context, pub *Publisher) error {
	defer b.conn.Close(websocket.StatusNormalClosure, "run complete")

	sub := pub.Subscribe(64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub:
			if !ok {
				return nil
			}
			if err := b.write(ctx, evt); err != nil {
				slog.Warn("event bridge write failed, dropping subscriber", "bridge_id", b.id, "error", err)
				return err
			}
		}
	}
}

func (b *Bridge) write(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return b.conn.Write(writeCtx, websocket.MessageText, data)
}

// MarshalEvent renders an Event as the JSON line a REST/SSE caller (rather
// than a WebSocket one) would receive — kept alongside Bridge so both
// transports serialize events identically.
func MarshalEvent(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}
