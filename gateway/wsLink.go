package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mbocsi/edgehub/proto"
)

// wsLink writes frames for one role back onto the shared WebSocket connection.
type wsLink struct {
	conn        *websocket.Conn
	wmu         *sync.Mutex
	role        LinkRole
	correlation string
}

func newWSLink(conn *websocket.Conn, wmu *sync.Mutex, role LinkRole, correlation string) *wsLink {
	return &wsLink{conn: conn, wmu: wmu, role: role, correlation: correlation}
}

func (l *wsLink) Role() LinkRole {
	return l.role
}

func (l *wsLink) CorrelationToken() string {
	return l.correlation
}

func (l *wsLink) Send(msg *proto.Message) error {
	frame := proto.Frame{Op: proto.FrameTransfer, Role: string(l.role), Message: msg}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	l.wmu.Lock()
	err = l.conn.WriteMessage(websocket.TextMessage, data)
	l.wmu.Unlock()
	if err != nil {
		return err
	}

	slog.Debug("Sent WebSocket frame", "role", l.role, "size", len(data))
	return nil
}

func (l *wsLink) Close(ctx context.Context) error {
	frame := proto.Frame{Op: proto.FrameDetach, Role: string(l.role)}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		l.wmu.Lock()
		err := l.conn.WriteMessage(websocket.TextMessage, data)
		l.wmu.Unlock()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
