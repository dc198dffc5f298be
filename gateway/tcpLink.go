package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/mbocsi/edgehub/proto"
)

// tcpLink writes frames for one role back onto the shared TCP connection.
// Writes are serialized per connection because many links share one wire.
type tcpLink struct {
	conn        net.Conn
	wmu         *sync.Mutex
	role        LinkRole
	correlation string
}

func newTCPLink(conn net.Conn, wmu *sync.Mutex, role LinkRole, correlation string) *tcpLink {
	return &tcpLink{conn: conn, wmu: wmu, role: role, correlation: correlation}
}

func (l *tcpLink) Role() LinkRole {
	return l.role
}

func (l *tcpLink) CorrelationToken() string {
	return l.correlation
}

func (l *tcpLink) Send(msg *proto.Message) error {
	frame := proto.Frame{Op: proto.FrameTransfer, Role: string(l.role), Message: msg}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.wmu.Lock()
	_, err = l.conn.Write(data)
	l.wmu.Unlock()

	slog.Debug("Sent frame", "role", l.role, "addr", l.conn.RemoteAddr().String(), "size", len(data))
	return err
}

// Close notifies the device with a detach frame. The physical connection
// stays open; it belongs to the connection handler, not to any single link.
func (l *tcpLink) Close(ctx context.Context) error {
	frame := proto.Frame{Op: proto.FrameDetach, Role: string(l.role)}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	done := make(chan error, 1)
	go func() {
		l.wmu.Lock()
		_, err := l.conn.Write(data)
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
