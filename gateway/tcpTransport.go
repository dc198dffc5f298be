package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/mbocsi/edgehub/proto"
)

// TCPTransport accepts device connections carrying newline-delimited JSON
// frames.
type TCPTransport struct {
	Addr         string
	listener     net.Listener
	onConnect    ConnectFunc
	onDisconnect func(*ConnectionHandler)
	onTransfer   TransferFunc

	name        string
	description string
	conns       map[string]*ConnectionHandler
	cmu         sync.RWMutex

	maxConns  int
	connected bool
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{Addr: addr, maxConns: 64, conns: make(map[string]*ConnectionHandler)}
}

func (t *TCPTransport) Start() error {
	slog.Info("Starting tcp transport", "addr", t.Addr)

	if t.onConnect == nil || t.onDisconnect == nil || t.onTransfer == nil {
		return fmt.Errorf("the OnConnect, OnDisconnect, or OnTransfer function is not defined; this transport is likely being started outside of the gateway server")
	}

	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}
	t.listener = l
	t.connected = true
	defer func() {
		l.Close()
		t.connected = false
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return err // exits goroutine when listener is closed
		}

		t.cmu.RLock()
		connCount := len(t.conns)
		t.cmu.RUnlock()

		if connCount >= t.maxConns {
			slog.Warn("Max connections reached, rejecting connection", "remote_addr", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go t.handleConnection(conn)
	}
}

func (t *TCPTransport) handleConnection(c net.Conn) {
	remote := c.RemoteAddr().String()
	slog.Info("Device connected", "addr", remote)

	// Links of one connection share the wire, so they share a write lock.
	var wmu sync.Mutex
	fc := &frameConn{
		remote:     remote,
		conn:       c,
		onConnect:  t.onConnect,
		onTransfer: t.onTransfer,
		newLink: func(role LinkRole, correlation string) Link {
			return newTCPLink(c, &wmu, role, correlation)
		},
	}

	defer func() {
		if fc.handler != nil {
			t.cmu.Lock()
			delete(t.conns, fc.handler.ID)
			t.cmu.Unlock()

			t.onDisconnect(fc.handler)
		}
		c.Close()
		slog.Info("Device disconnected", "addr", remote)
	}()

	ctx := context.Background()
	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		line := scanner.Bytes()
		var frame proto.Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			slog.Warn("Invalid JSON frame received", "error", err, "data", string(line))
			continue
		}
		opened := fc.handler != nil
		fc.handleFrame(ctx, frame)
		if !opened && fc.handler != nil {
			t.cmu.Lock()
			t.conns[fc.handler.ID] = fc.handler
			t.cmu.Unlock()
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Warn("Connection error", "addr", remote, "error", err)
	}
}

func (t *TCPTransport) Shutdown() error {
	slog.Info("Shutting down tcp transport", "addr", t.Addr)
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}

func (t *TCPTransport) OnConnect(fn ConnectFunc) {
	t.onConnect = fn
}

func (t *TCPTransport) OnDisconnect(fn func(*ConnectionHandler)) {
	t.onDisconnect = fn
}

func (t *TCPTransport) OnTransfer(fn TransferFunc) {
	t.onTransfer = fn
}

func (t *TCPTransport) Meta() TransportMetadata {
	t.cmu.RLock()
	connCount := len(t.conns)
	t.cmu.RUnlock()
	return TransportMetadata{
		ID:          "tcp-" + t.Addr,
		Name:        t.name,
		Description: t.description,
		Protocol:    "tcp",
		Address:     t.Addr,
		Connections: connCount,
		MaxConns:    t.maxConns,
		Connected:   t.connected,
	}
}

func (t *TCPTransport) SetName(name string) {
	t.name = name
}

func (t *TCPTransport) SetMaxConns(n int) {
	t.maxConns = n
}

func (t *TCPTransport) SetDescription(description string) {
	t.description = description
}
