package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mbocsi/edgehub/proto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WSTransport accepts device connections over WebSocket; each text message is
// one JSON frame.
type WSTransport struct {
	Addr         string
	server       *http.Server
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

func NewWSTransport(addr string) *WSTransport {
	return &WSTransport{
		Addr:     addr,
		maxConns: 64,
		conns:    make(map[string]*ConnectionHandler),
	}
}

func (t *WSTransport) Start() error {
	slog.Info("Starting WebSocket transport", "addr", t.Addr)

	if t.onConnect == nil || t.onDisconnect == nil || t.onTransfer == nil {
		return fmt.Errorf("the OnConnect, OnDisconnect, or OnTransfer function is not defined; this transport is likely being started outside of the gateway server")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleWebSocket)

	t.server = &http.Server{
		Addr:    t.Addr,
		Handler: mux,
	}

	t.connected = true
	err := t.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		t.connected = false
		return err
	}

	return nil
}

func (t *WSTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	t.cmu.RLock()
	connCount := len(t.conns)
	t.cmu.RUnlock()

	if connCount >= t.maxConns {
		slog.Warn("Max connections reached, rejecting connection", "remote_addr", r.RemoteAddr)
		conn.Close()
		return
	}

	go t.handleConnection(conn, r.RemoteAddr)
}

func (t *WSTransport) handleConnection(conn *websocket.Conn, remote string) {
	slog.Info("WebSocket device connected", "addr", remote)

	var wmu sync.Mutex
	fc := &frameConn{
		remote:     remote,
		conn:       conn,
		onConnect:  t.onConnect,
		onTransfer: t.onTransfer,
		newLink: func(role LinkRole, correlation string) Link {
			return newWSLink(conn, &wmu, role, correlation)
		},
	}

	defer func() {
		if fc.handler != nil {
			t.cmu.Lock()
			delete(t.conns, fc.handler.ID)
			t.cmu.Unlock()

			t.onDisconnect(fc.handler)
		}
		conn.Close()
		slog.Info("WebSocket device disconnected", "addr", remote)
	}()

	ctx := context.Background()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket connection error", "addr", remote, "error", err)
			}
			return
		}

		var frame proto.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("Invalid JSON frame received", "error", err, "data", string(data))
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
}

func (t *WSTransport) Shutdown() error {
	slog.Info("Shutting down WebSocket transport", "addr", t.Addr)
	if t.server != nil {
		return t.server.Close()
	}
	return nil
}

func (t *WSTransport) OnConnect(fn ConnectFunc) {
	t.onConnect = fn
}

func (t *WSTransport) OnDisconnect(fn func(*ConnectionHandler)) {
	t.onDisconnect = fn
}

func (t *WSTransport) OnTransfer(fn TransferFunc) {
	t.onTransfer = fn
}

func (t *WSTransport) Meta() TransportMetadata {
	t.cmu.RLock()
	connCount := len(t.conns)
	t.cmu.RUnlock()
	return TransportMetadata{
		ID:          "ws-" + t.Addr,
		Name:        t.name,
		Description: t.description,
		Protocol:    "websocket",
		Address:     t.Addr,
		Connections: connCount,
		MaxConns:    t.maxConns,
		Connected:   t.connected,
	}
}

func (t *WSTransport) SetName(name string) {
	t.name = name
}

func (t *WSTransport) SetMaxConns(n int) {
	t.maxConns = n
}

func (t *WSTransport) SetDescription(description string) {
	t.description = description
}
