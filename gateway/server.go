package gateway

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbocsi/edgehub/proto"
)

type GatewayServerOptions struct {
	Provider  SessionProvider    // Required
	Manager   *ConnectionManager // Optional (defaults to a new manager if nil)
	MCPServer *MCPServer         // Optional introspection server to run alongside
	Context   context.Context    // Optional (defaults to context.Background())

	// LinkCloseTimeout bounds the close of superseded links during
	// registration (defaults to DefaultLinkCloseTimeout if zero).
	LinkCloseTimeout time.Duration
}

// GatewayServer composes the transports, the connection manager, and the
// session provider into one runnable gateway.
type GatewayServer struct {
	options    GatewayServerOptions
	manager    *ConnectionManager
	provider   SessionProvider
	transports []Transport
}

func NewGatewayServer(opts GatewayServerOptions) *GatewayServer {
	if opts.Manager == nil {
		opts.Manager = NewConnectionManager()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	s := &GatewayServer{
		options:  opts,
		manager:  opts.Manager,
		provider: opts.Provider,
	}

	if opts.MCPServer != nil {
		registerMCPTools(opts.MCPServer, opts.Manager)
	}

	return s
}

func (s *GatewayServer) Manager() *ConnectionManager {
	return s.manager
}

func (s *GatewayServer) RegisterTransport(t Transport) {
	t.OnConnect(s.connect)
	t.OnDisconnect(s.disconnect)
	t.OnTransfer(s.transfer)
	s.transports = append(s.transports, t)
}

func (s *GatewayServer) TransportsMeta() []TransportMetadata {
	metas := make([]TransportMetadata, 0, len(s.transports))
	for _, t := range s.transports {
		metas = append(metas, t.Meta())
	}
	return metas
}

func (s *GatewayServer) Start() error {
	ctx, stop := signal.NotifyContext(s.options.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.options.MCPServer != nil {
		go s.options.MCPServer.Start()
	}
	for _, t := range s.transports {
		go t.Start()
	}

	<-ctx.Done()
	slog.Info("Shutting down transports and gateway")

	if s.options.MCPServer != nil {
		if err := s.options.MCPServer.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down MCP server", "error", err.Error())
		}
	}
	for _, t := range s.transports {
		if err := t.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down transport", "error", err.Error())
		}
	}
	return nil
}

func (s *GatewayServer) connect(identity Identity, conn io.Closer) (*ConnectionHandler, error) {
	h := NewConnectionHandler(identity, conn, s.provider)
	if s.options.LinkCloseTimeout > 0 {
		h.Registry().SetCloseTimeout(s.options.LinkCloseTimeout)
	}
	s.manager.Store(h)

	slog.Info("Registered connection", "connection", h.ID, "identity", identity.String())
	return h, nil
}

func (s *GatewayServer) disconnect(h *ConnectionHandler) {
	s.manager.Delete(h.ID)
	if p := h.Proxy(); p != nil {
		p.SetInactive()
	}
	slog.Info("Deregistered connection", "connection", h.ID, "identity", h.Identity().String())
}

// transfer routes an inbound device-to-cloud frame to the connection's
// session, creating the session on first use.
func (s *GatewayServer) transfer(ctx context.Context, h *ConnectionHandler, frame proto.Frame) {
	session, err := h.GetSession(ctx)
	if err != nil {
		slog.Error("Failed to get session for inbound message",
			"connection", h.ID,
			"identity", h.Identity().String(),
			"error", err.Error(),
		)
		return
	}
	if err := session.HandleMessage(ctx, frame.Message); err != nil {
		slog.Warn("Session rejected inbound message",
			"connection", h.ID,
			"role", frame.Role,
			"error", err.Error(),
		)
	}
}
