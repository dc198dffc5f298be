package gateway

import (
	"context"
	"io"

	"github.com/mbocsi/edgehub/proto"
)

// ConnectFunc builds the connection handler for a freshly opened connection.
// The server composition supplies it so transports stay ignorant of the
// session provider.
type ConnectFunc func(identity Identity, conn io.Closer) (*ConnectionHandler, error)

// TransferFunc receives device-to-cloud transfer frames.
type TransferFunc func(ctx context.Context, h *ConnectionHandler, frame proto.Frame)

// Transport accepts device connections and feeds their frames into the
// per-connection handlers. Attach and detach frames are handled inside the
// transport because only it can build links bound to its wire.
type Transport interface {
	Start() error
	Shutdown() error
	OnConnect(ConnectFunc)
	OnDisconnect(func(*ConnectionHandler))
	OnTransfer(TransferFunc)
	Meta() TransportMetadata
	SetName(name string)
	SetDescription(string)
}

type TransportMetadata struct {
	ID          string
	Name        string // Human-friendly name, e.g. "Main TCP listener"
	Protocol    string // "tcp", "websocket"
	Address     string // Bind address
	Description string

	Connections int // Currently open device connections
	MaxConns    int // Max allowed connections (0 means unlimited)
	Connected   bool
}
