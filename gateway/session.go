package gateway

import (
	"context"

	"github.com/mbocsi/edgehub/proto"
)

// Session is the logical device/module session on the cloud side, independent
// of the transport connection. It is bound to exactly one DeviceProxy for its
// lifetime and reaches the device only through that proxy.
type Session interface {
	// BindProxy is called once, right after the session is created.
	BindProxy(proxy *DeviceProxy)

	// HandleMessage receives device-to-cloud traffic arriving on this
	// connection's links.
	HandleMessage(ctx context.Context, msg *proto.Message) error

	Close(ctx context.Context) error
}

// SessionProvider creates sessions on first use of a connection.
type SessionProvider interface {
	CreateSession(ctx context.Context, identity Identity) (Session, error)
}
