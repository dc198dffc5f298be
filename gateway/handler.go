package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ConnectionHandler owns everything scoped to one physical device connection:
// the link registry, the lazily created session, and the device proxy bound to
// it. Every inbound link event and every outbound send goes through here.
//
// Two independent locks guard it. The session mutex serializes session
// creation and teardown; the registry serializes its own mutation internally.
// The only path that takes both is removing the last link, which drains the
// registry and then tears the session down.
type ConnectionHandler struct {
	ID     string
	Remote string // remote address, informational only

	identity Identity
	conn     io.Closer
	provider SessionProvider
	registry *LinkRegistry

	sessionMu sync.Mutex
	session   atomic.Pointer[Session]
	proxy     atomic.Pointer[DeviceProxy]
}

func NewConnectionHandler(identity Identity, conn io.Closer, provider SessionProvider) *ConnectionHandler {
	return &ConnectionHandler{
		ID:       "conn-" + uuid.NewString(),
		identity: identity,
		conn:     conn,
		provider: provider,
		registry: NewLinkRegistry(),
	}
}

func (h *ConnectionHandler) Identity() Identity {
	return h.identity
}

func (h *ConnectionHandler) Registry() *LinkRegistry {
	return h.registry
}

// Proxy returns the device proxy, or nil before the session exists.
func (h *ConnectionHandler) Proxy() *DeviceProxy {
	return h.proxy.Load()
}

// GetSession returns the connection's session, creating it on first use. The
// provider is invoked at most once concurrently and at most once successfully;
// all callers that race the first use observe the same fully constructed
// session. A provider failure leaves the gate open so a later call may retry.
func (h *ConnectionHandler) GetSession(ctx context.Context) (Session, error) {
	if s := h.session.Load(); s != nil {
		return *s, nil
	}

	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()

	if s := h.session.Load(); s != nil {
		return *s, nil
	}

	session, err := h.provider.CreateSession(ctx, h.identity)
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", h.identity, err)
	}

	proxy := newDeviceProxy(h)
	session.BindProxy(proxy)
	h.proxy.Store(proxy)
	h.session.Store(&session)

	slog.Info("Session created", "connection", h.ID, "identity", h.identity.String())
	return session, nil
}

// RegisterLink installs link into the registry, superseding a stale same-role
// link and evicting an uncorrelated paired link first.
func (h *ConnectionHandler) RegisterLink(ctx context.Context, link Link) error {
	if link == nil {
		return ErrNilLink
	}
	if err := h.registry.Register(ctx, link); err != nil {
		return err
	}
	slog.Debug("Link registered",
		"connection", h.ID,
		"role", link.Role(),
		"correlation", link.CorrelationToken(),
	)
	return nil
}

// RemoveLink removes link's role from the registry. Removing the last link is
// the sole automatic trigger for tearing the whole connection down.
func (h *ConnectionHandler) RemoveLink(ctx context.Context, link Link) error {
	if link == nil {
		return ErrNilLink
	}
	empty, err := h.registry.Remove(link)
	if err != nil {
		return err
	}
	slog.Debug("Link removed", "connection", h.ID, "role", link.Role())
	if empty {
		slog.Info("Last link removed, tearing down connection", "connection", h.ID, "identity", h.identity.String())
		return h.closeConnection(ctx)
	}
	return nil
}

// closeConnection asks the session to close. The transport connection itself
// is closed by the proxy's single-shot close path, which the session drives,
// so it is not duplicated here.
func (h *ConnectionHandler) closeConnection(ctx context.Context) error {
	h.sessionMu.Lock()
	defer h.sessionMu.Unlock()

	s := h.session.Load()
	if s == nil {
		return nil
	}
	if err := (*s).Close(ctx); err != nil {
		return fmt.Errorf("closing session for %s: %w", h.identity, err)
	}
	return nil
}

// closeUnderlying closes the transport connection. Only the proxy's
// test-and-clear close calls this, so it runs at most once.
func (h *ConnectionHandler) closeUnderlying() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
