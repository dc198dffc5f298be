package gateway

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mbocsi/edgehub/proto"
)

// frameConn is the per-physical-connection frame dispatcher shared by the TCP
// and WebSocket transports. It owns the open-before-anything rule and turns
// attach/detach frames into registry mutations; only link construction stays
// transport-specific.
type frameConn struct {
	remote     string
	conn       io.Closer
	newLink    func(role LinkRole, correlation string) Link
	onConnect  ConnectFunc
	onTransfer TransferFunc

	handler *ConnectionHandler
}

func (fc *frameConn) handleFrame(ctx context.Context, frame proto.Frame) {
	switch frame.Op {
	case proto.FrameOpen:
		fc.handleOpen(frame)

	case proto.FrameAttach:
		fc.handleAttach(ctx, frame)

	case proto.FrameDetach:
		fc.handleDetach(ctx, frame)

	case proto.FrameTransfer:
		if fc.handler == nil || frame.Message == nil {
			slog.Warn("Dropping transfer frame", "addr", fc.remote, "opened", fc.handler != nil)
			return
		}
		fc.onTransfer(ctx, fc.handler, frame)

	default:
		slog.Warn("Unhandled frame op", "op", frame.Op, "addr", fc.remote)
	}
}

func (fc *frameConn) handleOpen(frame proto.Frame) {
	if fc.handler != nil {
		slog.Warn("Duplicate open frame", "addr", fc.remote, "connection", fc.handler.ID)
		return
	}
	if frame.DeviceID == "" {
		slog.Warn("Open frame without device id", "addr", fc.remote)
		return
	}

	identity := Identity{DeviceID: frame.DeviceID, ModuleID: frame.ModuleID}
	handler, err := fc.onConnect(identity, fc.conn)
	if err != nil {
		slog.Error("Failed to open connection", "addr", fc.remote, "identity", identity.String(), "error", err.Error())
		return
	}
	handler.Remote = fc.remote
	fc.handler = handler
}

func (fc *frameConn) handleAttach(ctx context.Context, frame proto.Frame) {
	if fc.handler == nil {
		slog.Warn("Attach frame before open", "addr", fc.remote)
		return
	}
	role := LinkRole(frame.Role)
	if !role.Valid() {
		slog.Warn("Attach frame with unknown role", "role", frame.Role, "addr", fc.remote)
		return
	}

	correlation := frame.Correlation
	if correlation == "" {
		correlation = uuid.NewString()
	}

	link := fc.newLink(role, correlation)
	if err := fc.handler.RegisterLink(ctx, link); err != nil {
		slog.Error("Failed to register link",
			"connection", fc.handler.ID,
			"role", role,
			"error", err.Error(),
		)
	}
}

func (fc *frameConn) handleDetach(ctx context.Context, frame proto.Frame) {
	if fc.handler == nil {
		slog.Warn("Detach frame before open", "addr", fc.remote)
		return
	}
	link, ok := fc.handler.Registry().Get(LinkRole(frame.Role))
	if !ok {
		slog.Warn("Detach frame for unattached role", "role", frame.Role, "connection", fc.handler.ID)
		return
	}
	if err := fc.handler.RemoveLink(ctx, link); err != nil {
		slog.Error("Failed to remove link",
			"connection", fc.handler.ID,
			"role", frame.Role,
			"error", err.Error(),
		)
	}
}
