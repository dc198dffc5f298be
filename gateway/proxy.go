package gateway

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/mbocsi/edgehub/proto"
)

// ErrNotSupported marks a capability the proxy declares but does not provide.
var ErrNotSupported = errors.New("not supported")

// DeviceProxy is the outbound capability its session uses to reach the device.
// Every send is lookup-then-forward: when the required link role is not
// registered the message is dropped, never buffered, keeping the proxy
// stateless with respect to delivery. Retry and backpressure belong to the
// session and transport layers.
type DeviceProxy struct {
	handler *ConnectionHandler
	active  atomic.Bool
}

func newDeviceProxy(h *ConnectionHandler) *DeviceProxy {
	p := &DeviceProxy{handler: h}
	p.active.Store(true)
	return p
}

func (p *DeviceProxy) Identity() Identity {
	return p.handler.identity
}

func (p *DeviceProxy) IsActive() bool {
	return p.active.Load()
}

// SetInactive marks the proxy undeliverable without touching the transport
// connection, decoupled from Close.
func (p *DeviceProxy) SetInactive() {
	p.active.Store(false)
}

// Close closes the underlying transport connection exactly once, no matter
// how many callers race it. Later calls are no-ops.
func (p *DeviceProxy) Close(cause error) error {
	if !p.active.CompareAndSwap(true, false) {
		return nil
	}
	if cause != nil {
		slog.Info("Closing device proxy", "connection", p.handler.ID, "cause", cause)
	} else {
		slog.Info("Closing device proxy", "connection", p.handler.ID)
	}
	return p.handler.closeUnderlying()
}

// SendCloudToDeviceMessage stamps the routing address and forwards msg on the
// cloud-to-device link.
func (p *DeviceProxy) SendCloudToDeviceMessage(msg *proto.Message) error {
	link, ok := p.handler.registry.Sender(RoleCloudToDevice)
	if !ok {
		p.dropped(RoleCloudToDevice)
		return nil
	}
	msg.SetSystemProperty(proto.SysPropTo, p.handler.identity.Address())
	return link.Send(msg)
}

// SendMessage stamps the target input name and forwards msg on the
// module-messages link.
func (p *DeviceProxy) SendMessage(msg *proto.Message, inputName string) error {
	link, ok := p.handler.registry.Sender(RoleModuleMessages)
	if !ok {
		p.dropped(RoleModuleMessages)
		return nil
	}
	msg.SetSystemProperty(proto.SysPropInputName, inputName)
	return link.Send(msg)
}

// InvokeMethod forwards a method invocation on the method-sending link. The
// returned response is a placeholder carrying only the correlation id: the
// device's real response is not routed back through this path yet, so callers
// needing it must use MethodResponseFor, which reports the gap explicitly.
func (p *DeviceProxy) InvokeMethod(req proto.MethodRequest) (proto.MethodResponse, error) {
	link, ok := p.handler.registry.Sender(RoleMethodSending)
	if !ok {
		slog.Warn("Dropping method invocation, link not attached",
			"connection", p.handler.ID,
			"identity", p.handler.identity.String(),
			"method", req.Name,
		)
		return proto.MethodResponse{}, nil
	}

	msg := &proto.Message{Body: req.Body}
	msg.SetAppProperty(proto.AppPropMethodName, req.Name)
	msg.SetSystemProperty(proto.SysPropCorrelationID, req.CorrelationID)
	if err := link.Send(msg); err != nil {
		return proto.MethodResponse{}, err
	}
	return proto.MethodResponse{CorrelationID: req.CorrelationID}, nil
}

// MethodResponseFor would return the device's response to an earlier
// invocation. Response correlation is not plumbed through the gateway yet.
func (p *DeviceProxy) MethodResponseFor(correlationID string) (proto.MethodResponse, error) {
	return proto.MethodResponse{}, ErrNotSupported
}

// PushDesiredPropertiesUpdate forwards a desired-properties delta on the
// twin-sending link.
func (p *DeviceProxy) PushDesiredPropertiesUpdate(msg *proto.Message) error {
	return p.pushTwin(msg)
}

// PushTwinUpdate forwards a full twin document on the twin-sending link.
func (p *DeviceProxy) PushTwinUpdate(msg *proto.Message) error {
	return p.pushTwin(msg)
}

func (p *DeviceProxy) pushTwin(msg *proto.Message) error {
	link, ok := p.handler.registry.Sender(RoleTwinSending)
	if !ok {
		p.dropped(RoleTwinSending)
		return nil
	}
	return link.Send(msg)
}

// GetUpdatedIdentity is declared by the capability surface but not provided
// by this gateway.
func (p *DeviceProxy) GetUpdatedIdentity() (Identity, error) {
	return Identity{}, ErrNotSupported
}

func (p *DeviceProxy) dropped(role LinkRole) {
	slog.Warn("Dropping message, link not attached",
		"connection", p.handler.ID,
		"identity", p.handler.identity.String(),
		"role", role,
	)
}
