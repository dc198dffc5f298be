package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mbocsi/edgehub/proto"
)

// Device is a device-side client for an edgehub gateway. It opens the
// connection, attaches links by role, and dispatches inbound frames to
// registered handlers.
type Device struct {
	DeviceID string
	ModuleID string

	transport Transport

	hmu      sync.RWMutex
	handlers map[string]func(*proto.Message)
	onDetach func(role string)

	connected bool
	done      chan struct{}
}

func NewDevice(deviceID, moduleID string, t Transport) *Device {
	return &Device{
		DeviceID:  deviceID,
		ModuleID:  moduleID,
		transport: t,
		handlers:  make(map[string]func(*proto.Message)),
	}
}

// OnMessage registers a handler for transfer frames arriving on role.
func (d *Device) OnMessage(role string, fn func(*proto.Message)) {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	d.handlers[role] = fn
}

// OnDetach registers a handler called when the gateway detaches a link.
func (d *Device) OnDetach(fn func(role string)) {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	d.onDetach = fn
}

// Connect dials the gateway, announces the device identity, and starts the
// read loop.
func (d *Device) Connect(addr string) error {
	if err := d.transport.Connect(addr); err != nil {
		return err
	}

	open := proto.Frame{Op: proto.FrameOpen, DeviceID: d.DeviceID, ModuleID: d.ModuleID}
	if err := d.transport.Send(open); err != nil {
		d.transport.Close()
		return fmt.Errorf("sending open frame: %w", err)
	}

	d.connected = true
	d.done = make(chan struct{})
	go d.readLoop()
	return nil
}

// Attach opens a link for role on this connection. Paired roles should pass
// the same correlation token; an empty token lets the gateway assign one.
func (d *Device) Attach(role, correlation string) error {
	if !d.connected {
		return fmt.Errorf("device is not connected")
	}
	return d.transport.Send(proto.Frame{Op: proto.FrameAttach, Role: role, Correlation: correlation})
}

// Detach closes the link for role.
func (d *Device) Detach(role string) error {
	if !d.connected {
		return fmt.Errorf("device is not connected")
	}
	return d.transport.Send(proto.Frame{Op: proto.FrameDetach, Role: role})
}

// SendTelemetry sends a device-to-cloud message with payload as its body.
func (d *Device) SendTelemetry(payload any) error {
	if !d.connected {
		return fmt.Errorf("device is not connected")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telemetry payload: %w", err)
	}
	msg := &proto.Message{Body: body}
	return d.transport.Send(proto.Frame{Op: proto.FrameTransfer, Role: "telemetry", Message: msg})
}

func (d *Device) Close() error {
	d.connected = false
	err := d.transport.Close()
	if d.done != nil {
		<-d.done
	}
	return err
}

func (d *Device) readLoop() {
	defer close(d.done)
	for {
		frame, err := d.transport.Read()
		if err != nil {
			if d.connected {
				slog.Warn("Read loop ended", "device", d.DeviceID, "error", err)
			}
			return
		}

		switch frame.Op {
		case proto.FrameTransfer:
			if frame.Message == nil {
				continue
			}
			d.hmu.RLock()
			handler := d.handlers[frame.Role]
			d.hmu.RUnlock()
			if handler == nil {
				slog.Debug("No handler for inbound frame", "device", d.DeviceID, "role", frame.Role)
				continue
			}
			handler(frame.Message)

		case proto.FrameDetach:
			slog.Debug("Gateway detached link", "device", d.DeviceID, "role", frame.Role)
			d.hmu.RLock()
			onDetach := d.onDetach
			d.hmu.RUnlock()
			if onDetach != nil {
				onDetach(frame.Role)
			}

		default:
			slog.Warn("Unhandled frame op from gateway", "op", frame.Op)
		}
	}
}
