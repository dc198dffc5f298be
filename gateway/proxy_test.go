package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mbocsi/edgehub/proto"
)

func newTestProxy(t *testing.T) (*DeviceProxy, *ConnectionHandler, *MockConn) {
	t.Helper()
	conn := &MockConn{}
	handler := NewConnectionHandler(Identity{DeviceID: "d1", ModuleID: "m1"}, conn, &MockSessionProvider{})
	if _, err := handler.GetSession(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return handler.Proxy(), handler, conn
}

func TestDeviceProxy_CloseIdempotent(t *testing.T) {
	proxy, _, conn := newTestProxy(t)

	const c = 32
	var wg sync.WaitGroup
	for i := 0; i < c; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := proxy.Close(nil); err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if conn.CloseCount() != 1 {
		t.Errorf("Expected exactly 1 connection close for %d concurrent calls, got %d", c, conn.CloseCount())
	}
	if proxy.IsActive() {
		t.Error("Expected proxy to be inactive after close")
	}
}

func TestDeviceProxy_CloseWithCause(t *testing.T) {
	proxy, _, conn := newTestProxy(t)

	if err := proxy.Close(errors.New("remote hangup")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if conn.CloseCount() != 1 {
		t.Errorf("Expected 1 connection close, got %d", conn.CloseCount())
	}
}

func TestDeviceProxy_SetInactive(t *testing.T) {
	proxy, _, conn := newTestProxy(t)

	proxy.SetInactive()

	if proxy.IsActive() {
		t.Error("Expected proxy to be inactive")
	}
	if conn.CloseCount() != 0 {
		t.Error("Expected SetInactive to leave the connection open")
	}
}

func TestDeviceProxy_SendCloudToDeviceStampsAddress(t *testing.T) {
	proxy, handler, _ := newTestProxy(t)
	link := NewMockLink(RoleCloudToDevice, "t1")
	handler.RegisterLink(context.Background(), link)

	msg := &proto.Message{Body: json.RawMessage(`{"k":"v"}`)}
	if err := proxy.SendCloudToDeviceMessage(msg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sent := link.GetMessages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 forwarded message, got %d", len(sent))
	}
	if to := sent[0].SystemProperty(proto.SysPropTo); to != "/devices/d1/modules/m1" {
		t.Errorf("Expected to '/devices/d1/modules/m1', got %s", to)
	}
}

func TestDeviceProxy_SendCloudToDeviceDeviceAddress(t *testing.T) {
	conn := &MockConn{}
	handler := NewConnectionHandler(Identity{DeviceID: "d1"}, conn, &MockSessionProvider{})
	handler.GetSession(context.Background())
	proxy := handler.Proxy()

	link := NewMockLink(RoleCloudToDevice, "t1")
	handler.RegisterLink(context.Background(), link)

	proxy.SendCloudToDeviceMessage(&proto.Message{})

	sent := link.GetMessages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 forwarded message, got %d", len(sent))
	}
	if to := sent[0].SystemProperty(proto.SysPropTo); to != "/devices/d1" {
		t.Errorf("Expected to '/devices/d1', got %s", to)
	}
}

func TestDeviceProxy_SendMessageStampsInputName(t *testing.T) {
	proxy, handler, _ := newTestProxy(t)
	link := NewMockLink(RoleModuleMessages, "t1")
	handler.RegisterLink(context.Background(), link)

	if err := proxy.SendMessage(&proto.Message{}, "input1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sent := link.GetMessages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 forwarded message, got %d", len(sent))
	}
	if input := sent[0].SystemProperty(proto.SysPropInputName); input != "input1" {
		t.Errorf("Expected input name 'input1', got %s", input)
	}
}

func TestDeviceProxy_DropOnMissingLink(t *testing.T) {
	proxy, handler, _ := newTestProxy(t)

	tests := []struct {
		name string
		send func() error
	}{
		{"cloud to device", func() error { return proxy.SendCloudToDeviceMessage(&proto.Message{}) }},
		{"module message", func() error { return proxy.SendMessage(&proto.Message{}, "input1") }},
		{"twin update", func() error { return proxy.PushTwinUpdate(&proto.Message{}) }},
		{"desired properties", func() error { return proxy.PushDesiredPropertiesUpdate(&proto.Message{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Errorf("Expected drop to be a no-op, got %v", err)
			}
			if handler.Registry().Len() != 0 {
				t.Error("Expected drop to not mutate the registry")
			}
		})
	}
}

func TestDeviceProxy_InvokeMethod(t *testing.T) {
	proxy, handler, _ := newTestProxy(t)
	link := NewMockLink(RoleMethodSending, "t1")
	handler.RegisterLink(context.Background(), link)

	req := proto.MethodRequest{
		Name:          "reboot",
		CorrelationID: "corr-1",
		Body:          json.RawMessage(`{"delay":5}`),
	}
	res, err := proxy.InvokeMethod(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.CorrelationID != "corr-1" {
		t.Errorf("Expected placeholder response to carry the correlation id, got %s", res.CorrelationID)
	}

	sent := link.GetMessages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 forwarded message, got %d", len(sent))
	}
	if name := sent[0].AppProperty(proto.AppPropMethodName); name != "reboot" {
		t.Errorf("Expected method name 'reboot', got %s", name)
	}
	if corr := sent[0].SystemProperty(proto.SysPropCorrelationID); corr != "corr-1" {
		t.Errorf("Expected correlation id 'corr-1', got %s", corr)
	}
	if string(sent[0].Body) != `{"delay":5}` {
		t.Errorf("Expected request body to be forwarded, got %s", string(sent[0].Body))
	}
}

func TestDeviceProxy_InvokeMethodMissingLink(t *testing.T) {
	proxy, _, _ := newTestProxy(t)

	res, err := proxy.InvokeMethod(proto.MethodRequest{Name: "reboot"})
	if err != nil {
		t.Errorf("Expected drop to be a no-op, got %v", err)
	}
	if res.Status != 0 || res.CorrelationID != "" {
		t.Error("Expected empty response on drop")
	}
}

func TestDeviceProxy_PushTwinUpdate(t *testing.T) {
	proxy, handler, _ := newTestProxy(t)
	link := NewMockLink(RoleTwinSending, "t1")
	handler.RegisterLink(context.Background(), link)

	if err := proxy.PushTwinUpdate(&proto.Message{Body: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := proxy.PushDesiredPropertiesUpdate(&proto.Message{Body: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(link.GetMessages()) != 2 {
		t.Errorf("Expected 2 forwarded messages, got %d", len(link.GetMessages()))
	}
}

func TestDeviceProxy_Unsupported(t *testing.T) {
	proxy, _, _ := newTestProxy(t)

	if _, err := proxy.GetUpdatedIdentity(); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported, got %v", err)
	}
	if _, err := proxy.MethodResponseFor("corr-1"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported, got %v", err)
	}
}

func TestDeviceProxy_Identity(t *testing.T) {
	proxy, _, _ := newTestProxy(t)

	identity := proxy.Identity()
	if identity.DeviceID != "d1" || identity.ModuleID != "m1" {
		t.Errorf("Expected identity d1/m1, got %s", identity.String())
	}
}
