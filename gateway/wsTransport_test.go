package gateway

import (
	"testing"
	"time"
)

func TestNewWSTransport(t *testing.T) {
	addr := "localhost:0"
	transport := NewWSTransport(addr)

	if transport.Addr != addr {
		t.Errorf("Expected addr %s, got %s", addr, transport.Addr)
	}
	if transport.maxConns != 64 {
		t.Errorf("Expected maxConns 64, got %d", transport.maxConns)
	}
	if transport.conns == nil {
		t.Error("Expected conns map to be initialized")
	}
}

func TestWSTransport_SetMethods(t *testing.T) {
	transport := NewWSTransport("localhost:0")

	transport.SetName("test-ws-transport")
	transport.SetMaxConns(10)
	transport.SetDescription("Test WebSocket transport")

	meta := transport.Meta()

	if meta.Name != "test-ws-transport" {
		t.Errorf("Expected name 'test-ws-transport', got %s", meta.Name)
	}
	if meta.MaxConns != 10 {
		t.Errorf("Expected maxConns 10, got %d", meta.MaxConns)
	}
	if meta.Description != "Test WebSocket transport" {
		t.Errorf("Expected description 'Test WebSocket transport', got %s", meta.Description)
	}
	if meta.Protocol != "websocket" {
		t.Errorf("Expected protocol 'websocket', got %s", meta.Protocol)
	}
}

func TestWSTransport_StartWithoutCallbacks(t *testing.T) {
	transport := NewWSTransport("localhost:0")

	done := make(chan error, 1)
	go func() {
		done <- transport.Start()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error when starting without callbacks")
		}
	case <-time.After(1 * time.Second):
		transport.Shutdown()
		t.Error("Start() did not return without callbacks")
	}
}

func TestWSTransport_ShutdownWithoutStart(t *testing.T) {
	transport := NewWSTransport("localhost:0")

	if err := transport.Shutdown(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
