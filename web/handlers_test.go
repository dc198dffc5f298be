package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbocsi/edgehub/gateway"
	"github.com/mbocsi/edgehub/proto"
)

type stubCloser struct{}

func (stubCloser) Close() error { return nil }

type stubSession struct{}

func (stubSession) BindProxy(proxy *gateway.DeviceProxy) {}

func (stubSession) HandleMessage(ctx context.Context, msg *proto.Message) error { return nil }

func (stubSession) Close(ctx context.Context) error { return nil }

type stubProvider struct{}

func (stubProvider) CreateSession(ctx context.Context, identity gateway.Identity) (gateway.Session, error) {
	return stubSession{}, nil
}

type stubLink struct {
	role        gateway.LinkRole
	correlation string
}

func (l stubLink) Role() gateway.LinkRole          { return l.role }
func (l stubLink) CorrelationToken() string        { return l.correlation }
func (l stubLink) Close(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) (*StatusServer, *gateway.ConnectionHandler) {
	t.Helper()

	manager := gateway.NewConnectionManager()
	handler := gateway.NewConnectionHandler(gateway.Identity{DeviceID: "d1", ModuleID: "m1"}, stubCloser{}, stubProvider{})
	if err := handler.RegisterLink(context.Background(), stubLink{role: gateway.RoleCloudToDevice, correlation: "t1"}); err != nil {
		t.Fatalf("Failed to register link: %v", err)
	}
	manager.Store(handler)

	transports := func() []gateway.TransportMetadata {
		return []gateway.TransportMetadata{
			{ID: "tcp-0.0.0.0:8888", Protocol: "tcp", Address: "0.0.0.0:8888", Connections: 1, MaxConns: 64, Connected: true},
		}
	}
	return NewStatusServer(manager, transports), handler
}

func doRequest(t *testing.T, server *StatusServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, req)
	return rec
}

func TestStatusServer_HandleConnections(t *testing.T) {
	server, handler := newTestServer(t)

	rec := doRequest(t, server, "/api/connections")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var res []connectionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("Expected 1 connection, got %d", len(res))
	}
	if res[0].ID != handler.ID {
		t.Errorf("Expected connection id %s, got %s", handler.ID, res[0].ID)
	}
	if res[0].Address != "/devices/d1/modules/m1" {
		t.Errorf("Expected address '/devices/d1/modules/m1', got %s", res[0].Address)
	}
	if res[0].Links != 1 {
		t.Errorf("Expected 1 link, got %d", res[0].Links)
	}
}

func TestStatusServer_HandleConnectionDetail(t *testing.T) {
	server, handler := newTestServer(t)

	rec := doRequest(t, server, "/api/connections/"+handler.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var res connectionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if res.DeviceID != "d1" || res.ModuleID != "m1" {
		t.Errorf("Unexpected identity in response: %s/%s", res.DeviceID, res.ModuleID)
	}
}

func TestStatusServer_HandleConnectionDetailNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/api/connections/conn-missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestStatusServer_HandleConnectionLinks(t *testing.T) {
	server, handler := newTestServer(t)

	rec := doRequest(t, server, "/api/connections/"+handler.ID+"/links")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var res []linkInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(res))
	}
	if res[0].Role != string(gateway.RoleCloudToDevice) {
		t.Errorf("Expected cloud-to-device role, got %s", res[0].Role)
	}
	if res[0].Correlation != "t1" {
		t.Errorf("Expected correlation t1, got %s", res[0].Correlation)
	}
	if !res[0].CanSend {
		t.Error("Expected cloud-to-device link to be send-capable")
	}
}

func TestStatusServer_HandleTransports(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, "/api/transports")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var res []transportInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("Expected 1 transport, got %d", len(res))
	}
	if res[0].Protocol != "tcp" {
		t.Errorf("Expected tcp protocol, got %s", res[0].Protocol)
	}
}
