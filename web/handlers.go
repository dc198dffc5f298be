package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbocsi/edgehub/gateway"
)

type connectionInfo struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	ModuleID string `json:"module_id,omitempty"`
	Address  string `json:"address"`
	Remote   string `json:"remote,omitempty"`
	Links    int    `json:"links"`
	Active   bool   `json:"active"`
}

type linkInfo struct {
	Role        string `json:"role"`
	Correlation string `json:"correlation"`
	CanSend     bool   `json:"can_send"`
}

type transportInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Protocol    string `json:"protocol"`
	Address     string `json:"address"`
	Description string `json:"description,omitempty"`
	Connections int    `json:"connections"`
	MaxConns    int    `json:"max_conns"`
	Connected   bool   `json:"connected"`
}

func connectionView(h *gateway.ConnectionHandler) connectionInfo {
	identity := h.Identity()
	active := false
	if p := h.Proxy(); p != nil {
		active = p.IsActive()
	}
	return connectionInfo{
		ID:       h.ID,
		DeviceID: identity.DeviceID,
		ModuleID: identity.ModuleID,
		Address:  identity.Address(),
		Remote:   h.Remote,
		Links:    h.Registry().Len(),
		Active:   active,
	}
}

func (s *StatusServer) HandleConnections(w http.ResponseWriter, r *http.Request) {
	handlers := s.manager.List()
	res := make([]connectionInfo, 0, len(handlers))
	for _, h := range handlers {
		res = append(res, connectionView(h))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *StatusServer) HandleConnectionDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, ok := s.manager.Get(id)
	if !ok {
		http.Error(w, "connection not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, connectionView(h))
}

func (s *StatusServer) HandleConnectionLinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h, ok := s.manager.Get(id)
	if !ok {
		http.Error(w, "connection not found", http.StatusNotFound)
		return
	}

	links := h.Registry().List()
	res := make([]linkInfo, 0, len(links))
	for _, link := range links {
		res = append(res, linkInfo{
			Role:        string(link.Role()),
			Correlation: link.CorrelationToken(),
			CanSend:     link.Role().CanSend(),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *StatusServer) HandleTransports(w http.ResponseWriter, r *http.Request) {
	metas := s.transports()
	res := make([]transportInfo, 0, len(metas))
	for _, meta := range metas {
		res = append(res, transportInfo{
			ID:          meta.ID,
			Name:        meta.Name,
			Protocol:    meta.Protocol,
			Address:     meta.Address,
			Description: meta.Description,
			Connections: meta.Connections,
			MaxConns:    meta.MaxConns,
			Connected:   meta.Connected,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
