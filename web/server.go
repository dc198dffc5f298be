package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbocsi/edgehub/gateway"
)

// StatusServer serves a read-only JSON view of the gateway's connections,
// links, and transports.
type StatusServer struct {
	manager    *gateway.ConnectionManager
	transports func() []gateway.TransportMetadata
	server     *http.Server
}

func NewStatusServer(manager *gateway.ConnectionManager, transports func() []gateway.TransportMetadata) *StatusServer {
	return &StatusServer{manager: manager, transports: transports}
}

func (s *StatusServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/connections", s.HandleConnections)
	r.Get("/api/connections/{id}", s.HandleConnectionDetail)
	r.Get("/api/connections/{id}/links", s.HandleConnectionLinks)
	r.Get("/api/transports", s.HandleTransports)
	return r
}

func (s *StatusServer) Start(addr string) error {
	slog.Info("Starting status server", "addr", addr)
	s.server = &http.Server{Addr: addr, Handler: s.Routes()}

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *StatusServer) Shutdown() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
