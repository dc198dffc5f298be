package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mbocsi/edgehub/config"
	"github.com/mbocsi/edgehub/gateway"
	"github.com/mbocsi/edgehub/proto"
	"github.com/mbocsi/edgehub/web"
)

// logSession is a stand-in cloud session that logs device-to-cloud traffic.
// A real deployment plugs in a provider backed by an upstream broker.
type logSession struct {
	identity gateway.Identity
	proxy    *gateway.DeviceProxy
}

func (s *logSession) BindProxy(proxy *gateway.DeviceProxy) {
	s.proxy = proxy
}

func (s *logSession) HandleMessage(ctx context.Context, msg *proto.Message) error {
	slog.Info("Device message", "identity", s.identity.String(), "size", len(msg.Body))
	return nil
}

func (s *logSession) Close(ctx context.Context) error {
	slog.Info("Session closed", "identity", s.identity.String())
	return s.proxy.Close(nil)
}

type logSessionProvider struct{}

func (logSessionProvider) CreateSession(ctx context.Context, identity gateway.Identity) (gateway.Session, error) {
	return &logSession{identity: identity}, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	withMCP := flag.Bool("mcp", false, "serve MCP introspection tools on stdio")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Error loading config", "error", err.Error())
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	var mcpServer *gateway.MCPServer
	if *withMCP {
		mcpServer = gateway.NewMCPServer()
	}

	server := gateway.NewGatewayServer(gateway.GatewayServerOptions{
		Provider:         logSessionProvider{},
		MCPServer:        mcpServer,
		LinkCloseTimeout: cfg.LinkCloseTimeout.Duration,
	})

	tcpTransport := gateway.NewTCPTransport(cfg.TCPAddr)
	tcpTransport.SetName("Main TCP listener")
	tcpTransport.SetMaxConns(cfg.MaxConns)
	server.RegisterTransport(tcpTransport)

	wsTransport := gateway.NewWSTransport(cfg.WSAddr)
	wsTransport.SetName("Main WebSocket listener")
	wsTransport.SetMaxConns(cfg.MaxConns)
	server.RegisterTransport(wsTransport)

	if cfg.WebAddr != "" {
		statusServer := web.NewStatusServer(server.Manager(), server.TransportsMeta)
		go statusServer.Start(cfg.WebAddr)
		defer statusServer.Shutdown()
	}

	if err := server.Start(); err != nil {
		slog.Error("Error starting gateway server", "error", err.Error())
		os.Exit(1)
	}
}
