package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type MCPServer struct {
	Server *server.MCPServer
}

func NewMCPServer() *MCPServer {
	return &MCPServer{Server: server.NewMCPServer("edgehub", "1.0.0")}
}

func (s *MCPServer) Start() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.ServeStdio(s.Server)
}

func (s *MCPServer) Shutdown() error {
	return nil // ServeStdio returns when stdin closes
}

func (s *MCPServer) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.Server.AddTool(tool, handler)
}

func registerMCPTools(mcpServer *MCPServer, manager *ConnectionManager) {
	listConnections := mcp.NewTool("list_connections",
		mcp.WithDescription("Get a list of the device connections currently open on this gateway"))
	mcpServer.AddTool(listConnections, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type connectionElement struct {
			ID       string `json:"id"`
			Identity string `json:"identity"`
			Remote   string `json:"remote,omitempty"`
			Links    int    `json:"links"`
		}
		handlers := manager.List()
		res := make([]connectionElement, 0, len(handlers))
		for _, h := range handlers {
			res = append(res, connectionElement{
				ID:       h.ID,
				Identity: h.Identity().String(),
				Remote:   h.Remote,
				Links:    h.Registry().Len(),
			})
		}

		jsonBytes, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, err
		}

		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	listLinks := mcp.NewTool("list_links",
		mcp.WithDescription("Get the links attached on one device connection"),
		mcp.WithString("connection_id", mcp.Required(), mcp.Description("ID of the connection to inspect")))
	mcpServer.AddTool(listLinks, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("connection_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		h, ok := manager.Get(id)
		if !ok {
			return mcp.NewToolResultError("connection not found: " + id), nil
		}

		type linkElement struct {
			Role        string `json:"role"`
			Correlation string `json:"correlation"`
		}
		links := h.Registry().List()
		res := make([]linkElement, 0, len(links))
		for _, link := range links {
			res = append(res, linkElement{Role: string(link.Role()), Correlation: link.CorrelationToken()})
		}

		jsonBytes, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, err
		}

		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}
