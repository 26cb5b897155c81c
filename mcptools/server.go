package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "canvaslink"

// ServerOption configures the MCP server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger *slog.Logger
}

// WithServerLogger sets the logger for server lifecycle events.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(c *serverConfig) {
		c.logger = logger
	}
}

// Server adapts the relay command set to the Model Context Protocol.
type Server struct {
	mcpServer *mcp.Server
	logger    *slog.Logger
}

// NewServer creates an MCP server exposing every relay command as a tool.
// Tool calls are relayed through invoker; version is reported to clients
// during the MCP handshake.
func NewServer(invoker Invoker, version string, opts ...ServerOption) (*Server, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker cannot be nil")
	}
	if version == "" {
		version = "dev"
	}

	config := &serverConfig{}
	for _, opt := range opts {
		opt(config)
	}
	if config.logger == nil {
		config.logger = slog.Default()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	registerTools(mcpServer, invoker)

	return &Server{
		mcpServer: mcpServer,
		logger:    config.logger,
	}, nil
}

// registerTools binds the full relay command set.
func registerTools(server *mcp.Server, invoker Invoker) {
	mcp.AddTool(server, CreateFrameTool(), CreateFrameHandler(invoker))
	mcp.AddTool(server, CreateRectangleTool(), CreateRectangleHandler(invoker))
	mcp.AddTool(server, CreateEllipseTool(), CreateEllipseHandler(invoker))
	mcp.AddTool(server, CreateTextTool(), CreateTextHandler(invoker))
	mcp.AddTool(server, MoveNodeTool(), MoveNodeHandler(invoker))
	mcp.AddTool(server, ResizeNodeTool(), ResizeNodeHandler(invoker))
	mcp.AddTool(server, DeleteNodeTool(), DeleteNodeHandler(invoker))
	mcp.AddTool(server, SetFillColorTool(), SetFillColorHandler(invoker))
	mcp.AddTool(server, SetStrokeColorTool(), SetStrokeColorHandler(invoker))
	mcp.AddTool(server, SetCornerRadiusTool(), SetCornerRadiusHandler(invoker))
	mcp.AddTool(server, SetTextContentTool(), SetTextContentHandler(invoker))
	mcp.AddTool(server, GetNodeInfoTool(), GetNodeInfoHandler(invoker))
	mcp.AddTool(server, GetDocumentInfoTool(), GetDocumentInfoHandler(invoker))
	mcp.AddTool(server, ExportNodeTool(), ExportNodeHandler(invoker))
}

// Run serves the tool set over stdio and blocks until ctx is cancelled or
// the transport fails. Cancellation is a clean shutdown, not an error.
func (s *Server) Run(ctx context.Context) error {
	return s.serve(ctx, &mcp.StdioTransport{})
}

// serve runs the MCP server over the given transport.
func (s *Server) serve(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("server is not configured")
	}

	s.logger.Info("mcp server starting", "name", serverName)
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	s.logger.Info("mcp server stopped")
	return nil
}
