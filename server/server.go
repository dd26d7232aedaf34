package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config for X402Server
type Config struct {
	// FacilitatorURL is the base URL of the x402 facilitator service. Used
	// when Facilitator is nil.
	FacilitatorURL string

	// Facilitator overrides the HTTP facilitator, mainly for tests.
	Facilitator Facilitator

	// VerifyOnly if true, only verifies but doesn't settle payments
	VerifyOnly bool

	// Verbose enables startup logging
	Verbose bool
}

// X402Server wraps an MCP server with per-tool x402 payment support
type X402Server struct {
	mcpServer   *mcpserver.MCPServer
	facilitator Facilitator
	config      *Config
}

// NewX402Server creates a new x402-enabled MCP server
func NewX402Server(name, version string, config *Config) *X402Server {
	if config == nil {
		config = &Config{}
	}

	facilitator := config.Facilitator
	if facilitator == nil && config.FacilitatorURL != "" {
		facilitator = NewHTTPFacilitator(config.FacilitatorURL)
	}

	srv := &X402Server{
		mcpServer:   mcpserver.NewMCPServer(name, version),
		facilitator: facilitator,
		config:      config,
	}

	if facilitator != nil {
		srv.fetchSupportedPayments()
	}

	return srv
}

// fetchSupportedPayments caches the facilitator's supported payment kinds,
// including the feePayer extras Solana requirements need.
func (s *X402Server) fetchSupportedPayments() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	supported, err := s.facilitator.GetSupported(ctx)
	if err != nil {
		log.Printf("Warning: failed to fetch supported payments from facilitator: %v", err)
		log.Printf("  Solana payments may not work correctly without feePayer information")
		return
	}

	SetSupportedPayments(supported)

	if s.config.Verbose {
		log.Printf("Fetched supported payment methods from facilitator:")
		for _, kind := range supported {
			log.Printf("  - %s on %s", kind.Scheme, kind.Network)
		}
	}
}

// AddTool adds a regular (non-paid) tool to the server
func (s *X402Server) AddTool(tool mcp.Tool, handler mcpserver.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
}

// AddPayableTool adds a tool whose handler is gated behind payment.
func (s *X402Server) AddPayableTool(tool mcp.Tool, handler mcpserver.ToolHandlerFunc, config ToolConfig) error {
	if s.facilitator == nil {
		return fmt.Errorf("no facilitator configured: set FacilitatorURL or Facilitator")
	}

	config.VerifyOnly = config.VerifyOnly || s.config.VerifyOnly

	wrap, err := NewPaymentWrapper(s.facilitator, config)
	if err != nil {
		return fmt.Errorf("tool %s: %w", tool.Name, err)
	}

	s.mcpServer.AddTool(tool, wrap(handler))
	return nil
}

// MCPServer returns the underlying MCP server for direct registration.
func (s *X402Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler for the server
func (s *X402Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// Start starts the server on the specified address
func (s *X402Server) Start(addr string) error {
	fmt.Printf("Starting X402 MCP Server on %s\n", addr)
	fmt.Printf("MCP endpoint: http://localhost%s\n", addr)

	return http.ListenAndServe(addr, s.Handler())
}
