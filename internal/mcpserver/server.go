// Package mcpserver exposes the remitwise API as MCP tools.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all remitwise tools registered.
func NewMCPServer(cfg Config, version string) *server.MCPServer {
	s := server.NewMCPServer("remitwise", version)
	h := NewHandlers(NewClient(cfg), cfg.SenderID)

	s.AddTool(ToolGetRate, h.HandleGetRate)
	s.AddTool(ToolCompareChannels, h.HandleCompareChannels)
	s.AddTool(ToolOptimizeChannels, h.HandleOptimizeChannels)
	s.AddTool(ToolAssessFraud, h.HandleAssessFraud)
	s.AddTool(ToolTransferHistory, h.HandleTransferHistory)

	return s
}
