package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/budgetwatch/internal/session"
)

// Server wraps the MCP SDK server around a session manager, so an agent can
// meter its own work and receive checkpoint obligations as tool results.
type Server struct {
	mcpServer *mcpsdk.Server
	mgr       *session.Manager
}

// New creates an MCP server with all budgetwatch tools registered.
func New(mgr *session.Manager) *Server {
	s := &Server{mgr: mgr}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "budgetwatch",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

var (
	startTool = &mcpsdk.Tool{
		Name:        "budget_start",
		Description: "Start a metered session under a budget profile. Returns the session id to use with the other tools.",
	}
	reportTool = &mcpsdk.Tool{
		Name:        "budget_report",
		Description: "Report resource usage for a session. Returns any checkpoint obligations that became due; write them before continuing.",
	}
	completeTool = &mcpsdk.Tool{
		Name:        "budget_complete",
		Description: "Finish a session and emit its final checkpoint. Progress notes are recommended; empty notes are accepted.",
	}
	handOffTool = &mcpsdk.Tool{
		Name:        "budget_handoff",
		Description: "Hand a session to a successor and emit the handoff document. Progress notes are recommended; empty notes are accepted.",
	}
	statusTool = &mcpsdk.Tool{
		Name:        "budget_status",
		Description: "Show a session's usage, zone, fired tiers and the next scheduled checkpoint.",
	}
)

func toolDefinitions() []*mcpsdk.Tool {
	return []*mcpsdk.Tool{startTool, reportTool, completeTool, handOffTool, statusTool}
}

// registerTools adds all budgetwatch tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, startTool, s.handleStart)
	mcpsdk.AddTool(s.mcpServer, reportTool, s.handleReport)
	mcpsdk.AddTool(s.mcpServer, completeTool, s.handleComplete)
	mcpsdk.AddTool(s.mcpServer, handOffTool, s.handleHandOff)
	mcpsdk.AddTool(s.mcpServer, statusTool, s.handleStatus)
}
