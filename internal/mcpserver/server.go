// Package mcpserver exposes the Session Layer's start/decide/get/export
// contract as MCP tools (SPEC_FULL.md §4.10, §6), grounded on
// internal/mcp/simple_mcp.go's NewTool/AddTool/ServeStdio idiom.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"scifind-backend/internal/export"
	"scifind-backend/internal/models"
	"scifind-backend/internal/session"
)

// Server wraps a *session.Manager behind the MCP tool surface.
type Server struct {
	mcpServer *server.MCPServer
	sessions  *session.Manager
	logger    *slog.Logger
}

func New(sessions *session.Manager, logger *slog.Logger) *Server {
	mcpServer := server.NewMCPServer(
		"scifind-backend research workflow",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &Server{mcpServer: mcpServer, sessions: sessions, logger: logger}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start",
		mcp.WithDescription("Start a research search run for a free-text query"),
		mcp.WithString("query", mcp.Required()),
		mcp.WithString("domain"),
		mcp.WithNumber("max_results"),
	)
	s.mcpServer.AddTool(startTool, s.handleStart)

	decideTool := mcp.NewTool("decide",
		mcp.WithDescription("Resolve a pending checkpoint with approve, edit, or reject"),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithString("action", mcp.Required()),
		mcp.WithObject("data"),
		mcp.WithString("note"),
	)
	s.mcpServer.AddTool(decideTool, s.handleDecide)

	getTool := mcp.NewTool("get",
		mcp.WithDescription("Fetch the current snapshot of a session"),
		mcp.WithString("session_id", mcp.Required()),
	)
	s.mcpServer.AddTool(getTool, s.handleGet)

	exportTool := mcp.NewTool("export",
		mcp.WithDescription("Export a completed session's results as json, bibtex, or markdown"),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithString("format", mcp.Required()),
	)
	s.mcpServer.AddTool(exportTool, s.handleExport)

	s.logger.Info("registered MCP tools", slog.Int("count", 4))
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query parameter required"), nil
	}

	var maxResults *int
	if v, ok := args["max_results"].(float64); ok {
		n := int(v)
		maxResults = &n
	}

	_, snapshot, err := s.sessions.Start(query, maxResults)
	if err != nil {
		s.logger.Error("start failed", slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("start failed: %v", err)), nil
	}
	return textResult(snapshot)
}

func (s *Server) handleDecide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcp.NewToolResultError("session_id parameter required"), nil
	}
	actionStr, ok := args["action"].(string)
	if !ok {
		return mcp.NewToolResultError("action parameter required"), nil
	}
	action := models.DecisionAction(actionStr)
	if action != models.Approve && action != models.Edit && action != models.Reject {
		return mcp.NewToolResultError("action must be one of: approve, edit, reject"), nil
	}

	var revisedData map[string]interface{}
	if data, ok := args["data"].(map[string]interface{}); ok {
		revisedData = data
	}
	note, _ := args["note"].(string)

	snapshot, err := s.sessions.Decide(ctx, sessionID, action, revisedData, note)
	if err != nil {
		s.logger.Error("decide failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("decide failed: %v", err)), nil
	}
	return textResult(snapshot)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcp.NewToolResultError("session_id parameter required"), nil
	}

	snapshot, err := s.sessions.Get(sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	return textResult(snapshot)
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcp.NewToolResultError("session_id parameter required"), nil
	}
	format, ok := args["format"].(string)
	if !ok {
		return mcp.NewToolResultError("format parameter required"), nil
	}

	snapshot, err := s.sessions.Get(sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	if !snapshot.IsComplete {
		return mcp.NewToolResultError("export requires a completed session"), nil
	}

	coll, err := s.sessions.Collection(sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}

	formatted, err := export.Render(coll, export.Kind(format))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatted), nil
}

func textResult(v interface{}) (*mcp.CallToolResult, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(buf)), nil
}

// ServeStdio starts the MCP server over stdio.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting MCP server via stdio")
	return server.ServeStdio(s.mcpServer)
}
