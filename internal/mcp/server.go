// Package mcp exposes the companion as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/tecbitlyfe/bitlyfe/internal/chat"
	"github.com/tecbitlyfe/bitlyfe/internal/metrics"
	"github.com/tecbitlyfe/bitlyfe/internal/models"
	"github.com/tecbitlyfe/bitlyfe/internal/persona"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

// defaultSearchLimit is the default number of results for search.
const defaultSearchLimit = 10

// Server wraps an MCPServer with companion dependencies.
type Server struct {
	mcp      *mcpserver.MCPServer
	st       store.Store
	chat     *chat.Service
	personas *persona.Registry
	logger   *slog.Logger
}

// NewServer creates a new MCP server.
func NewServer(st store.Store, svc *chat.Service, personas *persona.Registry, version string, logger *slog.Logger) *Server {
	s := &Server{
		st:       st,
		chat:     svc,
		personas: personas,
		logger:   logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"bitlyfe",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildChatTool(), s.handleChat)
	mcpSrv.AddTool(buildRememberTool(), s.handleRemember)
	mcpSrv.AddTool(buildSearchTool(), s.handleSearch)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)
	mcpSrv.AddTool(buildSetPersonaTool(), s.handleSetPersona)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleChat is the exported handler for the "chat" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleChat(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleChat(ctx, req)
}

// HandleRemember is the exported handler for the "remember" tool.
func (s *Server) HandleRemember(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRemember(ctx, req)
}

// HandleSearch is the exported handler for the "search_memories" tool.
func (s *Server) HandleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSearch(ctx, req)
}

// HandleStats is the exported handler for the "memory_stats" tool.
func (s *Server) HandleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStats(ctx, req)
}

// HandleSetPersona is the exported handler for the "set_persona" tool.
func (s *Server) HandleSetPersona(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSetPersona(ctx, req)
}

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func userIDOption() mcpgo.ToolOption {
	return mcpgo.WithString("user_id",
		mcpgo.Description("User the call acts for (default: the configured default user)"),
	)
}

func buildChatTool() mcpgo.Tool {
	return mcpgo.NewTool("chat",
		mcpgo.WithDescription("Send a message to the companion and get its reply. The exchange is remembered."),
		mcpgo.WithString("message",
			mcpgo.Required(),
			mcpgo.Description("The message to send"),
		),
		userIDOption(),
		mcpgo.WithString("character",
			mcpgo.Description("Character whose emotional bias tags the message"),
		),
		mcpgo.WithString("provider",
			mcpgo.Description("Provider name, or auto for the fallback chain (default: auto)"),
		),
		mcpgo.WithBoolean("include_context",
			mcpgo.Description("Prepend memories, recent turns and persona traits (default: true)"),
		),
	)
}

func buildRememberTool() mcpgo.Tool {
	return mcpgo.NewTool("remember",
		mcpgo.WithDescription("Store a memory for a user."),
		mcpgo.WithString("content",
			mcpgo.Required(),
			mcpgo.Description("The text content to remember"),
		),
		userIDOption(),
		mcpgo.WithString("type",
			mcpgo.Description("Memory type: conversation, fact, preference, emotion, quest or shared_content (default: fact)"),
		),
		mcpgo.WithNumber("importance",
			mcpgo.Description("Importance 0.0-1.0 (default: 0.5)"),
		),
		mcpgo.WithString("tags",
			mcpgo.Description("Comma-separated tags"),
		),
	)
}

func buildSearchTool() mcpgo.Tool {
	return mcpgo.NewTool("search_memories",
		mcpgo.WithDescription("Case-insensitive substring search over a user's memory content and tags."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("Text to look for"),
		),
		userIDOption(),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results (default: 10)"),
		),
	)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("memory_stats",
		mcpgo.WithDescription("Memory counts by type, average importance and conversation count for a user."),
		userIDOption(),
	)
}

func buildSetPersonaTool() mcpgo.Tool {
	return mcpgo.NewTool("set_persona",
		mcpgo.WithDescription("Switch the user's active personality."),
		mcpgo.WithString("personality_id",
			mcpgo.Required(),
			mcpgo.Description("Personality ID, e.g. default, casual, mentor or storyteller"),
		),
		userIDOption(),
	)
}

// --- tool handlers ---

func (s *Server) handleChat(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	message := req.GetString("message", "")
	if strings.TrimSpace(message) == "" {
		return mcpgo.NewToolResultError("message is required and must not be empty"), nil
	}

	reply, err := s.chat.Chat(ctx, chat.Request{
		UserID:         req.GetString("user_id", ""),
		Message:        message,
		Character:      req.GetString("character", ""),
		Provider:       req.GetString("provider", ""),
		IncludeContext: req.GetBool("include_context", true),
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("chat failed: %s", err.Error()), nil
	}
	return toolResultJSON(reply)
}

func (s *Server) handleRemember(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return mcpgo.NewToolResultError("content is required and must not be empty"), nil
	}

	memType := models.MemoryTypeFact
	if t := req.GetString("type", ""); t != "" {
		memType = models.MemoryType(t)
		if !memType.IsValid() {
			return mcpgo.NewToolResultErrorf("invalid type %q", t), nil
		}
	}

	importance := req.GetFloat("importance", models.DefaultImportance)
	if importance < 0.0 || importance > 1.0 {
		return mcpgo.NewToolResultError("importance must be between 0.0 and 1.0"), nil
	}

	var tags []string
	if raw := req.GetString("tags", ""); raw != "" {
		tags = strings.Split(raw, ",")
	}

	userID := s.chat.UserID(req.GetString("user_id", ""))
	id, err := s.st.CreateMemory(ctx, store.CreateMemoryParams{
		UserID:     userID,
		Content:    content,
		Type:       memType,
		Importance: &importance,
		Tags:       tags,
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("store failed: %s", err.Error()), nil
	}
	metrics.Inc(metrics.MemoryCreated)

	s.logger.Info("mcp: remember stored memory", "id", id, "user_id", userID, "type", memType)
	return toolResultJSON(map[string]any{"id": id, "stored": true})
}

func (s *Server) handleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcpgo.NewToolResultError("query is required and must not be empty"), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.st.SearchMemories(ctx, s.chat.UserID(req.GetString("user_id", "")), query, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("search failed: %s", err.Error()), nil
	}
	if results == nil {
		results = []models.Memory{}
	}
	return toolResultJSON(map[string]any{"results": results})
}

func (s *Server) handleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	stats, err := s.st.MemoryStats(ctx, s.chat.UserID(req.GetString("user_id", "")))
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	return toolResultJSON(stats)
}

func (s *Server) handleSetPersona(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id := req.GetString("personality_id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("personality_id is required and must not be empty"), nil
	}
	userID := s.chat.UserID(req.GetString("user_id", ""))
	if err := s.personas.SetActive(ctx, userID, id); err != nil {
		return mcpgo.NewToolResultErrorf("set persona failed: %s", err.Error()), nil
	}
	p, err := s.personas.GetActive(ctx, userID)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get persona failed: %s", err.Error()), nil
	}
	return toolResultJSON(p)
}
