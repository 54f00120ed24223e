package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/promptgate/promptgate/internal/service"
)

// registerTools registers all promptgate MCP tools on the given server. Every
// tool delegates to the same service methods the HTTP handlers use, so the
// two transports cannot drift apart.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	srv.AddTool(
		mcp.NewTool("promptgate_match_prompt",
			mcp.WithDescription(
				"Resolve a free-text requirement to a curated prompt template by keyword "+
					"matching. Returns the template content on a hit, or success=false with "+
					"an explanation when nothing matches. Longer keywords win over shorter ones.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("token_key",
				mcp.Required(),
				mcp.Description("A live token key authorizing the lookup"),
			),
			mcp.WithString("requirement",
				mcp.Required(),
				mcp.Description("Free-text description of the task to find a prompt for"),
			),
			mcp.WithString("locale",
				mcp.Description("Locale filter (e.g. \"en\", \"es\"). Omit to match all locales."),
			),
			mcp.WithBoolean("allow_regex",
				mcp.Description("Also evaluate regex keyword rules against the requirement"),
			),
		),
		s.handleMatchPrompt,
	)

	srv.AddTool(
		mcp.NewTool("promptgate_list_tokens",
			mcp.WithDescription(
				"List the tokens belonging to the owner of the given token key. Keys are "+
					"returned masked. An unknown key yields an empty list, never an error.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("token_key",
				mcp.Required(),
				mcp.Description("A token key identifying the owner"),
			),
		),
		s.handleListTokens,
	)

	srv.AddTool(
		mcp.NewTool("promptgate_list_prompts",
			mcp.WithDescription(
				"List the prompt templates visible to the given token. The token must be "+
					"live; a revoked, expired, or unknown key is rejected.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("token_key",
				mcp.Required(),
				mcp.Description("The token key to list prompts for"),
			),
		),
		s.handleListPrompts,
	)
}

func (s *MCPServer) handleMatchPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := requireString(request, "token_key")
	if err != nil {
		return toolError("%v", err)
	}
	requirement, err := requireString(request, "requirement")
	if err != nil {
		return toolError("%v", err)
	}
	locale := optionalString(request, "locale")
	allowRegex := optionalBool(request, "allow_regex")

	// Same gate as the HTTP transport: the touch and any lazy expiry are
	// persisted before matching runs.
	if _, err := s.tokens.Validate(ctx, key); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenNotFound),
			errors.Is(err, service.ErrTokenRevoked),
			errors.Is(err, service.ErrTokenExpired):
			s.logger.Warn("mcp match rejected", "reason", err.Error())
			return toolError("unauthorized: missing or invalid token")
		default:
			return nil, err
		}
	}

	result := s.matcher.Match(ctx, requirement, locale, allowRegex)
	return successJSON(result)
}

func (s *MCPServer) handleListTokens(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := requireString(request, "token_key")
	if err != nil {
		return toolError("%v", err)
	}

	tokens, err := s.prompts.ListTokensForOwner(ctx, key)
	if err != nil {
		return nil, err
	}
	return successJSON(map[string]interface{}{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

func (s *MCPServer) handleListPrompts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := requireString(request, "token_key")
	if err != nil {
		return toolError("%v", err)
	}

	prompts, err := s.prompts.GetPromptsForToken(ctx, key)
	if err != nil {
		if errors.Is(err, service.ErrTokenInactive) {
			return toolError("token not found or inactive")
		}
		return nil, err
	}

	type promptInfo struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Content string `json:"content"`
		Version int    `json:"version"`
		Locale  string `json:"locale,omitempty"`
	}
	items := make([]promptInfo, len(prompts))
	for i, p := range prompts {
		items[i] = promptInfo{
			ID:      p.ID,
			Name:    p.Name,
			Content: p.Content,
			Version: p.Version,
			Locale:  p.Locale,
		}
	}
	return successJSON(map[string]interface{}{
		"prompts": items,
		"count":   len(items),
	})
}
