package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/promptgate/promptgate/internal/model"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			"promptgate://templates",
			"Active Prompt Templates",
			mcp.WithResourceDescription(
				"Catalog of all active prompt templates with their names, versions, "+
					"and locales. Content is omitted; use promptgate_list_prompts with a "+
					"token to read template content.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleTemplatesResource,
	)
}

// handleTemplatesResource returns a JSON catalog of active templates. The
// catalog is metadata only: template content stays behind token-scoped tools.
func (s *MCPServer) handleTemplatesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	templates, err := s.store.ListPromptTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	type templateInfo struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Version int    `json:"version"`
		Locale  string `json:"locale,omitempty"`
	}

	items := make([]templateInfo, 0, len(templates))
	for _, tpl := range templates {
		if tpl.Status != model.RuleActive {
			continue
		}
		items = append(items, templateInfo{
			ID:      tpl.ID,
			Name:    tpl.Name,
			Version: tpl.Version,
			Locale:  tpl.Locale,
		})
	}

	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal templates: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "promptgate://templates",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
