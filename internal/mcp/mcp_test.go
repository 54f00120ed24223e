package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/service"
	"github.com/promptgate/promptgate/internal/store"
)

func newTestServer(t *testing.T) (*MCPServer, *store.Store, *service.TokenService) {
	t.Helper()

	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := service.NewMatcher(st, cache.NewMemory(0), 0, 0, logger)
	prompts := service.NewPromptService(st)
	tokens := service.NewTokenService(st, logger)

	return NewMCPServer(tokens, matcher, prompts, st, logger), st, tokens
}

// seedToken creates a member with one issued token and returns the raw key.
func seedToken(t *testing.T, st *store.Store, tokens *service.TokenService, email string) string {
	t.Helper()
	ctx := context.Background()
	member := &model.Member{Email: email, Status: model.MemberActive}
	if err := st.CreateMember(ctx, member); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	token, err := tokens.Issue(ctx, member.ID, "mcp test", 0, "test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token.TokenKey
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text payload from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func seedRule(t *testing.T, st *store.Store, keyword, name, content string) *model.PromptTemplate {
	t.Helper()
	ctx := context.Background()
	tpl := &model.PromptTemplate{Name: name, Content: content, Version: 1, Status: model.RuleActive}
	if err := st.CreatePromptTemplate(ctx, tpl); err != nil {
		t.Fatalf("CreatePromptTemplate: %v", err)
	}
	kw := &model.KeywordPrompt{Keyword: keyword, PromptTemplateID: tpl.ID, Status: model.RuleActive}
	if err := st.CreateKeywordPrompt(ctx, kw); err != nil {
		t.Fatalf("CreateKeywordPrompt: %v", err)
	}
	return tpl
}

func TestMatchPromptTool_Hit(t *testing.T) {
	srv, st, tokens := newTestServer(t)
	key := seedToken(t, st, tokens, "alice@example.com")
	tpl := seedRule(t, st, "code review", "code-review", "Review the following code.")

	result, err := srv.handleMatchPrompt(context.Background(), callRequest(map[string]interface{}{
		"token_key":   key,
		"requirement": "please run a code review on this",
	}))
	if err != nil {
		t.Fatalf("handleMatchPrompt: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var match model.MatchResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &match); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !match.Success || match.PromptTemplateID != tpl.ID {
		t.Errorf("match = %+v, want hit on template %d", match, tpl.ID)
	}
}

func TestMatchPromptTool_MissIsResultNotError(t *testing.T) {
	srv, st, tokens := newTestServer(t)
	key := seedToken(t, st, tokens, "alice@example.com")

	result, err := srv.handleMatchPrompt(context.Background(), callRequest(map[string]interface{}{
		"token_key":   key,
		"requirement": "nothing will match this",
	}))
	if err != nil {
		t.Fatalf("handleMatchPrompt: %v", err)
	}
	if result.IsError {
		t.Fatal("a business miss must not be a tool error")
	}

	var match model.MatchResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &match); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if match.Success {
		t.Errorf("expected miss, got %+v", match)
	}
}

func TestMatchPromptTool_MissingRequirement(t *testing.T) {
	srv, st, tokens := newTestServer(t)
	key := seedToken(t, st, tokens, "alice@example.com")

	result, err := srv.handleMatchPrompt(context.Background(), callRequest(map[string]interface{}{
		"token_key": key,
	}))
	if err != nil {
		t.Fatalf("handleMatchPrompt: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing requirement")
	}
}

func TestMatchPromptTool_InvalidTokenIsToolError(t *testing.T) {
	srv, st, tokens := newTestServer(t)
	key := seedToken(t, st, tokens, "alice@example.com")
	seedRule(t, st, "code review", "code-review", "Review the following code.")
	if err := tokens.Revoke(context.Background(), key, "test"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	result, err := srv.handleMatchPrompt(context.Background(), callRequest(map[string]interface{}{
		"token_key":   key,
		"requirement": "please run a code review on this",
	}))
	if err != nil {
		t.Fatalf("handleMatchPrompt: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for revoked token")
	}
}

func TestListTokensTool(t *testing.T) {
	srv, st, tokens := newTestServer(t)
	ctx := context.Background()

	member := &model.Member{Email: "alice@example.com", Status: model.MemberActive}
	if err := st.CreateMember(ctx, member); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	token, err := tokens.Issue(ctx, member.ID, "mcp test", 0, "test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	result, err := srv.handleListTokens(ctx, callRequest(map[string]interface{}{
		"token_key": token.TokenKey,
	}))
	if err != nil {
		t.Fatalf("handleListTokens: %v", err)
	}

	var resp struct {
		Tokens []service.MaskedToken `json:"tokens"`
		Count  int                   `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Tokens[0].MaskedKey == token.TokenKey {
		t.Error("tool exposed the raw token key")
	}
}

func TestListTokensTool_UnknownKeyIsEmptyList(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleListTokens(context.Background(), callRequest(map[string]interface{}{
		"token_key": "unknown",
	}))
	if err != nil {
		t.Fatalf("handleListTokens: %v", err)
	}
	if result.IsError {
		t.Fatal("unknown key must yield an empty list, not an error")
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("count = %d, want 0", resp.Count)
	}
}

func TestListPromptsTool_UnknownKeyIsToolError(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleListPrompts(context.Background(), callRequest(map[string]interface{}{
		"token_key": "unknown",
	}))
	if err != nil {
		t.Fatalf("handleListPrompts: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown token key")
	}
}

func TestListPromptsTool(t *testing.T) {
	srv, st, tokens := newTestServer(t)
	ctx := context.Background()

	member := &model.Member{Email: "alice@example.com", Status: model.MemberActive}
	if err := st.CreateMember(ctx, member); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	token, err := tokens.Issue(ctx, member.ID, "mcp test", 0, "test")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tpl := seedRule(t, st, "api design", "api-design", "Design a REST API.")
	mapping := &model.TokenPromptMapping{TokenID: token.ID, PromptTemplateID: tpl.ID}
	if err := st.CreateTokenPromptMapping(ctx, mapping); err != nil {
		t.Fatalf("CreateTokenPromptMapping: %v", err)
	}

	result, err := srv.handleListPrompts(ctx, callRequest(map[string]interface{}{
		"token_key": token.TokenKey,
	}))
	if err != nil {
		t.Fatalf("handleListPrompts: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var resp struct {
		Prompts []struct {
			Name    string `json:"name"`
			Content string `json:"content"`
		} `json:"prompts"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if resp.Count != 1 || resp.Prompts[0].Name != "api-design" {
		t.Errorf("prompts = %+v", resp)
	}
}

func TestTemplatesResource_ActiveOnly(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	seedRule(t, st, "api design", "api-design", "Design a REST API.")
	disabled := &model.PromptTemplate{Name: "retired", Content: "old", Version: 1, Status: model.RuleActive}
	if err := st.CreatePromptTemplate(ctx, disabled); err != nil {
		t.Fatalf("CreatePromptTemplate: %v", err)
	}
	if err := st.DisablePromptTemplate(ctx, disabled.ID); err != nil {
		t.Fatalf("DisablePromptTemplate: %v", err)
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "promptgate://templates"
	contents, err := srv.handleTemplatesResource(ctx, req)
	if err != nil {
		t.Fatalf("handleTemplatesResource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}

	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("unexpected contents type %T", contents[0])
	}
	var items []struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(text.Text), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].Name != "api-design" {
		t.Errorf("items = %+v, want only the active template", items)
	}
	// Catalog is metadata only.
	if items[0].Content != "" {
		t.Error("resource leaked template content")
	}
}
