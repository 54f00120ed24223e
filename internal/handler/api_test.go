package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/server/middleware"
)

func tokenHeader(key string) map[string]string {
	return map[string]string{middleware.TokenHeader: key}
}

// ---------------------------------------------------------------------------
// Prompt matching
// ---------------------------------------------------------------------------

func TestMatch_Hit(t *testing.T) {
	env := newTestEnv(t)
	tpl := env.seedTemplate(t, "code-review", "Review the following code carefully.")
	keyword := &model.KeywordPrompt{
		Keyword:          "code review",
		PromptTemplateID: tpl.ID,
		Status:           model.RuleActive,
	}
	if err := env.store.CreateKeywordPrompt(context.Background(), keyword); err != nil {
		t.Fatalf("CreateKeywordPrompt: %v", err)
	}

	body := toJSON(t, map[string]interface{}{
		"requirement": "Please do a Code Review of my PR",
	})
	rr := env.do(t, "POST", "/api/v1/prompt/match", body)
	assertStatus(t, rr, http.StatusOK)

	var resp model.MatchResult
	decodeJSON(t, rr, &resp)
	if !resp.Success {
		t.Fatalf("expected hit, got %+v", resp)
	}
	if resp.PromptTemplateID != tpl.ID || resp.Content != tpl.Content {
		t.Errorf("unexpected match payload: %+v", resp)
	}
	if resp.Keyword != "code review" {
		t.Errorf("keyword = %q, want %q", resp.Keyword, "code review")
	}
}

func TestMatch_Miss(t *testing.T) {
	env := newTestEnv(t)

	body := toJSON(t, map[string]interface{}{"requirement": "nothing matches this"})
	rr := env.do(t, "POST", "/api/v1/prompt/match", body)
	// A business miss is a 200 with success=false, not an HTTP error.
	assertStatus(t, rr, http.StatusOK)

	var resp model.MatchResult
	decodeJSON(t, rr, &resp)
	if resp.Success {
		t.Errorf("expected miss, got %+v", resp)
	}
	if resp.Error == "" {
		t.Error("expected error message on miss")
	}
}

func TestMatch_BlankRequirement(t *testing.T) {
	env := newTestEnv(t)

	body := toJSON(t, map[string]interface{}{"requirement": "   "})
	rr := env.do(t, "POST", "/api/v1/prompt/match", body)
	assertStatus(t, rr, http.StatusBadRequest)
}

// ---------------------------------------------------------------------------
// Self-service token and prompt listing
// ---------------------------------------------------------------------------

func TestListOwnTokens(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedMember(t, "alice@example.com")
	first := env.seedToken(t, member.ID)
	env.seedToken(t, member.ID)

	rr := env.do(t, "GET", "/api/v1/tokens", nil, tokenHeader(first.TokenKey))
	assertStatus(t, rr, http.StatusOK)

	var list struct {
		Resource []struct {
			MaskedKey string `json:"masked_key"`
		} `json:"resource"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	decodeJSON(t, rr, &list)
	if list.Meta.Count != 2 {
		t.Fatalf("count = %d, want 2", list.Meta.Count)
	}
	for _, res := range list.Resource {
		if res.MaskedKey == first.TokenKey {
			t.Error("listing exposed a raw token key")
		}
	}
}

func TestListOwnTokens_UnknownKeyIsEmptyList(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/tokens", nil, tokenHeader("unknown-key"))
	assertStatus(t, rr, http.StatusOK)

	var list struct {
		Resource []interface{} `json:"resource"`
	}
	decodeJSON(t, rr, &list)
	if len(list.Resource) != 0 {
		t.Errorf("resource count = %d, want 0", len(list.Resource))
	}
}

func TestListOwnPrompts(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedMember(t, "alice@example.com")
	token := env.seedToken(t, member.ID)
	tpl := env.seedTemplate(t, "api-design", "Design a REST API.")

	mapping := &model.TokenPromptMapping{TokenID: token.ID, PromptTemplateID: tpl.ID}
	if err := env.store.CreateTokenPromptMapping(context.Background(), mapping); err != nil {
		t.Fatalf("CreateTokenPromptMapping: %v", err)
	}

	rr := env.do(t, "GET", "/api/v1/prompts", nil, tokenHeader(token.TokenKey))
	assertStatus(t, rr, http.StatusOK)

	var list struct {
		Resource []struct {
			Name    string `json:"name"`
			Content string `json:"content"`
		} `json:"resource"`
	}
	decodeJSON(t, rr, &list)
	if len(list.Resource) != 1 {
		t.Fatalf("prompt count = %d, want 1", len(list.Resource))
	}
	if list.Resource[0].Name != "api-design" {
		t.Errorf("name = %q", list.Resource[0].Name)
	}
}

// Unlike the token listing, the prompt lookup rejects a dead key outright.
func TestListOwnPrompts_UnknownKeyIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/prompts", nil, tokenHeader("unknown-key"))
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestListOwnPrompts_RevokedKeyIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedMember(t, "alice@example.com")
	token := env.seedToken(t, member.ID)
	if err := env.store.RevokeToken(context.Background(), token.TokenKey); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	rr := env.do(t, "GET", "/api/v1/prompts", nil, tokenHeader(token.TokenKey))
	assertStatus(t, rr, http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedMember(t, "alice@example.com")

	body := toJSON(t, map[string]string{
		"email":    "alice@example.com",
		"password": testPassword,
	})
	rr := env.do(t, "POST", "/auth/session", body)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		SessionToken string `json:"session_token"`
		TokenType    string `json:"token_type"`
		APIToken     string `json:"api_token"`
		MemberID     int64  `json:"member_id"`
	}
	decodeJSON(t, rr, &resp)
	if resp.SessionToken == "" {
		t.Error("expected non-empty session_token")
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if resp.MemberID != member.ID {
		t.Errorf("member_id = %d, want %d", resp.MemberID, member.ID)
	}

	// The issued API token must pass the gate it was made for.
	rr = env.do(t, "GET", "/api/v1/tokens", nil, tokenHeader(resp.APIToken))
	assertStatus(t, rr, http.StatusOK)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedMember(t, "alice@example.com")

	body := toJSON(t, map[string]string{
		"email":    "alice@example.com",
		"password": "not-the-password",
	})
	rr := env.do(t, "POST", "/auth/session", body)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestLogin_DisabledMember(t *testing.T) {
	env := newTestEnv(t)
	member := env.seedMember(t, "alice@example.com")
	if err := env.store.DisableMember(context.Background(), member.ID); err != nil {
		t.Fatalf("DisableMember: %v", err)
	}

	body := toJSON(t, map[string]string{
		"email":    "alice@example.com",
		"password": testPassword,
	})
	rr := env.do(t, "POST", "/auth/session", body)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "DELETE", "/auth/session", nil)
	assertStatus(t, rr, http.StatusOK)
}
