package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/service"
	"github.com/promptgate/promptgate/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *store.Store
	tokenSvc *service.TokenService
	router   chi.Router
}

// newTestEnv creates a fresh environment with an in-memory store and a Chi
// router with all routes mounted (no gatekeeper middleware; handlers are
// exercised directly).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokenSvc := service.NewTokenService(st, logger)
	authSvc := service.NewAuthService(st, testJWTSecret)
	promptSvc := service.NewPromptService(st)
	matcher := service.NewMatcher(st, cache.NewMemory(0), 0, 0, logger)

	matchHandler := NewMatchHandler(matcher)
	tokenHandler := NewTokenHandler(promptSvc)
	sessionHandler := NewSessionHandler(authSvc, tokenSvc, time.Hour)
	sysHandler := NewSystemHandler(st, tokenSvc)

	r := chi.NewRouter()
	r.Post("/auth/session", sessionHandler.Login)
	r.Delete("/auth/session", sessionHandler.Logout)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/prompt/match", matchHandler.Match)
		r.Get("/tokens", tokenHandler.ListOwnTokens)
		r.Get("/prompts", tokenHandler.ListOwnPrompts)
		r.Route("/system", func(r chi.Router) {
			r.Get("/member", sysHandler.ListMembers)
			r.Post("/member", sysHandler.CreateMember)
			r.Delete("/member/{memberId}", sysHandler.DisableMember)

			r.Get("/token", sysHandler.ListTokens)
			r.Post("/token", sysHandler.IssueToken)
			r.Delete("/token/{tokenKey}", sysHandler.RevokeToken)
			r.Post("/token/{tokenKey}/prompts", sysHandler.CreateMapping)
			r.Delete("/token/{tokenKey}/prompts/{templateId}", sysHandler.RemoveMapping)

			r.Get("/keyword", sysHandler.ListKeywords)
			r.Post("/keyword", sysHandler.CreateKeyword)
			r.Put("/keyword/{keywordId}", sysHandler.UpdateKeyword)
			r.Delete("/keyword/{keywordId}", sysHandler.DisableKeyword)

			r.Get("/template", sysHandler.ListTemplates)
			r.Post("/template", sysHandler.CreateTemplate)
			r.Put("/template/{templateId}", sysHandler.UpdateTemplate)
			r.Delete("/template/{templateId}", sysHandler.DisableTemplate)
		})
	})

	return &testEnv{store: st, tokenSvc: tokenSvc, router: r}
}

// seedMember creates an active member and returns it.
func (e *testEnv) seedMember(t *testing.T, email string) *model.Member {
	t.Helper()
	m := &model.Member{
		Email:        email,
		Name:         "Test Member",
		PasswordHash: service.HashPassword(testPassword),
		Status:       model.MemberActive,
	}
	if err := e.store.CreateMember(context.Background(), m); err != nil {
		t.Fatalf("seedMember: %v", err)
	}
	return m
}

// seedToken issues a live token for the member and returns it with its raw key.
func (e *testEnv) seedToken(t *testing.T, memberID int64) *model.Token {
	t.Helper()
	token, err := e.tokenSvc.Issue(context.Background(), memberID, "test token", 0, "test")
	if err != nil {
		t.Fatalf("seedToken: %v", err)
	}
	return token
}

// seedTemplate creates an active prompt template and returns it.
func (e *testEnv) seedTemplate(t *testing.T, name, content string) *model.PromptTemplate {
	t.Helper()
	tpl := &model.PromptTemplate{
		Name:    name,
		Content: content,
		Version: 1,
		Status:  model.RuleActive,
	}
	if err := e.store.CreatePromptTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("seedTemplate: %v", err)
	}
	return tpl
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
