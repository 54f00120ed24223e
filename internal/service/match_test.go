package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/model"
)

// countingRules serves a fixed candidate list and counts store round-trips,
// so tests can assert cache hits bypass storage entirely.
type countingRules struct {
	candidates []model.KeywordCandidate
	calls      int
}

func (c *countingRules) ListMatchCandidates(ctx context.Context, locale string) ([]model.KeywordCandidate, error) {
	c.calls++
	if locale == "" {
		return c.candidates, nil
	}
	var filtered []model.KeywordCandidate
	for _, cand := range c.candidates {
		if cand.Locale == locale || cand.Locale == "" {
			filtered = append(filtered, cand)
		}
	}
	return filtered, nil
}

func newTestMatcher(t *testing.T, rules *countingRules) *Matcher {
	t.Helper()
	c := cache.NewMemory(0)
	t.Cleanup(c.Close)
	return NewMatcher(rules, c, 0, 0, testLogger())
}

// candidatesByLength mimics the store's longest-keyword-first ordering.
func candidatesByLength(cands ...model.KeywordCandidate) []model.KeywordCandidate {
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			if len(cands[j].Keyword) > len(cands[i].Keyword) {
				cands[i], cands[j] = cands[j], cands[i]
			}
		}
	}
	return cands
}

func TestMatchLiteralCaseInsensitive(t *testing.T) {
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: "hello", PromptTemplateID: 10, PromptName: "greeting", Content: "Hi!"},
	)}
	m := newTestMatcher(t, rules)

	result := m.Match(context.Background(), "well HELLO there", "", false)
	if !result.Success {
		t.Fatalf("expected match, got error %q", result.Error)
	}
	if result.PromptTemplateID != 10 || result.Keyword != "hello" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestMatchLongestKeywordWins(t *testing.T) {
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: "hi", PromptTemplateID: 10, PromptName: "short"},
		model.KeywordCandidate{KeywordPromptID: 2, Keyword: "hi there", PromptTemplateID: 20, PromptName: "long"},
	)}
	m := newTestMatcher(t, rules)

	result := m.Match(context.Background(), "hi there now", "", false)
	if !result.Success {
		t.Fatalf("expected match, got error %q", result.Error)
	}
	if result.Keyword != "hi there" || result.PromptTemplateID != 20 {
		t.Errorf("got keyword %q (template %d), want the longer rule to win",
			result.Keyword, result.PromptTemplateID)
	}
}

func TestMatchRegexGating(t *testing.T) {
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: "hello", PromptTemplateID: 10, PromptName: "greeting"},
		model.KeywordCandidate{KeywordPromptID: 2, Keyword: `\d{3}-\d{4}`, IsRegex: true, PromptTemplateID: 20, PromptName: "phone"},
	)}
	m := newTestMatcher(t, rules)
	ctx := context.Background()

	withRegex := m.Match(ctx, "call me at 123-4567", "", true)
	if !withRegex.Success || withRegex.PromptTemplateID != 20 {
		t.Errorf("allowRegex=true: got %+v, want the regex template", withRegex)
	}

	withoutRegex := m.Match(ctx, "call me at 123-4567", "", false)
	if withoutRegex.Success {
		t.Errorf("allowRegex=false: got %+v, want no match", withoutRegex)
	}
	if withoutRegex.Error != "no matching prompt" {
		t.Errorf("miss error = %q, want \"no matching prompt\"", withoutRegex.Error)
	}
}

func TestMatchRegexCaseInsensitive(t *testing.T) {
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: `deploy\s+now`, IsRegex: true, PromptTemplateID: 30, PromptName: "deploy"},
	)}
	m := newTestMatcher(t, rules)

	result := m.Match(context.Background(), "DEPLOY   NOW please", "", true)
	if !result.Success {
		t.Errorf("expected case-insensitive regex match, got %+v", result)
	}
}

func TestMatchInvalidPatternSkipped(t *testing.T) {
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: `((broken`, IsRegex: true, PromptTemplateID: 10},
		model.KeywordCandidate{KeywordPromptID: 2, Keyword: "ok", PromptTemplateID: 20, PromptName: "fallback"},
	)}
	m := newTestMatcher(t, rules)

	result := m.Match(context.Background(), "that's ok", "", true)
	if !result.Success || result.PromptTemplateID != 20 {
		t.Errorf("invalid pattern should be skipped, got %+v", result)
	}
}

func TestMatchCacheIdempotence(t *testing.T) {
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: "hello", PromptTemplateID: 10, PromptName: "greeting", Content: "Hi!"},
	)}
	m := newTestMatcher(t, rules)
	ctx := context.Background()

	first := m.Match(ctx, "hello world", "", false)
	second := m.Match(ctx, "hello world", "", false)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	if rules.calls != 1 {
		t.Errorf("store queried %d times, want 1 (second call must be served from cache)", rules.calls)
	}
}

func TestMatchMissIsCached(t *testing.T) {
	rules := &countingRules{}
	m := newTestMatcher(t, rules)
	ctx := context.Background()

	first := m.Match(ctx, "nothing matches this", "", false)
	second := m.Match(ctx, "nothing matches this", "", false)

	if first.Success || second.Success {
		t.Fatal("expected misses")
	}
	if rules.calls != 1 {
		t.Errorf("store queried %d times, want 1 (misses are cached too)", rules.calls)
	}
}

func TestMatchBlankRequirementNeverCached(t *testing.T) {
	rules := &countingRules{}
	c := cache.NewMemory(0)
	t.Cleanup(c.Close)
	m := NewMatcher(rules, c, 0, 0, testLogger())

	for _, req := range []string{"", "   ", "\t\n"} {
		result := m.Match(context.Background(), req, "", false)
		if result.Success {
			t.Errorf("Match(%q) succeeded, want validation failure", req)
		}
		if result.Error != "requirement is required" {
			t.Errorf("Match(%q) error = %q", req, result.Error)
		}
	}
	if rules.calls != 0 {
		t.Errorf("blank requirement hit storage %d times, want 0", rules.calls)
	}
	if c.Len() != 0 {
		t.Errorf("blank requirement cached %d entries, want 0", c.Len())
	}
}

func TestMatchCacheKeySeparatesInputs(t *testing.T) {
	// The same requirement under different locale / regex settings must not
	// collide in the cache.
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: `\d+`, IsRegex: true, PromptTemplateID: 10, PromptName: "digits"},
	)}
	m := newTestMatcher(t, rules)
	ctx := context.Background()

	allowed := m.Match(ctx, "version 42", "", true)
	denied := m.Match(ctx, "version 42", "", false)

	if !allowed.Success {
		t.Errorf("allowRegex=true: %+v", allowed)
	}
	if denied.Success {
		t.Errorf("allowRegex=false must not reuse the regex-allowed cache entry: %+v", denied)
	}
}

func TestMatchStaleCacheWindow(t *testing.T) {
	// Rule edits are invisible until the cached entry lapses; this is the
	// documented availability trade-off, not a bug.
	rules := &countingRules{candidates: candidatesByLength(
		model.KeywordCandidate{KeywordPromptID: 1, Keyword: "hello", PromptTemplateID: 10, PromptName: "old"},
	)}
	c := cache.NewMemory(0)
	t.Cleanup(c.Close)
	m := NewMatcher(rules, c, 30*time.Millisecond, 30*time.Millisecond, testLogger())
	ctx := context.Background()

	first := m.Match(ctx, "hello", "", false)
	if first.PromptName != "old" {
		t.Fatalf("expected old template, got %+v", first)
	}

	// The rule now points at a new template, but the cached result persists.
	rules.candidates[0].PromptName = "new"
	stale := m.Match(ctx, "hello", "", false)
	if stale.PromptName != "old" {
		t.Errorf("expected stale cached result inside the TTL window, got %+v", stale)
	}

	time.Sleep(40 * time.Millisecond)
	fresh := m.Match(ctx, "hello", "", false)
	if fresh.PromptName != "new" {
		t.Errorf("expected fresh result after TTL, got %+v", fresh)
	}
}
