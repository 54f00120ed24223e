package service

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/model"
)

const (
	// DefaultHitTTL caches positive matches. Hits are stable until someone
	// edits a rule, so they live longer than misses.
	DefaultHitTTL = 5 * time.Minute
	// DefaultMissTTL caches negative results. Misses are cheap to re-derive
	// and become stale the moment a new keyword is added, so they expire
	// sooner.
	DefaultMissTTL = 2 * time.Minute
)

// RuleSource is the slice of the store the matcher reads candidates from.
type RuleSource interface {
	ListMatchCandidates(ctx context.Context, locale string) ([]model.KeywordCandidate, error)
}

// Matcher resolves a free-text requirement to a prompt template by keyword
// matching, caching both hits and misses. Matching is first-match-wins over
// candidates ordered longest keyword first; rule edits are not reflected
// until the relevant cache entry's TTL lapses (accepted staleness window).
type Matcher struct {
	rules   RuleSource
	cache   cache.Cache
	hitTTL  time.Duration
	missTTL time.Duration
	logger  *slog.Logger
}

// NewMatcher creates a Matcher. Zero TTLs fall back to the defaults.
func NewMatcher(rules RuleSource, c cache.Cache, hitTTL, missTTL time.Duration, logger *slog.Logger) *Matcher {
	if hitTTL <= 0 {
		hitTTL = DefaultHitTTL
	}
	if missTTL <= 0 {
		missTTL = DefaultMissTTL
	}
	return &Matcher{rules: rules, cache: c, hitTTL: hitTTL, missTTL: missTTL, logger: logger}
}

// Match resolves requirement against the active keyword rules. A blank
// requirement fails before any cache or storage access and is never cached.
func (m *Matcher) Match(ctx context.Context, requirement, locale string, allowRegex bool) model.MatchResult {
	requirement = strings.TrimSpace(requirement)
	if requirement == "" {
		return model.MatchResult{Success: false, Error: "requirement is required"}
	}

	key := matchCacheKey(requirement, locale, allowRegex)
	if v, ok := m.cache.TryGet(key); ok {
		if cached, ok := v.(model.MatchResult); ok {
			return cached
		}
	}

	candidates, err := m.rules.ListMatchCandidates(ctx, locale)
	if err != nil {
		// Store trouble is surfaced, never cached.
		m.logger.Error("load match candidates", "error", err)
		return model.MatchResult{Success: false, Error: "prompt lookup unavailable"}
	}

	lowered := strings.ToLower(requirement)
	for _, c := range candidates {
		if c.IsRegex {
			if !allowRegex {
				continue
			}
			re, err := regexp.Compile("(?i)" + c.Keyword)
			if err != nil {
				m.logger.Warn("invalid keyword pattern skipped", "keyword_prompt_id", c.KeywordPromptID, "error", err)
				continue
			}
			if !re.MatchString(requirement) {
				continue
			}
		} else if !strings.Contains(lowered, strings.ToLower(c.Keyword)) {
			continue
		}

		result := model.MatchResult{
			Success:          true,
			PromptTemplateID: c.PromptTemplateID,
			PromptName:       c.PromptName,
			Content:          c.Content,
			Keyword:          c.Keyword,
		}
		m.cache.Set(key, result, m.hitTTL)
		return result
	}

	miss := model.MatchResult{Success: false, Error: "no matching prompt"}
	m.cache.Set(key, miss, m.missTTL)
	return miss
}

// matchCacheKey builds the composite cache key. The locale component is "*"
// when no filter applies so filtered and unfiltered lookups never collide.
func matchCacheKey(requirement, locale string, allowRegex bool) string {
	if locale == "" {
		locale = "*"
	}
	return locale + ":" + strconv.FormatBool(allowRegex) + ":" + requirement
}
