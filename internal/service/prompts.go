package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/store"
)

// ErrTokenInactive is the single failure GetPromptsForToken reports for a
// missing, revoked, or expired token; finer distinctions would let a caller
// probe key validity through this endpoint.
var ErrTokenInactive = errors.New("token not found or inactive")

// MaskedToken is the display shape for token listings: the raw key never
// leaves the service, only its mask.
type MaskedToken struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	MaskedKey  string            `json:"masked_key"`
	Status     model.TokenStatus `json:"status"`
	IssuedAt   time.Time         `json:"issued_at"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	LastUsedAt *time.Time        `json:"last_used_at,omitempty"`
}

// PromptService is the token-scoped lookup layer: which tokens does the
// presenter of a key own, and which prompt templates can that key see.
type PromptService struct {
	store *store.Store
}

func NewPromptService(st *store.Store) *PromptService {
	return &PromptService{store: st}
}

// ListTokensForOwner resolves the owner of tokenKey and returns all of that
// member's issued tokens with masked keys. Only the seed token's existence
// is needed to resolve ownership; its own status is irrelevant here. An
// unknown key yields an empty successful list rather than an error, so this
// path cannot be used to probe whether a key exists.
func (s *PromptService) ListTokensForOwner(ctx context.Context, tokenKey string) ([]MaskedToken, error) {
	seed, err := s.store.GetTokenByKey(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []MaskedToken{}, nil
		}
		return nil, fmt.Errorf("resolve token owner: %w", err)
	}

	tokens, err := s.store.ListTokensForMember(ctx, seed.MemberID, model.TokenIssued)
	if err != nil {
		return nil, err
	}

	masked := make([]MaskedToken, 0, len(tokens))
	for i := range tokens {
		t := &tokens[i]
		masked = append(masked, MaskedToken{
			ID:         t.ID,
			Name:       t.Name,
			MaskedKey:  t.MaskedKey(),
			Status:     t.Status,
			IssuedAt:   t.IssuedAt,
			ExpiresAt:  t.ExpiresAt,
			LastUsedAt: t.LastUsedAt,
		})
	}
	return masked, nil
}

// GetPromptsForToken returns the active templates mapped to the given token.
// Unlike ListTokensForOwner, this requires the presented token itself to be
// issued and unexpired; anything else fails with ErrTokenInactive. The two
// behaviors are deliberately asymmetric: listing never confirms existence,
// prompt access does.
func (s *PromptService) GetPromptsForToken(ctx context.Context, tokenKey string) ([]model.PromptTemplate, error) {
	token, err := s.store.GetTokenByKey(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenInactive
		}
		return nil, fmt.Errorf("look up token: %w", err)
	}
	if token.Status != model.TokenIssued {
		return nil, ErrTokenInactive
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		// The same lazy-expiry notion Validate applies.
		if err := s.store.MarkTokenExpired(ctx, token.ID); err != nil {
			return nil, fmt.Errorf("expire token: %w", err)
		}
		return nil, ErrTokenInactive
	}

	return s.store.ListPromptsForToken(ctx, token.ID)
}
