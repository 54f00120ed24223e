package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/store"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberDisabled = errors.New("member is disabled")
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrTokenExpired   = errors.New("token expired")
)

// Principal is the identity resolved from a validated token. It is what the
// gatekeeper attaches to the request context.
type Principal struct {
	TokenID  int64
	MemberID int64
	IsAdmin  bool
}

// TokenService manages the token lifecycle: Issued is the only initial state,
// Revoked and Expired are terminal. Expiry is lazy: it is derived on the
// validation that first observes a passed deadline and persisted then.
type TokenService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewTokenService(st *store.Store, logger *slog.Logger) *TokenService {
	return &TokenService{store: st, logger: logger}
}

// Issue creates a new token for the given member and returns the raw key.
// lifetime zero means the token never expires by time. The issuing actor is
// recorded for audit.
func (s *TokenService) Issue(ctx context.Context, memberID int64, name string, lifetime time.Duration, actor string) (*model.Token, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("look up member: %w", err)
	}
	if member.Status != model.MemberActive {
		return nil, ErrMemberDisabled
	}

	key, err := generateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("generate token key: %w", err)
	}

	token := &model.Token{
		TokenKey:  key,
		MemberID:  memberID,
		Name:      name,
		Status:    model.TokenIssued,
		IssuedAt:  time.Now().UTC(),
		CreatedBy: actor,
	}
	if lifetime > 0 {
		expires := token.IssuedAt.Add(lifetime)
		token.ExpiresAt = &expires
	}

	if err := s.store.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info("token issued",
		"token_id", token.ID,
		"member_id", memberID,
		"name", name,
		"expires_at", token.ExpiresAt,
		"actor", actor,
	)
	return token, nil
}

// Validate checks a token key and, on success, stamps last_used_at and
// returns the owning principal. The touch is synchronous: the caller must
// not proceed until the persisted state reflects this use. A passed
// ExpiresAt flips the token to Expired before failing, so a later reader
// observes the terminal state even if it skips the deadline check.
func (s *TokenService) Validate(ctx context.Context, tokenKey string) (*Principal, error) {
	token, err := s.store.GetTokenByKey(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("look up token: %w", err)
	}

	switch token.Status {
	case model.TokenRevoked:
		return nil, ErrTokenRevoked
	case model.TokenExpired:
		return nil, ErrTokenExpired
	}

	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		if err := s.store.MarkTokenExpired(ctx, token.ID); err != nil {
			return nil, fmt.Errorf("expire token: %w", err)
		}
		s.logger.Info("token lazily expired", "token_id", token.ID, "expired_at", token.ExpiresAt)
		return nil, ErrTokenExpired
	}

	if err := s.store.TouchToken(ctx, token.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("touch token: %w", err)
	}

	member, err := s.store.GetMember(ctx, token.MemberID)
	if err != nil {
		return nil, fmt.Errorf("look up token owner: %w", err)
	}

	return &Principal{
		TokenID:  token.ID,
		MemberID: member.ID,
		IsAdmin:  member.IsAdmin,
	}, nil
}

// Revoke transitions a token to Revoked. Revoking an already-revoked token
// succeeds without touching the original revocation timestamp.
func (s *TokenService) Revoke(ctx context.Context, tokenKey, actor string) error {
	if err := s.store.RevokeToken(ctx, tokenKey); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	s.logger.Info("token revoked", "token_key", model.MaskKey(tokenKey), "actor", actor)
	return nil
}

// DisableMember soft-disables a member and revokes all of their issued
// tokens in a single transaction.
func (s *TokenService) DisableMember(ctx context.Context, memberID int64, actor string) error {
	if err := s.store.DisableMember(ctx, memberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	s.logger.Info("member disabled, tokens revoked", "member_id", memberID, "actor", actor)
	return nil
}

// generateTokenKey returns the base64 URL encoding of 32 bytes from
// crypto/rand. Uniqueness is ultimately guaranteed by the token_key index.
func generateTokenKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
