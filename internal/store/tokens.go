package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/promptgate/promptgate/internal/model"
)

// CreateToken inserts a new token row. ID and IssuedAt are populated on
// success. A duplicate token key surfaces as ErrConflict; with 32 random
// bytes behind every key that indicates a generation bug, not bad luck.
func (s *Store) CreateToken(ctx context.Context, t *model.Token) error {
	if t.IssuedAt.IsZero() {
		t.IssuedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = model.TokenIssued
	}

	const q = `INSERT INTO tokens
		(token_key, member_id, name, status, issued_at, expires_at, revoked_at, last_used_at, created_by)
		VALUES
		(:token_key, :member_id, :name, :status, :issued_at, :expires_at, :revoked_at, :last_used_at, :created_by)`

	result, err := s.db.NamedExecContext(ctx, q, t)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("token key: %w", ErrConflict)
		}
		return fmt.Errorf("insert token: %w", err)
	}
	t.ID, err = result.LastInsertId()
	if err != nil {
		existing, lookupErr := s.GetTokenByKey(ctx, t.TokenKey)
		if lookupErr != nil {
			return fmt.Errorf("resolve inserted token id: %w", lookupErr)
		}
		t.ID = existing.ID
	}
	return nil
}

// GetTokenByKey fetches a token by its opaque key, regardless of status.
func (s *Store) GetTokenByKey(ctx context.Context, tokenKey string) (*model.Token, error) {
	var t model.Token
	err := s.db.GetContext(ctx, &t, s.rebind(`SELECT * FROM tokens WHERE token_key = ?`), tokenKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// ListTokensForMember returns all of a member's tokens in the given status,
// newest first.
func (s *Store) ListTokensForMember(ctx context.Context, memberID int64, status model.TokenStatus) ([]model.Token, error) {
	var tokens []model.Token
	err := s.db.SelectContext(ctx, &tokens,
		s.rebind(`SELECT * FROM tokens WHERE member_id = ? AND status = ? ORDER BY issued_at DESC, id DESC`),
		memberID, status)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// ListTokens returns all tokens, newest first.
func (s *Store) ListTokens(ctx context.Context) ([]model.Token, error) {
	var tokens []model.Token
	if err := s.db.SelectContext(ctx, &tokens, `SELECT * FROM tokens ORDER BY issued_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// MarkTokenExpired flips a token to Expired. The status guard keeps the
// transition idempotent when two validations race on the same expiry.
func (s *Store) MarkTokenExpired(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE tokens SET status = ? WHERE id = ? AND status = ?`),
		model.TokenExpired, id, model.TokenIssued)
	if err != nil {
		return fmt.Errorf("mark token expired: %w", err)
	}
	return nil
}

// TouchToken stamps a token's last_used_at. Concurrent touches on the same
// token are last-writer-wins; nothing depends on their ordering.
func (s *Store) TouchToken(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE tokens SET last_used_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch token: %w", err)
	}
	return nil
}

// RevokeToken flips a token to Revoked and stamps revoked_at. Returns
// ErrNotFound if no row has the key. Revoking an already-revoked token is a
// no-op: the original revoked_at is preserved.
func (s *Store) RevokeToken(ctx context.Context, tokenKey string) error {
	t, err := s.GetTokenByKey(ctx, tokenKey)
	if err != nil {
		return err
	}
	if t.Status == model.TokenRevoked {
		return nil
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		s.rebind(`UPDATE tokens SET status = ?, revoked_at = ? WHERE id = ? AND status <> ?`),
		model.TokenRevoked, now, t.ID, model.TokenRevoked)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
