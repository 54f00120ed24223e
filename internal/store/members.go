package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/promptgate/promptgate/internal/model"
)

// CreateMember inserts a new member. ID, CreatedAt, and UpdatedAt are
// populated on success. A duplicate email surfaces as ErrConflict.
func (s *Store) CreateMember(ctx context.Context, m *model.Member) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = model.MemberActive
	}

	const q = `INSERT INTO members (email, name, password_hash, is_admin, status, created_at, updated_at)
		VALUES (:email, :name, :password_hash, :is_admin, :status, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, m)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %q: %w", m.Email, ErrConflict)
		}
		return fmt.Errorf("insert member: %w", err)
	}
	m.ID, err = result.LastInsertId()
	if err != nil {
		// Postgres does not support LastInsertId; fall back to a lookup.
		existing, lookupErr := s.GetMemberByEmail(ctx, m.Email)
		if lookupErr != nil {
			return fmt.Errorf("resolve inserted member id: %w", lookupErr)
		}
		m.ID = existing.ID
	}
	return nil
}

// GetMember fetches a member by id.
func (s *Store) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	var m model.Member
	err := s.db.GetContext(ctx, &m, s.rebind(`SELECT * FROM members WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// GetMemberByEmail fetches a member by email.
func (s *Store) GetMemberByEmail(ctx context.Context, email string) (*model.Member, error) {
	var m model.Member
	err := s.db.GetContext(ctx, &m, s.rebind(`SELECT * FROM members WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return &m, nil
}

// ListMembers returns all members ordered by id.
func (s *Store) ListMembers(ctx context.Context) ([]model.Member, error) {
	var members []model.Member
	if err := s.db.SelectContext(ctx, &members, `SELECT * FROM members ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// DisableMember soft-disables a member and revokes all of their issued tokens
// in the same transaction. Either both changes persist or neither does.
func (s *Store) DisableMember(ctx context.Context, id int64) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin disable member: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE members SET status = ?, updated_at = ? WHERE id = ?`),
		model.MemberDisabled, now, id)
	if err != nil {
		return fmt.Errorf("disable member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable member: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		s.rebind(`UPDATE tokens SET status = ?, revoked_at = ?
			WHERE member_id = ? AND status = ?`),
		model.TokenRevoked, now, id, model.TokenIssued)
	if err != nil {
		return fmt.Errorf("revoke member tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit disable member: %w", err)
	}
	return nil
}
