package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/promptgate/promptgate/internal/model"
)

// CreatePromptTemplate inserts a new template. A duplicate
// (name, version, locale) surfaces as ErrConflict.
func (s *Store) CreatePromptTemplate(ctx context.Context, t *model.PromptTemplate) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Version == 0 {
		t.Version = 1
	}
	if t.Status == "" {
		t.Status = model.RuleActive
	}

	const q = `INSERT INTO prompt_templates (name, content, version, locale, status, created_at, updated_at)
		VALUES (:name, :content, :version, :locale, :status, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, t)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("template %q v%d (%s): %w", t.Name, t.Version, t.Locale, ErrConflict)
		}
		return fmt.Errorf("insert template: %w", err)
	}
	t.ID, err = result.LastInsertId()
	if err != nil {
		var id int64
		lookupErr := s.db.GetContext(ctx, &id,
			s.rebind(`SELECT id FROM prompt_templates WHERE name = ? AND version = ? AND locale = ?`),
			t.Name, t.Version, t.Locale)
		if lookupErr != nil {
			return fmt.Errorf("resolve inserted template id: %w", lookupErr)
		}
		t.ID = id
	}
	return nil
}

// GetPromptTemplate fetches a template by id.
func (s *Store) GetPromptTemplate(ctx context.Context, id int64) (*model.PromptTemplate, error) {
	var t model.PromptTemplate
	err := s.db.GetContext(ctx, &t, s.rebind(`SELECT * FROM prompt_templates WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

// ListPromptTemplates returns all templates ordered by name, version.
func (s *Store) ListPromptTemplates(ctx context.Context) ([]model.PromptTemplate, error) {
	var templates []model.PromptTemplate
	if err := s.db.SelectContext(ctx, &templates, `SELECT * FROM prompt_templates ORDER BY name, version`); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// UpdatePromptTemplate updates a template's content and status. Identity
// fields (name, version, locale) are immutable; publish a new version instead.
func (s *Store) UpdatePromptTemplate(ctx context.Context, t *model.PromptTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE prompt_templates SET content = ?, status = ?, updated_at = ? WHERE id = ?`),
		t.Content, t.Status, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DisablePromptTemplate soft-disables a template. Rows are never deleted
// while keyword rules or mappings may reference them.
func (s *Store) DisablePromptTemplate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE prompt_templates SET status = ?, updated_at = ? WHERE id = ?`),
		model.RuleDisabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("disable template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable template: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
