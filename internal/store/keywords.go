package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/promptgate/promptgate/internal/model"
)

// CreateKeywordPrompt inserts a new keyword rule. The referenced template
// must exist; a duplicate (keyword, locale) surfaces as ErrConflict.
func (s *Store) CreateKeywordPrompt(ctx context.Context, k *model.KeywordPrompt) error {
	now := time.Now().UTC()
	k.CreatedAt = now
	k.UpdatedAt = now
	if k.Status == "" {
		k.Status = model.RuleActive
	}

	const q = `INSERT INTO keyword_prompts (keyword, is_regex, locale, prompt_template_id, status, created_at, updated_at)
		VALUES (:keyword, :is_regex, :locale, :prompt_template_id, :status, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, k)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("keyword %q (%s): %w", k.Keyword, k.Locale, ErrConflict)
		}
		return fmt.Errorf("insert keyword: %w", err)
	}
	k.ID, err = result.LastInsertId()
	if err != nil {
		var id int64
		lookupErr := s.db.GetContext(ctx, &id,
			s.rebind(`SELECT id FROM keyword_prompts WHERE keyword = ? AND locale = ?`),
			k.Keyword, k.Locale)
		if lookupErr != nil {
			return fmt.Errorf("resolve inserted keyword id: %w", lookupErr)
		}
		k.ID = id
	}
	return nil
}

// GetKeywordPrompt fetches a keyword rule by id.
func (s *Store) GetKeywordPrompt(ctx context.Context, id int64) (*model.KeywordPrompt, error) {
	var k model.KeywordPrompt
	err := s.db.GetContext(ctx, &k, s.rebind(`SELECT * FROM keyword_prompts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get keyword: %w", err)
	}
	return &k, nil
}

// ListKeywordPrompts returns all keyword rules ordered by keyword.
func (s *Store) ListKeywordPrompts(ctx context.Context) ([]model.KeywordPrompt, error) {
	var keywords []model.KeywordPrompt
	if err := s.db.SelectContext(ctx, &keywords, `SELECT * FROM keyword_prompts ORDER BY keyword, locale`); err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	return keywords, nil
}

// ListMatchCandidates loads the active keyword rules joined to their active
// templates, longest keyword first. The length ordering is the matching
// tie-break: more specific keywords are tried before general ones, regardless
// of whether the rule is literal or regex. An empty locale argument disables
// the locale filter; otherwise rules for that locale plus locale-neutral
// rules are returned.
func (s *Store) ListMatchCandidates(ctx context.Context, locale string) ([]model.KeywordCandidate, error) {
	q := `SELECT k.id AS keyword_prompt_id, k.keyword, k.is_regex, k.locale,
			t.id AS prompt_template_id, t.name AS prompt_name, t.content
		FROM keyword_prompts k
		JOIN prompt_templates t ON t.id = k.prompt_template_id
		WHERE k.status = ? AND t.status = ?`
	args := []interface{}{model.RuleActive, model.RuleActive}

	if locale != "" {
		q += ` AND (k.locale = ? OR k.locale = '')`
		args = append(args, locale)
	}
	q += ` ORDER BY LENGTH(k.keyword) DESC, k.id`

	var candidates []model.KeywordCandidate
	if err := s.db.SelectContext(ctx, &candidates, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list match candidates: %w", err)
	}
	return candidates, nil
}

// UpdateKeywordPrompt updates a rule's pattern, flags, target template, and
// status. A (keyword, locale) collision with another rule surfaces as
// ErrConflict.
func (s *Store) UpdateKeywordPrompt(ctx context.Context, k *model.KeywordPrompt) error {
	k.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE keyword_prompts
			SET keyword = ?, is_regex = ?, locale = ?, prompt_template_id = ?, status = ?, updated_at = ?
			WHERE id = ?`),
		k.Keyword, k.IsRegex, k.Locale, k.PromptTemplateID, k.Status, k.UpdatedAt, k.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("keyword %q (%s): %w", k.Keyword, k.Locale, ErrConflict)
		}
		return fmt.Errorf("update keyword: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update keyword: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DisableKeywordPrompt soft-disables a keyword rule.
func (s *Store) DisableKeywordPrompt(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE keyword_prompts SET status = ?, updated_at = ? WHERE id = ?`),
		model.RuleDisabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("disable keyword: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable keyword: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
