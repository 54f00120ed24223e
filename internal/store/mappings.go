package store

import (
	"context"
	"fmt"
	"time"

	"github.com/promptgate/promptgate/internal/model"
)

// CreateTokenPromptMapping grants a token visibility into one template. A
// duplicate pair surfaces as ErrConflict.
func (s *Store) CreateTokenPromptMapping(ctx context.Context, m *model.TokenPromptMapping) error {
	m.CreatedAt = time.Now().UTC()
	if m.Status == "" {
		m.Status = model.RuleActive
	}

	const q = `INSERT INTO token_prompt_mappings (token_id, prompt_template_id, status, created_at)
		VALUES (:token_id, :prompt_template_id, :status, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, m)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("token-prompt mapping: %w", ErrConflict)
		}
		return fmt.Errorf("insert mapping: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

// RemoveTokenPromptMapping soft-disables a mapping.
func (s *Store) RemoveTokenPromptMapping(ctx context.Context, tokenID, templateID int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE token_prompt_mappings SET status = ?
			WHERE token_id = ? AND prompt_template_id = ? AND status = ?`),
		model.RuleDisabled, tokenID, templateID, model.RuleActive)
	if err != nil {
		return fmt.Errorf("remove mapping: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove mapping: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPromptsForToken returns the active templates joined through active
// mappings for the given token id.
func (s *Store) ListPromptsForToken(ctx context.Context, tokenID int64) ([]model.PromptTemplate, error) {
	const q = `SELECT t.* FROM prompt_templates t
		JOIN token_prompt_mappings m ON m.prompt_template_id = t.id
		WHERE m.token_id = ? AND m.status = ? AND t.status = ?
		ORDER BY t.name, t.version`

	var templates []model.PromptTemplate
	err := s.db.SelectContext(ctx, &templates, s.rebind(q), tokenID, model.RuleActive, model.RuleActive)
	if err != nil {
		return nil, fmt.Errorf("list prompts for token: %w", err)
	}
	return templates, nil
}
