package store

import (
	"fmt"
	"strings"
)

// dialect abstracts the handful of DDL differences between the supported
// drivers: auto-increment primary keys, boolean columns, and timestamps.
type dialect struct {
	name    string
	pk      string // auto-increment bigint primary key
	boolCol string
	timeCol string
}

func dialectFor(driver string) dialect {
	switch driver {
	case "postgres":
		return dialect{name: "postgres", pk: "BIGSERIAL PRIMARY KEY", boolCol: "BOOLEAN", timeCol: "TIMESTAMPTZ"}
	case "mysql":
		return dialect{name: "mysql", pk: "BIGINT PRIMARY KEY AUTO_INCREMENT", boolCol: "BOOLEAN", timeCol: "DATETIME(6)"}
	default:
		return dialect{name: "sqlite", pk: "INTEGER PRIMARY KEY AUTOINCREMENT", boolCol: "INTEGER", timeCol: "DATETIME"}
	}
}

func (s *Store) migrate() error {
	d := s.dialect

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id ` + d.pk + `,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			is_admin ` + d.boolCol + ` NOT NULL DEFAULT FALSE,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at ` + d.timeCol + ` NOT NULL,
			updated_at ` + d.timeCol + ` NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tokens (
			id ` + d.pk + `,
			token_key VARCHAR(64) UNIQUE NOT NULL,
			member_id BIGINT NOT NULL REFERENCES members(id),
			name VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'issued',
			issued_at ` + d.timeCol + ` NOT NULL,
			expires_at ` + d.timeCol + `,
			revoked_at ` + d.timeCol + `,
			last_used_at ` + d.timeCol + `,
			created_by VARCHAR(255) NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS prompt_templates (
			id ` + d.pk + `,
			name VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			locale VARCHAR(32) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at ` + d.timeCol + ` NOT NULL,
			updated_at ` + d.timeCol + ` NOT NULL,
			CONSTRAINT uq_prompt_templates_identity UNIQUE (name, version, locale)
		)`,

		`CREATE TABLE IF NOT EXISTS keyword_prompts (
			id ` + d.pk + `,
			keyword VARCHAR(255) NOT NULL,
			is_regex ` + d.boolCol + ` NOT NULL DEFAULT FALSE,
			locale VARCHAR(32) NOT NULL DEFAULT '',
			prompt_template_id BIGINT NOT NULL REFERENCES prompt_templates(id),
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at ` + d.timeCol + ` NOT NULL,
			updated_at ` + d.timeCol + ` NOT NULL,
			CONSTRAINT uq_keyword_prompts_keyword UNIQUE (keyword, locale)
		)`,

		`CREATE TABLE IF NOT EXISTS token_prompt_mappings (
			id ` + d.pk + `,
			token_id BIGINT NOT NULL REFERENCES tokens(id),
			prompt_template_id BIGINT NOT NULL REFERENCES prompt_templates(id),
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at ` + d.timeCol + ` NOT NULL,
			CONSTRAINT uq_token_prompt_mappings_pair UNIQUE (token_id, prompt_template_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tokens_member_id ON tokens(member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_keyword_prompts_locale ON keyword_prompts(locale)`,
		`CREATE INDEX IF NOT EXISTS idx_token_prompt_mappings_token ON token_prompt_mappings(token_id)`,
	}

	for _, m := range migrations {
		// MySQL has no CREATE INDEX IF NOT EXISTS; treat duplicates as no-ops
		// so migrations stay idempotent across all dialects.
		if _, err := s.db.Exec(m); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
