package model

import "time"

// RuleStatus is the activity flag shared by keyword rules, prompt templates,
// and token-prompt mappings. Disabled rows stay in the store for audit but are
// invisible to matching and lookup.
type RuleStatus string

const (
	RuleActive   RuleStatus = "active"
	RuleDisabled RuleStatus = "disabled"
)

// KeywordPrompt maps a keyword (a literal substring or, when IsRegex is set,
// a regular expression pattern) to one prompt template. (Keyword, Locale) is
// unique; an empty Locale means the rule applies to every locale.
type KeywordPrompt struct {
	ID               int64      `json:"id" db:"id"`
	Keyword          string     `json:"keyword" db:"keyword"`
	IsRegex          bool       `json:"is_regex" db:"is_regex"`
	Locale           string     `json:"locale" db:"locale"`
	PromptTemplateID int64      `json:"prompt_template_id" db:"prompt_template_id"`
	Status           RuleStatus `json:"status" db:"status"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// PromptTemplate is a versioned, named block of prompt text. (Name, Version,
// Locale) is unique.
type PromptTemplate struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Content   string     `json:"content" db:"content"`
	Version   int        `json:"version" db:"version"`
	Locale    string     `json:"locale" db:"locale"`
	Status    RuleStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TokenPromptMapping grants a token visibility into one prompt template.
// (TokenID, PromptTemplateID) is unique. Mappings are created and removed
// independently of the token's own lifecycle.
type TokenPromptMapping struct {
	ID               int64      `json:"id" db:"id"`
	TokenID          int64      `json:"token_id" db:"token_id"`
	PromptTemplateID int64      `json:"prompt_template_id" db:"prompt_template_id"`
	Status           RuleStatus `json:"status" db:"status"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// KeywordCandidate is a keyword rule joined to its template, as loaded for
// matching. Candidates are ordered by keyword length descending so longer,
// more specific keywords win over shorter ones.
type KeywordCandidate struct {
	KeywordPromptID  int64  `db:"keyword_prompt_id"`
	Keyword          string `db:"keyword"`
	IsRegex          bool   `db:"is_regex"`
	Locale           string `db:"locale"`
	PromptTemplateID int64  `db:"prompt_template_id"`
	PromptName       string `db:"prompt_name"`
	Content          string `db:"content"`
}

// MatchResult is the outcome of a keyword match, positive or negative. Both
// shapes are cached under the same key space; Success distinguishes them.
type MatchResult struct {
	Success          bool   `json:"success"`
	PromptTemplateID int64  `json:"promptTemplateId,omitempty"`
	PromptName       string `json:"promptName,omitempty"`
	Content          string `json:"content,omitempty"`
	Keyword          string `json:"keyword,omitempty"`
	Error            string `json:"error,omitempty"`
}
