package model

import "time"

// TokenStatus is the lifecycle state of an API token. Issued is the only
// initial state; Revoked and Expired are terminal. Expired is derived lazily:
// a token past its ExpiresAt is flipped on the next validation that observes
// it, never by a background job.
type TokenStatus string

const (
	TokenIssued  TokenStatus = "issued"
	TokenRevoked TokenStatus = "revoked"
	TokenExpired TokenStatus = "expired"
)

// Token is the opaque bearer credential enforced on every protected request.
// The key itself is the lookup handle: 32 random bytes, base64 URL-encoded,
// unique by index. Tokens are never physically deleted, only status-flagged.
type Token struct {
	ID         int64       `json:"id" db:"id"`
	TokenKey   string      `json:"-" db:"token_key"` // raw key, expose masked only
	MemberID   int64       `json:"member_id" db:"member_id"`
	Name       string      `json:"name" db:"name"`
	Status     TokenStatus `json:"status" db:"status"`
	IssuedAt   time.Time   `json:"issued_at" db:"issued_at"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty" db:"expires_at"` // nil = never expires
	RevokedAt  *time.Time  `json:"revoked_at,omitempty" db:"revoked_at"`
	LastUsedAt *time.Time  `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedBy  string      `json:"created_by" db:"created_by"`
}

// MaskedKey returns the token key with its middle hidden: first four and last
// four characters around "...". Keys of eight characters or fewer are fully
// masked so the mask never reveals the whole key.
func (t *Token) MaskedKey() string {
	return MaskKey(t.TokenKey)
}

// MaskKey masks an arbitrary token key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
