package model

import "time"

// MemberStatus is the single activity flag for a member account. The status
// enum replaces the separate enabled/condition booleans some systems carry;
// one field, one invariant.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberDisabled MemberStatus = "disabled"
)

// Member is an account that can own API tokens and, when flagged as admin,
// manage keyword rules and prompt templates. Passwords are stored as SHA-256
// hashes and never exposed.
type Member struct {
	ID           int64        `json:"id" db:"id"`
	Email        string       `json:"email" db:"email"`
	Name         string       `json:"name" db:"name"`
	PasswordHash string       `json:"-" db:"password_hash"`
	IsAdmin      bool         `json:"is_admin" db:"is_admin"`
	Status       MemberStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
