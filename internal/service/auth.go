package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles member login sessions. The session JWT is a standard
// signed-claims credential, separate from the opaque API tokens that gate
// requests; login issues one of each.
type AuthService struct {
	store     *store.Store
	jwtSecret []byte
}

func NewAuthService(st *store.Store, jwtSecret string) *AuthService {
	return &AuthService{store: st, jwtSecret: []byte(jwtSecret)}
}

// Login verifies a member's credentials and returns the member. Disabled
// accounts fail the same way as wrong passwords.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Member, error) {
	member, err := s.store.GetMemberByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if member.Status != model.MemberActive {
		return nil, ErrInvalidCredentials
	}
	if HashPassword(password) != member.PasswordHash {
		return nil, ErrInvalidCredentials
	}
	return member, nil
}

// IssueJWT creates a signed session JWT for the given member.
func (s *AuthService) IssueJWT(memberID int64, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		MemberID: memberID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "promptgate",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateJWT verifies a session JWT and returns the member identity it
// carries.
func (s *AuthService) ValidateJWT(tokenStr string) (int64, string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidCredentials
	}
	return claims.MemberID, claims.Email, nil
}

type sessionClaims struct {
	MemberID int64  `json:"member_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// HashPassword returns the hex SHA-256 of a password for storage comparison.
func HashPassword(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}
