// Package auth issues and validates operator bearer tokens for admin routes.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/abduss/imagehost/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer       = "imagehost"
	audience     = "imagehost-admin"
	operatorRole = "operator"
)

// Claims describes a validated operator token.
type Claims struct {
	Subject   string
	TokenID   uuid.UUID
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type operatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 operator tokens with a shared secret.
type Tokens struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewTokens creates a token service from the admin configuration.
func NewTokens(cfg config.AdminConfig) *Tokens {
	t := &Tokens{
		secret:  []byte(cfg.TokenSecret),
		ttl:     cfg.TokenTTL,
		nowFunc: time.Now,
	}
	t.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return t.nowFunc() }),
	)
	return t
}

// Issue mints a token for subject.
func (t *Tokens) Issue(subject string) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("token subject is required")
	}

	now := t.nowFunc()
	expiresAt := now.Add(t.ttl)
	claims := operatorClaims{
		Role: operatorRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies the signature, expiry and role of tokenString.
func (t *Tokens) Validate(tokenString string) (Claims, error) {
	if len(t.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrUnauthorized
	}

	var claims operatorClaims
	parsed, err := t.parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrUnauthorized
	}
	if claims.Role != operatorRole {
		return Claims{}, ErrUnauthorized
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return Claims{}, ErrUnauthorized
	}

	out := Claims{
		Subject:   claims.Subject,
		TokenID:   id,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
