// Package auth validates the bearer tokens issued by the account service.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "go-food-analyzer/internal/errors"
)

// DefaultIssuer is the issuer the account service signs with.
const DefaultIssuer = "com.example"

// Claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
}

// Validator checks HS256 tokens against a shared secret.
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a validator. The secret must not be empty.
func NewValidator(secret, issuer string) (*Validator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Validator{secret: []byte(secret), issuer: issuer}, nil
}

// Validate parses and verifies a raw token string.
func (v *Validator) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid access token", err)
	}
	if !token.Valid {
		return nil, apperrors.NewUnauthorizedError("invalid access token", nil)
	}
	return claims, nil
}

// Issue signs a token for subject. Used by the CLI and tests.
func (v *Validator) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorizedError("missing bearer token", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}

type subjectKey struct{}

// ContextWithSubject stores the authenticated subject.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(subjectKey{}).(string); ok {
		return v
	}
	return ""
}
