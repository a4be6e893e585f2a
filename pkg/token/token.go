package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL bounds issued handshake tokens. Short by design: the token only
// authenticates the WebSocket upgrade, not the session.
const DefaultTTL = 15 * time.Minute

// Service issues and verifies handshake JWTs signed with HMAC-SHA256.
type Service struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets and enforces the iss claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithAudience sets and enforces the aud claim.
func WithAudience(audience string) Option {
	return func(s *Service) { s.audience = audience }
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New creates a Service with the given signing secret.
func New(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	s := &Service{
		secret: secret,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate issues a token whose subject is userID.
func (s *Service) Generate(userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingSubject
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	if s.issuer != "" {
		claims.Issuer = s.issuer
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates raw and returns its subject. The context is
// accepted for interface compatibility; verification is local.
func (s *Service) Verify(_ context.Context, raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.Join(ErrExpiredToken, err)
		}
		return "", errors.Join(ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
