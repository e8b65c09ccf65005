// Package auth issues and verifies the two credential kinds protecting media
// resources: long-lived administrator session tokens and short-lived,
// resource-scoped capability tokens. Both are self-contained HS256 JWTs; each
// kind is signed with its own secret so compromise of one secret cannot forge
// the other kind.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionTTL matches the reference lifetime of one day for admin
	// session tokens.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultCapabilityTTL matches the reference lifetime of ten minutes for
	// stream capability tokens.
	DefaultCapabilityTTL = 10 * time.Minute

	roleAdmin = "admin"
)

// ErrInvalidToken is returned for every verification failure. Callers must not
// distinguish expiry from a bad signature in responses.
var ErrInvalidToken = errors.New("invalid or expired token")

// SessionClaims is the verified payload of an admin session token.
type SessionClaims struct {
	AccountID string
	Email     string
}

// CapabilityClaims is the verified payload of a capability token. It is scoped
// to exactly one media asset.
type CapabilityClaims struct {
	MediaID string
}

type sessionTokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type capabilityTokenClaims struct {
	MediaID string `json:"mid"`
	jwt.RegisteredClaims
}

// TokenOption configures a TokenService instance.
type TokenOption func(*TokenService)

// WithSessionTTL overrides the session token lifetime.
func WithSessionTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithCapabilityTTL overrides the capability token lifetime.
func WithCapabilityTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.capabilityTTL = ttl
		}
	}
}

// WithClock injects the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenService signs and verifies both token kinds. The zero value is not
// usable; construct instances with NewTokenService.
type TokenService struct {
	sessionSecret    []byte
	capabilitySecret []byte
	sessionTTL       time.Duration
	capabilityTTL    time.Duration
	now              func() time.Time
}

// NewTokenService constructs a TokenService from the two signing secrets. The
// secrets must be non-empty and distinct.
func NewTokenService(sessionSecret, capabilitySecret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(sessionSecret) == "" {
		return nil, errors.New("session secret is required")
	}
	if strings.TrimSpace(capabilitySecret) == "" {
		return nil, errors.New("capability secret is required")
	}
	if sessionSecret == capabilitySecret {
		return nil, errors.New("session and capability secrets must differ")
	}
	service := &TokenService{
		sessionSecret:    []byte(sessionSecret),
		capabilitySecret: []byte(capabilitySecret),
		sessionTTL:       DefaultSessionTTL,
		capabilityTTL:    DefaultCapabilityTTL,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service, nil
}

// SessionTTL exposes the configured session token lifetime.
func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// CapabilityTTL exposes the configured capability token lifetime.
func (s *TokenService) CapabilityTTL() time.Duration {
	return s.capabilityTTL
}

// IssueSession signs a session token for the provided admin account.
func (s *TokenService) IssueSession(accountID, email string) (string, time.Time, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", time.Time{}, errors.New("accountID is required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.sessionTTL)
	claims := sessionTokenClaims{
		Email: email,
		Role:  roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.sessionSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifySession validates a session token's signature and expiry against the
// session secret. Tokens signed with the capability secret fail here.
func (s *TokenService) VerifySession(token string) (SessionClaims, error) {
	claims := &sessionTokenClaims{}
	if err := s.parse(token, claims, s.sessionSecret); err != nil {
		return SessionClaims{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Role != roleAdmin {
		return SessionClaims{}, ErrInvalidToken
	}
	return SessionClaims{AccountID: claims.Subject, Email: claims.Email}, nil
}

// IssueCapability signs a short-lived token granting stream access to exactly
// one media asset.
func (s *TokenService) IssueCapability(mediaID string) (string, time.Time, error) {
	if strings.TrimSpace(mediaID) == "" {
		return "", time.Time{}, errors.New("mediaID is required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.capabilityTTL)
	claims := capabilityTokenClaims{
		MediaID: mediaID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.capabilitySecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign capability token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyCapability validates a capability token against the capability secret.
func (s *TokenService) VerifyCapability(token string) (CapabilityClaims, error) {
	claims := &capabilityTokenClaims{}
	if err := s.parse(token, claims, s.capabilitySecret); err != nil {
		return CapabilityClaims{}, err
	}
	if strings.TrimSpace(claims.MediaID) == "" {
		return CapabilityClaims{}, ErrInvalidToken
	}
	return CapabilityClaims{MediaID: claims.MediaID}, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
