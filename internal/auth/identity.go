package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"streamgate/internal/models"
)

// ErrMissingToken is returned when a request carries no credential at all.
var ErrMissingToken = errors.New("missing token")

// IdentityKind tags which credential kind a request resolved to.
type IdentityKind int

const (
	// KindAdmin marks an identity proven by a session token.
	KindAdmin IdentityKind = iota + 1
	// KindCapability marks an identity proven by a capability token.
	KindCapability
)

// Identity is the tagged result of resolving a request's credentials. Exactly
// one variant is populated: admin identities carry AccountID and Email,
// capability identities carry the bound MediaID.
type Identity struct {
	Kind      IdentityKind
	AccountID string
	Email     string
	MediaID   string
}

// IsAdmin reports whether the identity was proven by a session token.
func (id Identity) IsAdmin() bool {
	return id.Kind == KindAdmin
}

// AccountDirectory is the account lookup the resolver needs to confirm that a
// session token still references a live admin account.
type AccountDirectory interface {
	GetAdminAccount(ctx context.Context, id string) (models.AdminAccount, bool, error)
}

// Resolver inspects incoming requests and produces an Identity, applying the
// endpoint-specific precedence rules for the two credential kinds.
type Resolver struct {
	tokens     *TokenService
	accounts   AccountDirectory
	cookieName string
}

// NewResolver wires a Resolver from the token service, the account directory,
// and the session cookie name used as the header fallback.
func NewResolver(tokens *TokenService, accounts AccountDirectory, cookieName string) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Resolver{tokens: tokens, accounts: accounts, cookieName: cookieName}
}

// DefaultCookieName holds the session cookie name used when none is configured.
const DefaultCookieName = "streamgate_session"

// ResolveAdmin authenticates the request via the admin-only path: the bearer
// header first, then the session cookie. A valid token whose account no longer
// exists resolves to unauthenticated.
func (r *Resolver) ResolveAdmin(req *http.Request) (Identity, error) {
	token := ExtractToken(req, r.cookieName)
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	claims, err := r.tokens.VerifySession(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	account, ok, err := r.accounts.GetAdminAccount(req.Context(), claims.AccountID)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Kind: KindAdmin, AccountID: account.ID, Email: account.Email}, nil
}

// ResolveDual authenticates the request via the dual path used for view
// logging. A capability token in the token query parameter takes precedence
// and is terminal: when present, admin credentials are never consulted. Only
// requests without a query token fall back to the admin path.
func (r *Resolver) ResolveDual(req *http.Request) (Identity, error) {
	if token := strings.TrimSpace(req.URL.Query().Get("token")); token != "" {
		claims, err := r.tokens.VerifyCapability(token)
		if err != nil {
			return Identity{}, ErrInvalidToken
		}
		return Identity{Kind: KindCapability, MediaID: claims.MediaID}, nil
	}
	return r.ResolveAdmin(req)
}

// ExtractToken pulls the session credential off a request, preferring the
// Authorization bearer header and falling back to the named cookie.
func ExtractToken(r *http.Request, cookieName string) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}
