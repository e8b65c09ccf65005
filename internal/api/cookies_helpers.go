package api

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookieSecureMode controls when the Secure attribute is set on the
// session cookie.
type SessionCookieSecureMode int

const (
	// SessionCookieSecureAuto marks the cookie Secure only when the request
	// arrived over TLS (directly or via X-Forwarded-Proto).
	SessionCookieSecureAuto SessionCookieSecureMode = iota
	// SessionCookieSecureAlways forces the Secure attribute; used in
	// production mode.
	SessionCookieSecureAlways
)

// SessionCookiePolicy describes how the session cookie is issued.
type SessionCookiePolicy struct {
	SameSite   http.SameSite
	SecureMode SessionCookieSecureMode
}

// DefaultSessionCookiePolicy returns the lax, auto-secure policy used when
// none is configured.
func DefaultSessionCookiePolicy() SessionCookiePolicy {
	return SessionCookiePolicy{
		SameSite:   http.SameSiteLaxMode,
		SecureMode: SessionCookieSecureAuto,
	}
}

func (p SessionCookiePolicy) secure(r *http.Request) bool {
	if p.SecureMode == SessionCookieSecureAlways {
		return true
	}
	return isSecureRequest(r)
}

func (h *Handler) sessionCookiePolicy() SessionCookiePolicy {
	policy := h.CookiePolicy
	if policy.SameSite == 0 {
		policy.SameSite = http.SameSiteLaxMode
	}
	return policy
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	if token == "" {
		return
	}
	policy := h.sessionCookiePolicy()
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   policy.secure(r),
		SameSite: policy.SameSite,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	policy := h.sessionCookiePolicy()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   policy.secure(r),
		SameSite: policy.SameSite,
	})
}

func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			if strings.EqualFold(strings.TrimSpace(p), "https") {
				return true
			}
		}
	}
	if r.URL != nil && strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	return false
}
