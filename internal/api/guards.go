package api

import (
	"errors"
	"net/http"

	"streamgate/internal/auth"
	"streamgate/internal/observability/metrics"
)

// requireAdmin resolves the request via the admin-only path (bearer header,
// then session cookie). On failure it writes the 401 response and returns
// ok=false; verification failures are never distinguished in the body.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, err := h.Resolver.ResolveAdmin(r)
	if err != nil {
		h.writeAuthFailure(w, r, err)
		return auth.Identity{}, false
	}
	return identity, true
}

// requireAdminOrCapability resolves the request via the dual path: a
// capability token in the token query parameter wins and is terminal,
// otherwise the admin path applies.
func (h *Handler) requireAdminOrCapability(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, err := h.Resolver.ResolveDual(r)
	if err != nil {
		h.writeAuthFailure(w, r, err)
		return auth.Identity{}, false
	}
	return identity, true
}

func (h *Handler) writeAuthFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		metrics.AuthFailure("missing")
		writeMessage(w, http.StatusUnauthorized, "missing token")
	case errors.Is(err, auth.ErrInvalidToken):
		metrics.AuthFailure("invalid")
		writeMessage(w, http.StatusUnauthorized, "invalid or expired token")
	default:
		h.logger().Error("identity resolution failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
