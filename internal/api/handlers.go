// Package api implements the HTTP handlers and access guards for the
// streamgate service: admin authentication, media registration, capability
// token issuance, view logging, and analytics.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"streamgate/internal/auth"
	"streamgate/internal/storage"
)

// Handler bundles the dependencies shared by all HTTP handlers.
type Handler struct {
	Store         storage.Repository
	Tokens        *auth.TokenService
	Resolver      *auth.Resolver
	Logger        *slog.Logger
	CookieName    string
	CookiePolicy  SessionCookiePolicy
	CookieMaxAge  time.Duration
	PublicBaseURL string
	Clock         func() time.Time
}

// NewHandler wires a Handler and its identity resolver.
func NewHandler(store storage.Repository, tokens *auth.TokenService, cookieName string) *Handler {
	if cookieName == "" {
		cookieName = auth.DefaultCookieName
	}
	return &Handler{
		Store:      store,
		Tokens:     tokens,
		Resolver:   auth.NewResolver(tokens, store, cookieName),
		CookieName: cookieName,
	}
}

func (h *Handler) cookieName() string {
	if h.CookieName != "" {
		return h.CookieName
	}
	return auth.DefaultCookieName
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h *Handler) cookieExpiry(tokenExpiry time.Time) time.Time {
	if h.CookieMaxAge > 0 {
		return h.now().Add(h.CookieMaxAge)
	}
	return tokenExpiry
}

// Health reports service liveness and datastore reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			h.logger().Error("datastore health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status})
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	Message string        `json:"message"`
	Admin   adminResponse `json:"admin"`
}

// Signup registers a new admin account and issues a session token in the
// response cookie.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validateSignup(req.Email, req.Password); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	account, err := h.Store.CreateAdminAccount(r.Context(), storage.CreateAdminParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}

	token, expiresAt, err := h.Tokens.IssueSession(account.ID, account.Email)
	if err != nil {
		h.logger().Error("issue session token", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.setSessionCookie(w, r, token, h.cookieExpiry(expiresAt))
	writeJSON(w, http.StatusCreated, authResponse{
		Message: "signup successful",
		Admin:   adminResponse{ID: account.ID, Email: account.Email},
	})
}

// Login verifies admin credentials and issues a fresh session token. Unknown
// email and wrong password return the same generic message.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validateLogin(req.Email, req.Password); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	account, err := h.Store.AuthenticateAdmin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}

	token, expiresAt, err := h.Tokens.IssueSession(account.ID, account.Email)
	if err != nil {
		h.logger().Error("issue session token", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.setSessionCookie(w, r, token, h.cookieExpiry(expiresAt))
	writeJSON(w, http.StatusOK, authResponse{
		Message: "login successful",
		Admin:   adminResponse{ID: account.ID, Email: account.Email},
	})
}

// Logout clears the client-held session cookie. Tokens already issued remain
// valid until natural expiry; no server-side revocation exists.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	h.clearSessionCookie(w, r)
	writeMessage(w, http.StatusOK, "logged out")
}
