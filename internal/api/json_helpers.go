package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"streamgate/internal/storage"
)

type messageResponse struct {
	Message string `json:"message"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type fieldErrorsResponse struct {
	Errors []fieldError `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeFieldErrors(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusBadRequest, fieldErrorsResponse{Errors: errs})
}

// writeStorageError maps a storage failure to the uniform response shape.
// Unexpected failures are logged with full detail and surfaced as a generic
// message only.
func (h *Handler) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrMediaNotFound):
		writeMessage(w, http.StatusNotFound, "media not found")
	case errors.Is(err, storage.ErrEmailTaken):
		writeMessage(w, http.StatusConflict, "email already registered")
	case errors.Is(err, storage.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
	default:
		h.logger().Error("storage failure", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ClientIP extracts the viewer address: the first entry of X-Forwarded-For
// when present, else the transport peer address, else "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		if host != "" {
			return host
		}
	}
	return "unknown"
}
