package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"streamgate/internal/models"
	"streamgate/internal/observability/metrics"
	"streamgate/internal/storage"
)

type createMediaRequest struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	FileURL string `json:"file_url"`
}

type mediaResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	FileURL   string `json:"file_url"`
	CreatedAt string `json:"created_at"`
}

func newMediaResponse(asset models.MediaAsset) mediaResponse {
	return mediaResponse{
		ID:        asset.ID,
		Title:     asset.Title,
		Type:      string(asset.Type),
		FileURL:   asset.FileURL,
		CreatedAt: asset.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Media serves the media collection: POST registers an asset, GET lists the
// registered assets. Both require an admin session.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createMedia(w, r)
	case http.MethodGet:
		h.listMedia(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

func (h *Handler) createMedia(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req createMediaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var errs []fieldError
	if strings.TrimSpace(req.Title) == "" {
		errs = append(errs, fieldError{Field: "title", Message: "title required"})
	}
	mediaType, typeOK := models.ParseMediaType(req.Type)
	if !typeOK {
		errs = append(errs, fieldError{Field: "type", Message: "type must be video|audio"})
	}
	if !validFileURL(req.FileURL) {
		errs = append(errs, fieldError{Field: "file_url", Message: "file_url must be a valid URL"})
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	asset, err := h.Store.CreateMediaAsset(r.Context(), storage.CreateMediaParams{
		Title:     req.Title,
		Type:      mediaType,
		FileURL:   req.FileURL,
		CreatedBy: identity.AccountID,
	})
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMediaResponse(asset))
}

func (h *Handler) listMedia(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	assets, err := h.Store.ListMediaAssets(r.Context())
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	payload := make([]mediaResponse, 0, len(assets))
	for _, asset := range assets {
		payload = append(payload, newMediaResponse(asset))
	}
	writeJSON(w, http.StatusOK, payload)
}

// MediaByID dispatches /api/media/{id}/{action} to the stream-url, view, and
// analytics handlers.
func (h *Handler) MediaByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/media/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeMessage(w, http.StatusNotFound, "route not found")
		return
	}
	mediaID := parts[0]
	switch parts[1] {
	case "stream-url":
		h.streamURL(w, r, mediaID)
	case "view":
		h.logView(w, r, mediaID)
	case "analytics":
		h.analytics(w, r, mediaID)
	default:
		writeMessage(w, http.StatusNotFound, "route not found")
	}
}

type streamURLResponse struct {
	URL              string `json:"url"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// streamURL issues a capability token scoped to the asset and returns the
// public stream URL embedding it.
func (h *Handler) streamURL(w http.ResponseWriter, r *http.Request, mediaID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	_, exists, err := h.Store.GetMediaAsset(r.Context(), mediaID)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	if !exists {
		writeMessage(w, http.StatusNotFound, "media not found")
		return
	}

	token, _, err := h.Tokens.IssueCapability(mediaID)
	if err != nil {
		h.logger().Error("issue capability token", "media_id", mediaID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	base := strings.TrimRight(h.PublicBaseURL, "/")
	writeJSON(w, http.StatusOK, streamURLResponse{
		URL:              fmt.Sprintf("%s/api/stream?token=%s", base, url.QueryEscape(token)),
		ExpiresInMinutes: int(h.Tokens.CapabilityTTL().Minutes()),
	})
}

type viewLoggedResponse struct {
	Message string `json:"message"`
	MediaID string `json:"media_id"`
	IP      string `json:"ip"`
}

// logView appends one view event for the asset. The caller must pass the dual
// guard; the capability token's bound asset is deliberately not checked
// against the path here, matching the reference behavior.
func (h *Handler) logView(w http.ResponseWriter, r *http.Request, mediaID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := h.requireAdminOrCapability(w, r); !ok {
		return
	}

	event, err := h.Store.AppendViewEvent(r.Context(), mediaID, ClientIP(r))
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	metrics.ViewRecorded()
	writeJSON(w, http.StatusCreated, viewLoggedResponse{
		Message: "view logged",
		MediaID: event.MediaID,
		IP:      event.ViewerIP,
	})
}

// analytics returns the aggregated view statistics for the asset over an
// optional inclusive UTC day range.
func (h *Handler) analytics(w http.ResponseWriter, r *http.Request, mediaID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	query := r.URL.Query()
	var errs []fieldError
	from, ok := parseDayBound(query.Get("from"), false)
	if !ok {
		errs = append(errs, fieldError{Field: "from", Message: "from must be YYYY-MM-DD"})
	}
	to, ok := parseDayBound(query.Get("to"), true)
	if !ok {
		errs = append(errs, fieldError{Field: "to", Message: "to must be YYYY-MM-DD"})
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	stats, err := h.Store.MediaViewStats(r.Context(), mediaID, storage.ViewRange{From: from, To: to})
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Stream is the public endpoint real clients hit: it validates the capability
// token, records the view, and redirects to the backing location. In
// production the redirect target would be a pre-signed storage URL.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeMessage(w, http.StatusBadRequest, "missing token")
		return
	}

	claims, err := h.Tokens.VerifyCapability(token)
	if err != nil {
		metrics.AuthFailure("invalid")
		writeMessage(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	asset, exists, err := h.Store.GetMediaAsset(r.Context(), claims.MediaID)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	if !exists {
		writeMessage(w, http.StatusNotFound, "media not found")
		return
	}

	if _, err := h.Store.AppendViewEvent(r.Context(), asset.ID, ClientIP(r)); err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	metrics.ViewRecorded()

	http.Redirect(w, r, asset.FileURL, http.StatusFound)
}
