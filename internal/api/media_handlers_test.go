package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"streamgate/internal/models"
	"streamgate/internal/storage"
)

func createTestMediaAsset(t *testing.T, handler *Handler, token string) mediaResponse {
	t.Helper()
	req := jsonRequest(t, http.MethodPost, "/api/media", map[string]string{
		"title":    "Launch Day",
		"type":     "video",
		"file_url": "https://cdn.example.com/launch.mp4",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.Media(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create media returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp mediaResponse
	decodeBody(t, rec, &resp)
	return resp
}

func TestMediaRequiresAdminSession(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Media(rec, httptest.NewRequest(http.MethodGet, "/api/media", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
	var resp messageResponse
	decodeBody(t, rec, &resp)
	if resp.Message != "missing token" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestMediaRejectsCapabilityTokenAsSession(t *testing.T) {
	handler := newTestHandler(t)
	signupTestAdmin(t, handler, "ops@example.com")

	capability, _, err := handler.Tokens.IssueCapability("media-1")
	if err != nil {
		t.Fatalf("IssueCapability: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	req.Header.Set("Authorization", "Bearer "+capability)

	rec := httptest.NewRecorder()
	handler.Media(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("capability token must not open admin routes, got %d", rec.Code)
	}
}

func TestCreateAndListMedia(t *testing.T) {
	handler := newTestHandler(t)
	adminID, token := signupTestAdmin(t, handler, "ops@example.com")

	created := createTestMediaAsset(t, handler, token)
	if created.ID == "" || created.Title != "Launch Day" || created.Type != "video" {
		t.Fatalf("unexpected create response %+v", created)
	}

	asset, ok, err := handler.Store.GetMediaAsset(httptest.NewRequest(http.MethodGet, "/", nil).Context(), created.ID)
	if err != nil || !ok {
		t.Fatalf("stored asset missing: ok=%v err=%v", ok, err)
	}
	if asset.CreatedBy != adminID {
		t.Fatalf("expected creator %s, got %s", adminID, asset.CreatedBy)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.Media(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list media returned %d", rec.Code)
	}
	var listed []mediaResponse
	decodeBody(t, rec, &listed)
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("unexpected listing %+v", listed)
	}
}

func TestCreateMediaValidation(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")

	req := jsonRequest(t, http.MethodPost, "/api/media", map[string]string{
		"title":    "",
		"type":     "podcast",
		"file_url": "not-a-url",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.Media(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp fieldErrorsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Errors) != 3 {
		t.Fatalf("expected errors for title, type, and file_url, got %+v", resp.Errors)
	}
}

func TestMediaByIDUnknownAction(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.MediaByID(rec, httptest.NewRequest(http.MethodGet, "/api/media/abc/download", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.MediaByID(rec, httptest.NewRequest(http.MethodGet, "/api/media/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for bare asset path, got %d", rec.Code)
	}
}

func TestStreamURLIssuesScopedToken(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	req := httptest.NewRequest(http.MethodGet, "/api/media/"+created.ID+"/stream-url", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stream-url returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp streamURLResponse
	decodeBody(t, rec, &resp)
	if resp.ExpiresInMinutes != 10 {
		t.Fatalf("expected 10 minute expiry, got %d", resp.ExpiresInMinutes)
	}
	if !strings.HasPrefix(resp.URL, "http://localhost:8080/api/stream?token=") {
		t.Fatalf("unexpected stream URL %q", resp.URL)
	}

	parsed, err := url.Parse(resp.URL)
	if err != nil {
		t.Fatalf("parse stream URL: %v", err)
	}
	claims, err := handler.Tokens.VerifyCapability(parsed.Query().Get("token"))
	if err != nil {
		t.Fatalf("embedded token should verify: %v", err)
	}
	if claims.MediaID != created.ID {
		t.Fatalf("token bound to %s, want %s", claims.MediaID, created.ID)
	}
}

func TestStreamURLUnknownMedia(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/media/missing/stream-url", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLogViewWithAdminSession(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	req := httptest.NewRequest(http.MethodPost, "/api/media/"+created.ID+"/view", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("view returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp viewLoggedResponse
	decodeBody(t, rec, &resp)
	if resp.Message != "view logged" || resp.MediaID != created.ID || resp.IP != "203.0.113.7" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestLogViewWithCapabilityToken(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	capability, _, err := handler.Tokens.IssueCapability(created.ID)
	if err != nil {
		t.Fatalf("IssueCapability: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/media/"+created.ID+"/view?token="+url.QueryEscape(capability), nil)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("view returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLogViewInvalidQueryTokenDoesNotFallBack(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	req := httptest.NewRequest(http.MethodPost, "/api/media/"+created.ID+"/view?token=garbage", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("query token must be terminal, got %d", rec.Code)
	}
}

func TestLogViewUnknownMedia(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/media/missing/view", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAnalyticsAggregatesViews(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	logView := func(ip string) {
		req := httptest.NewRequest(http.MethodPost, "/api/media/"+created.ID+"/view", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.MediaByID(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("view returned %d", rec.Code)
		}
	}
	logView("203.0.113.1")
	logView("203.0.113.1")
	logView("203.0.113.2")

	req := httptest.NewRequest(http.MethodGet, "/api/media/"+created.ID+"/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics returned %d: %s", rec.Code, rec.Body.String())
	}

	var stats models.ViewStats
	decodeBody(t, rec, &stats)
	if stats.TotalViews != 3 || stats.UniqueIPs != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	total := 0
	for _, count := range stats.PerDay {
		total += count
	}
	if total != 3 {
		t.Fatalf("per-day counts should sum to total views, got %v", stats.PerDay)
	}
}

func TestAnalyticsEmptyShape(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	req := httptest.NewRequest(http.MethodGet, "/api/media/"+created.ID+"/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics returned %d", rec.Code)
	}

	body := strings.TrimSpace(rec.Body.String())
	want := `{"total_views":0,"unique_ips":0,"views_per_day":{}}`
	if body != want {
		t.Fatalf("empty analytics shape mismatch:\n got %s\nwant %s", body, want)
	}
}

func TestAnalyticsRejectsBadDates(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	req := httptest.NewRequest(http.MethodGet, "/api/media/"+created.ID+"/analytics?from=03-01-2026&to=bogus", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp fieldErrorsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Errors) != 2 {
		t.Fatalf("expected errors for from and to, got %+v", resp.Errors)
	}
}

func TestAnalyticsRangeFilters(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	req := httptest.NewRequest(http.MethodPost, "/api/media/"+created.ID+"/view", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("view returned %d", rec.Code)
	}

	ask := func(query string) models.ViewStats {
		req := httptest.NewRequest(http.MethodGet, "/api/media/"+created.ID+"/analytics"+query, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.MediaByID(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("analytics returned %d", rec.Code)
		}
		var stats models.ViewStats
		decodeBody(t, rec, &stats)
		return stats
	}

	if stats := ask("?from=2000-01-01&to=2099-12-31"); stats.TotalViews != 1 {
		t.Fatalf("wide range should include the event, got %+v", stats)
	}
	if stats := ask("?from=2000-01-01&to=2000-12-31"); stats.TotalViews != 0 {
		t.Fatalf("past range should exclude the event, got %+v", stats)
	}
}

func TestAnalyticsRequiresAdmin(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	capability, _, err := handler.Tokens.IssueCapability(created.ID)
	if err != nil {
		t.Fatalf("IssueCapability: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/media/"+created.ID+"/analytics?token="+url.QueryEscape(capability), nil)
	rec := httptest.NewRecorder()
	handler.MediaByID(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("capability token must not unlock analytics, got %d", rec.Code)
	}
}

func TestStreamRedirectsAndRecordsView(t *testing.T) {
	handler := newTestHandler(t)
	_, token := signupTestAdmin(t, handler, "ops@example.com")
	created := createTestMediaAsset(t, handler, token)

	capability, _, err := handler.Tokens.IssueCapability(created.ID)
	if err != nil {
		t.Fatalf("IssueCapability: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/stream?token="+url.QueryEscape(capability), nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	handler.Stream(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if location := rec.Header().Get("Location"); location != created.FileURL {
		t.Fatalf("expected redirect to %q, got %q", created.FileURL, location)
	}

	stats, err := handler.Store.MediaViewStats(req.Context(), created.ID, storage.ViewRange{})
	if err != nil {
		t.Fatalf("MediaViewStats: %v", err)
	}
	if stats.TotalViews != 1 {
		t.Fatalf("stream should record one view, got %d", stats.TotalViews)
	}
}

func TestStreamTokenFailures(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without token, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/stream?token=garbage", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestStreamUnknownMedia(t *testing.T) {
	handler := newTestHandler(t)

	capability, _, err := handler.Tokens.IssueCapability("deleted-media")
	if err != nil {
		t.Fatalf("IssueCapability: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/stream?token="+url.QueryEscape(capability), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown media, got %d", rec.Code)
	}
}
