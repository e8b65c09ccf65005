// Package models defines the persisted domain entities shared by the API
// handlers and the storage backends.
package models

import (
	"strings"
	"time"
)

// MediaType enumerates the supported media asset kinds.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// ParseMediaType normalizes a raw media type string and reports whether it is
// one of the supported kinds.
func ParseMediaType(raw string) (MediaType, bool) {
	switch MediaType(strings.ToLower(strings.TrimSpace(raw))) {
	case MediaTypeVideo:
		return MediaTypeVideo, true
	case MediaTypeAudio:
		return MediaTypeAudio, true
	default:
		return "", false
	}
}

// AdminAccount is an administrator identity. Accounts are created at signup
// and never mutated or deleted afterwards.
type AdminAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MediaAsset is a gated media resource. FileURL points at the backing
// location a successful stream request is redirected to.
type MediaAsset struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      MediaType `json:"type"`
	FileURL   string    `json:"fileUrl"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ViewEvent is one append-only access record. Timestamp is assigned by the
// storage layer at write time and never accepted from a caller.
type ViewEvent struct {
	ID        string    `json:"id"`
	MediaID   string    `json:"mediaId"`
	ViewerIP  string    `json:"viewerIp"`
	Timestamp time.Time `json:"timestamp"`
}

// ViewStats is the aggregation result for a media asset over an optional
// inclusive UTC day range. PerDay is sparse: days without events are omitted.
type ViewStats struct {
	TotalViews int            `json:"total_views"`
	UniqueIPs  int            `json:"unique_ips"`
	PerDay     map[string]int `json:"views_per_day"`
}
