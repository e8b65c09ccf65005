package storage

import (
	"context"
	"errors"
	"time"

	"streamgate/internal/models"
)

var (
	// ErrEmailTaken indicates a signup attempt with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates a failed login. Unknown email and wrong
	// password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMediaNotFound indicates the referenced media asset does not exist.
	ErrMediaNotFound = errors.New("media not found")
)

// CreateAdminParams carries the inputs for registering an admin account.
type CreateAdminParams struct {
	Email    string
	Password string
}

// CreateMediaParams carries the inputs for registering a media asset.
type CreateMediaParams struct {
	Title     string
	Type      models.MediaType
	FileURL   string
	CreatedBy string
}

// ViewRange bounds an aggregation query. Nil endpoints leave that side open;
// both bounds are inclusive instants.
type ViewRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether the instant falls inside the range.
func (r ViewRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// AdminAccountStore persists administrator accounts.
type AdminAccountStore interface {
	CreateAdminAccount(ctx context.Context, params CreateAdminParams) (models.AdminAccount, error)
	AuthenticateAdmin(ctx context.Context, email, password string) (models.AdminAccount, error)
	GetAdminAccount(ctx context.Context, id string) (models.AdminAccount, bool, error)
}

// MediaAssetStore persists media assets.
type MediaAssetStore interface {
	CreateMediaAsset(ctx context.Context, params CreateMediaParams) (models.MediaAsset, error)
	GetMediaAsset(ctx context.Context, id string) (models.MediaAsset, bool, error)
	ListMediaAssets(ctx context.Context) ([]models.MediaAsset, error)
}

// ViewEventStore records and aggregates append-only view events. AppendViewEvent
// assigns the event timestamp server-side at write time; there is no update or
// delete path.
type ViewEventStore interface {
	AppendViewEvent(ctx context.Context, mediaID, viewerIP string) (models.ViewEvent, error)
	MediaViewStats(ctx context.Context, mediaID string, rng ViewRange) (models.ViewStats, error)
}

// Repository exposes the datastore operations required by the API handlers.
type Repository interface {
	AdminAccountStore
	MediaAssetStore
	ViewEventStore
	Ping(ctx context.Context) error
}

var _ Repository = (*Storage)(nil)
