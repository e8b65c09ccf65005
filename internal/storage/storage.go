// Package storage provides the persistence layer for admin accounts, media
// assets, and the append-only view event log. Two implementations exist: a
// JSON-file datastore for development and tests, and a Postgres datastore for
// production deployments.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"streamgate/internal/models"
)

type dataset struct {
	Admins     map[string]models.AdminAccount `json:"admins"`
	Media      map[string]models.MediaAsset   `json:"media"`
	ViewEvents []models.ViewEvent             `json:"viewEvents"`
}

func newDataset() dataset {
	return dataset{
		Admins: make(map[string]models.AdminAccount),
		Media:  make(map[string]models.MediaAsset),
	}
}

// Storage is the JSON-file backed Repository implementation. All mutations
// hold the write lock and persist the full dataset atomically before they are
// made visible.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	nowFn           func() time.Time
}

// Option mutates storage configuration.
type Option func(*Storage)

// WithClock injects the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStorage opens (or creates) the JSON datastore at the provided path.
func NewStorage(path string, opts ...Option) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	s := &Storage{filePath: path, data: newDataset(), nowFn: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewJSONRepository opens the JSON-backed datastore and returns it as a
// Repository.
func NewJSONRepository(path string, opts ...Option) (Repository, error) {
	return NewStorage(path, opts...)
}

func (s *Storage) load() error {
	file, err := os.Open(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	var data dataset
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("decode store file: %w", err)
	}
	if data.Admins == nil {
		data.Admins = make(map[string]models.AdminAccount)
	}
	if data.Media == nil {
		data.Media = make(map[string]models.MediaAsset)
	}
	s.data = data
	return nil
}

func (s *Storage) persist() error {
	return s.persistDataset(s.data)
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		return s.persistOverride(data)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

// Ping reports whether the datastore is usable. The JSON store only checks
// that its directory exists.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(filepath.Dir(s.filePath))
	return err
}

// CreateAdminAccount registers a new administrator. The email must not be in
// use; comparison is case-insensitive.
func (s *Storage) CreateAdminAccount(ctx context.Context, params CreateAdminParams) (models.AdminAccount, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(params.Email))
	if normalizedEmail == "" {
		return models.AdminAccount{}, errors.New("email is required")
	}
	if params.Password == "" {
		return models.AdminAccount{}, errors.New("password is required")
	}

	hashed, err := hashPassword(params.Password)
	if err != nil {
		return models.AdminAccount{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, admin := range s.data.Admins {
		if admin.Email == normalizedEmail {
			return models.AdminAccount{}, ErrEmailTaken
		}
	}

	account := models.AdminAccount{
		ID:           uuid.NewString(),
		Email:        normalizedEmail,
		PasswordHash: hashed,
		CreatedAt:    s.nowFn().UTC(),
	}
	s.data.Admins[account.ID] = account
	if err := s.persist(); err != nil {
		delete(s.data.Admins, account.ID)
		return models.AdminAccount{}, err
	}
	return account, nil
}

// GetAdminAccount looks an account up by id.
func (s *Storage) GetAdminAccount(ctx context.Context, id string) (models.AdminAccount, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.data.Admins[id]
	return account, ok, nil
}

func (s *Storage) findAdminByEmail(email string) (models.AdminAccount, bool) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	for _, admin := range s.data.Admins {
		if admin.Email == normalized {
			return admin, true
		}
	}
	return models.AdminAccount{}, false
}

// CreateMediaAsset registers a new media asset.
func (s *Storage) CreateMediaAsset(ctx context.Context, params CreateMediaParams) (models.MediaAsset, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.MediaAsset{}, errors.New("title is required")
	}
	if params.Type != models.MediaTypeVideo && params.Type != models.MediaTypeAudio {
		return models.MediaAsset{}, fmt.Errorf("unsupported media type %q", params.Type)
	}
	if strings.TrimSpace(params.FileURL) == "" {
		return models.MediaAsset{}, errors.New("file URL is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	asset := models.MediaAsset{
		ID:        uuid.NewString(),
		Title:     title,
		Type:      params.Type,
		FileURL:   strings.TrimSpace(params.FileURL),
		CreatedBy: params.CreatedBy,
		CreatedAt: s.nowFn().UTC(),
	}
	s.data.Media[asset.ID] = asset
	if err := s.persist(); err != nil {
		delete(s.data.Media, asset.ID)
		return models.MediaAsset{}, err
	}
	return asset, nil
}

// GetMediaAsset looks an asset up by id.
func (s *Storage) GetMediaAsset(ctx context.Context, id string) (models.MediaAsset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.data.Media[id]
	return asset, ok, nil
}

// ListMediaAssets returns all assets ordered by creation time, newest first.
func (s *Storage) ListMediaAssets(ctx context.Context) ([]models.MediaAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]models.MediaAsset, 0, len(s.data.Media))
	for _, asset := range s.data.Media {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		if !assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].CreatedAt.After(assets[j].CreatedAt)
		}
		return assets[i].ID < assets[j].ID
	})
	return assets, nil
}

// AppendViewEvent records one view of the asset with a server-assigned
// timestamp. The media asset must exist. Repeated calls append distinct
// events; there is no deduplication.
func (s *Storage) AppendViewEvent(ctx context.Context, mediaID, viewerIP string) (models.ViewEvent, error) {
	if viewerIP == "" {
		viewerIP = "unknown"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Media[mediaID]; !ok {
		return models.ViewEvent{}, ErrMediaNotFound
	}

	now := s.nowFn().UTC()
	event := models.ViewEvent{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		MediaID:   mediaID,
		ViewerIP:  viewerIP,
		Timestamp: now,
	}
	s.data.ViewEvents = append(s.data.ViewEvents, event)
	if err := s.persist(); err != nil {
		s.data.ViewEvents = s.data.ViewEvents[:len(s.data.ViewEvents)-1]
		return models.ViewEvent{}, err
	}
	return event, nil
}

// MediaViewStats aggregates the view events recorded for the asset within the
// optional inclusive range.
func (s *Storage) MediaViewStats(ctx context.Context, mediaID string, rng ViewRange) (models.ViewStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Media[mediaID]; !ok {
		return models.ViewStats{}, ErrMediaNotFound
	}

	events := make([]models.ViewEvent, 0)
	for _, event := range s.data.ViewEvents {
		if event.MediaID == mediaID {
			events = append(events, event)
		}
	}
	return AggregateViewEvents(events, rng), nil
}
