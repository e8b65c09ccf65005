package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"streamgate/internal/models"
)

const pgUniqueViolation = "23505"

type postgresRepository struct {
	pool  *pgxpool.Pool
	nowFn func() time.Time
}

var _ Repository = (*postgresRepository)(nil)

// NewPostgresRepository opens a Postgres-backed repository and applies the
// schema migration.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &postgresRepository{pool: pool, nowFn: time.Now}, nil
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the connection pool.
func (r *postgresRepository) Close() {
	r.pool.Close()
}

func (r *postgresRepository) CreateAdminAccount(ctx context.Context, params CreateAdminParams) (models.AdminAccount, error) {
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

	account := models.AdminAccount{
		ID:           uuid.NewString(),
		Email:        normalizedEmail,
		PasswordHash: hashed,
		CreatedAt:    r.nowFn().UTC(),
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO admin_accounts (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		account.ID, account.Email, account.PasswordHash, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.AdminAccount{}, ErrEmailTaken
		}
		return models.AdminAccount{}, fmt.Errorf("insert admin account: %w", err)
	}
	return account, nil
}

func (r *postgresRepository) AuthenticateAdmin(ctx context.Context, email, password string) (models.AdminAccount, error) {
	if password == "" {
		return models.AdminAccount{}, ErrInvalidCredentials
	}
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))

	var account models.AdminAccount
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM admin_accounts WHERE email = $1`,
		normalizedEmail).Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AdminAccount{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.AdminAccount{}, fmt.Errorf("query admin account: %w", err)
	}
	if err := verifyPassword(account.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return models.AdminAccount{}, ErrInvalidCredentials
		}
		return models.AdminAccount{}, err
	}
	return account, nil
}

func (r *postgresRepository) GetAdminAccount(ctx context.Context, id string) (models.AdminAccount, bool, error) {
	var account models.AdminAccount
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM admin_accounts WHERE id = $1`,
		id).Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AdminAccount{}, false, nil
	}
	if err != nil {
		return models.AdminAccount{}, false, fmt.Errorf("query admin account: %w", err)
	}
	return account, true, nil
}

func (r *postgresRepository) CreateMediaAsset(ctx context.Context, params CreateMediaParams) (models.MediaAsset, error) {
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

	asset := models.MediaAsset{
		ID:        uuid.NewString(),
		Title:     title,
		Type:      params.Type,
		FileURL:   strings.TrimSpace(params.FileURL),
		CreatedBy: params.CreatedBy,
		CreatedAt: r.nowFn().UTC(),
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO media_assets (id, title, media_type, file_url, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		asset.ID, asset.Title, string(asset.Type), asset.FileURL, asset.CreatedBy, asset.CreatedAt)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("insert media asset: %w", err)
	}
	return asset, nil
}

func (r *postgresRepository) GetMediaAsset(ctx context.Context, id string) (models.MediaAsset, bool, error) {
	var asset models.MediaAsset
	var mediaType string
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, media_type, file_url, created_by, created_at FROM media_assets WHERE id = $1`,
		id).Scan(&asset.ID, &asset.Title, &mediaType, &asset.FileURL, &asset.CreatedBy, &asset.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MediaAsset{}, false, nil
	}
	if err != nil {
		return models.MediaAsset{}, false, fmt.Errorf("query media asset: %w", err)
	}
	asset.Type = models.MediaType(mediaType)
	return asset, true, nil
}

func (r *postgresRepository) ListMediaAssets(ctx context.Context) ([]models.MediaAsset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, media_type, file_url, created_by, created_at
		 FROM media_assets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	defer rows.Close()

	assets := make([]models.MediaAsset, 0)
	for rows.Next() {
		var asset models.MediaAsset
		var mediaType string
		if err := rows.Scan(&asset.ID, &asset.Title, &mediaType, &asset.FileURL, &asset.CreatedBy, &asset.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media asset: %w", err)
		}
		asset.Type = models.MediaType(mediaType)
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func (r *postgresRepository) AppendViewEvent(ctx context.Context, mediaID, viewerIP string) (models.ViewEvent, error) {
	if viewerIP == "" {
		viewerIP = "unknown"
	}
	if _, ok, err := r.GetMediaAsset(ctx, mediaID); err != nil {
		return models.ViewEvent{}, err
	} else if !ok {
		return models.ViewEvent{}, ErrMediaNotFound
	}

	now := r.nowFn().UTC()
	event := models.ViewEvent{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		MediaID:   mediaID,
		ViewerIP:  viewerIP,
		Timestamp: now,
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO view_events (id, media_id, viewer_ip, occurred_at) VALUES ($1, $2, $3, $4)`,
		event.ID, event.MediaID, event.ViewerIP, event.Timestamp)
	if err != nil {
		return models.ViewEvent{}, fmt.Errorf("insert view event: %w", err)
	}
	return event, nil
}

func (r *postgresRepository) MediaViewStats(ctx context.Context, mediaID string, rng ViewRange) (models.ViewStats, error) {
	if _, ok, err := r.GetMediaAsset(ctx, mediaID); err != nil {
		return models.ViewStats{}, err
	} else if !ok {
		return models.ViewStats{}, ErrMediaNotFound
	}

	stats := models.ViewStats{PerDay: make(map[string]int)}
	err := r.pool.QueryRow(ctx,
		`SELECT count(*), count(DISTINCT viewer_ip)
		 FROM view_events
		 WHERE media_id = $1
		   AND ($2::timestamptz IS NULL OR occurred_at >= $2)
		   AND ($3::timestamptz IS NULL OR occurred_at <= $3)`,
		mediaID, rng.From, rng.To).Scan(&stats.TotalViews, &stats.UniqueIPs)
	if err != nil {
		return models.ViewStats{}, fmt.Errorf("aggregate view totals: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, count(*)
		 FROM view_events
		 WHERE media_id = $1
		   AND ($2::timestamptz IS NULL OR occurred_at >= $2)
		   AND ($3::timestamptz IS NULL OR occurred_at <= $3)
		 GROUP BY day
		 ORDER BY day`,
		mediaID, rng.From, rng.To)
	if err != nil {
		return models.ViewStats{}, fmt.Errorf("aggregate views per day: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return models.ViewStats{}, fmt.Errorf("scan per-day row: %w", err)
		}
		stats.PerDay[day] = count
	}
	return stats, rows.Err()
}
