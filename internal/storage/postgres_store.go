package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS ads (
		ad_type    TEXT        NOT NULL,
		id         BIGINT      NOT NULL,
		title      TEXT        NOT NULL,
		image_url  TEXT        NOT NULL,
		target_url TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (ad_type, id)
	)`,
	`CREATE TABLE IF NOT EXISTS ad_id_seq (
		ad_type TEXT   PRIMARY KEY,
		last_id BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ad_counters (
		ad_type     TEXT   NOT NULL,
		ad_id       TEXT   NOT NULL,
		impressions BIGINT NOT NULL DEFAULT 0,
		clicks      BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (ad_type, ad_id)
	)`,
}

// PostgresStore implements Backend on PostgreSQL. Ids come from ad_id_seq,
// advanced inside the creating transaction to one more than the larger of
// the last issued id and the current maximum, so ids are never reused.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewPostgresStore creates a store on an existing pool.
func NewPostgresStore(pool *pgxpool.Pool, timeout time.Duration, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

// Migrate creates the schema when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// =============================================
// Ads
// =============================================

func (s *PostgresStore) ListAds(ctx context.Context, t models.AdType) ([]*models.Ad, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, image_url, target_url, created_at, updated_at
		FROM ads WHERE ad_type = $1 ORDER BY created_at, id
	`, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ads: %w", t, err)
	}
	defer rows.Close()

	ads := make([]*models.Ad, 0)
	for rows.Next() {
		var (
			ad models.Ad
			id int64
		)
		if err := rows.Scan(&id, &ad.Title, &ad.ImageURL, &ad.TargetURL, &ad.CreatedAt, &ad.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s ad: %w", t, err)
		}
		ad.ID = strconv.FormatInt(id, 10)
		ads = append(ads, &ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s ads: %w", t, err)
	}
	return ads, nil
}

func (s *PostgresStore) GetAd(ctx context.Context, t models.AdType, id string) (*models.Ad, error) {
	n, ok := parseSequentialID(id)
	if !ok {
		return nil, nil
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	ad := models.Ad{ID: id}
	err := s.pool.QueryRow(ctx, `
		SELECT title, image_url, target_url, created_at, updated_at
		FROM ads WHERE ad_type = $1 AND id = $2
	`, string(t), n).Scan(&ad.Title, &ad.ImageURL, &ad.TargetURL, &ad.CreatedAt, &ad.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s ad: %w", t, err)
	}
	return &ad, nil
}

func (s *PostgresStore) CreateAd(ctx context.Context, t models.AdType, in models.AdInput) (*models.Ad, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var next int64
	err = tx.QueryRow(ctx, `
		INSERT INTO ad_id_seq (ad_type, last_id)
		VALUES ($1, (SELECT COALESCE(MAX(id), 0) FROM ads WHERE ad_type = $1) + 1)
		ON CONFLICT (ad_type) DO UPDATE SET
			last_id = GREATEST(ad_id_seq.last_id, (SELECT COALESCE(MAX(id), 0) FROM ads WHERE ad_type = $1)) + 1
		RETURNING last_id
	`, string(t)).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %s id: %w", t, err)
	}

	now := s.now()
	_, err = tx.Exec(ctx, `
		INSERT INTO ads (ad_type, id, title, image_url, target_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, string(t), next, in.Title, in.ImageURL, in.TargetURL, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s ad: %w", t, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit %s ad: %w", t, err)
	}

	return &models.Ad{
		ID:        strconv.FormatInt(next, 10),
		Title:     in.Title,
		ImageURL:  in.ImageURL,
		TargetURL: in.TargetURL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateAd(ctx context.Context, t models.AdType, id string, in models.AdInput) (bool, error) {
	n, ok := parseSequentialID(id)
	if !ok {
		return false, nil
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE ads SET title = $3, image_url = $4, target_url = $5, updated_at = $6
		WHERE ad_type = $1 AND id = $2
	`, string(t), n, in.Title, in.ImageURL, in.TargetURL, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to update %s ad: %w", t, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteAd(ctx context.Context, t models.AdType, id string) (bool, error) {
	n, ok := parseSequentialID(id)
	if !ok {
		return false, nil
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM ads WHERE ad_type = $1 AND id = $2`, string(t), n)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s ad: %w", t, err)
	}
	return tag.RowsAffected() > 0, nil
}

// =============================================
// Counters
// =============================================

func (s *PostgresStore) Increment(ctx context.Context, t models.AdType, id string, kind models.EventKind) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var query string
	switch kind {
	case models.EventImpression:
		query = `
			INSERT INTO ad_counters (ad_type, ad_id, impressions) VALUES ($1, $2, 1)
			ON CONFLICT (ad_type, ad_id) DO UPDATE SET impressions = ad_counters.impressions + 1`
	case models.EventClick:
		query = `
			INSERT INTO ad_counters (ad_type, ad_id, clicks) VALUES ($1, $2, 1)
			ON CONFLICT (ad_type, ad_id) DO UPDATE SET clicks = ad_counters.clicks + 1`
	default:
		return fmt.Errorf("unknown event kind %q", kind)
	}

	if _, err := s.pool.Exec(ctx, query, string(t), id); err != nil {
		return fmt.Errorf("failed to increment %s counter: %w", kind, err)
	}
	return nil
}

func (s *PostgresStore) Counters(ctx context.Context) (*models.CounterTable, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT ad_type, ad_id, impressions, clicks FROM ad_counters`)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	defer rows.Close()

	table := models.NewCounterTable()
	for rows.Next() {
		var (
			adType, adID        string
			impressions, clicks int64
		)
		if err := rows.Scan(&adType, &adID, &impressions, &clicks); err != nil {
			return nil, fmt.Errorf("failed to scan counters: %w", err)
		}
		key := models.CounterKey(models.AdType(adType), adID)
		if impressions > 0 {
			table.Impressions[key] = impressions
		}
		if clicks > 0 {
			table.Clicks[key] = clicks
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	return table, nil
}

// =============================================
// Lifecycle
// =============================================

func (s *PostgresStore) Health(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }
