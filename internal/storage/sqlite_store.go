package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS ads (
		ad_type    TEXT    NOT NULL,
		id         INTEGER NOT NULL,
		title      TEXT    NOT NULL,
		image_url  TEXT    NOT NULL,
		target_url TEXT    NOT NULL,
		created_at TEXT    NOT NULL,
		updated_at TEXT    NOT NULL,
		PRIMARY KEY (ad_type, id)
	)`,
	`CREATE TABLE IF NOT EXISTS ad_id_seq (
		ad_type TEXT    PRIMARY KEY,
		last_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ad_counters (
		ad_type     TEXT    NOT NULL,
		ad_id       TEXT    NOT NULL,
		impressions INTEGER NOT NULL DEFAULT 0,
		clicks      INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (ad_type, ad_id)
	)`,
}

// SQLiteStore implements Backend on an embedded SQLite database. It uses
// the same tables and id policy as PostgresStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a store on an open handle.
func NewSQLiteStore(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// Migrate creates the schema when missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// =============================================
// Ads
// =============================================

func (s *SQLiteStore) ListAds(ctx context.Context, t models.AdType) ([]*models.Ad, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, image_url, target_url, created_at, updated_at
		FROM ads WHERE ad_type = ? ORDER BY id
	`, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ads: %w", t, err)
	}
	defer rows.Close()

	ads := make([]*models.Ad, 0)
	for rows.Next() {
		ad, err := scanSQLiteAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s ad: %w", t, err)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s ads: %w", t, err)
	}
	return ads, nil
}

func (s *SQLiteStore) GetAd(ctx context.Context, t models.AdType, id string) (*models.Ad, error) {
	n, ok := parseSequentialID(id)
	if !ok {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, image_url, target_url, created_at, updated_at
		FROM ads WHERE ad_type = ? AND id = ?
	`, string(t), n)
	ad, err := scanSQLiteAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s ad: %w", t, err)
	}
	return ad, nil
}

func (s *SQLiteStore) CreateAd(ctx context.Context, t models.AdType, in models.AdInput) (*models.Ad, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ad_id_seq (ad_type, last_id)
		VALUES (?1, (SELECT COALESCE(MAX(id), 0) FROM ads WHERE ad_type = ?1) + 1)
		ON CONFLICT (ad_type) DO UPDATE SET
			last_id = MAX(ad_id_seq.last_id, (SELECT COALESCE(MAX(id), 0) FROM ads WHERE ad_type = ?1)) + 1
		RETURNING last_id
	`, string(t)).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %s id: %w", t, err)
	}

	now := s.now()
	stamp := now.Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ads (ad_type, id, title, image_url, target_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(t), next, in.Title, in.ImageURL, in.TargetURL, stamp, stamp)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s ad: %w", t, err)
	}

	if err := tx.Commit(); err != nil {
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

func (s *SQLiteStore) UpdateAd(ctx context.Context, t models.AdType, id string, in models.AdInput) (bool, error) {
	n, ok := parseSequentialID(id)
	if !ok {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ads SET title = ?, image_url = ?, target_url = ?, updated_at = ?
		WHERE ad_type = ? AND id = ?
	`, in.Title, in.ImageURL, in.TargetURL, s.now().Format(time.RFC3339Nano), string(t), n)
	if err != nil {
		return false, fmt.Errorf("failed to update %s ad: %w", t, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *SQLiteStore) DeleteAd(ctx context.Context, t models.AdType, id string) (bool, error) {
	n, ok := parseSequentialID(id)
	if !ok {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM ads WHERE ad_type = ? AND id = ?`, string(t), n)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s ad: %w", t, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// =============================================
// Counters
// =============================================

func (s *SQLiteStore) Increment(ctx context.Context, t models.AdType, id string, kind models.EventKind) error {
	var query string
	switch kind {
	case models.EventImpression:
		query = `
			INSERT INTO ad_counters (ad_type, ad_id, impressions) VALUES (?, ?, 1)
			ON CONFLICT (ad_type, ad_id) DO UPDATE SET impressions = impressions + 1`
	case models.EventClick:
		query = `
			INSERT INTO ad_counters (ad_type, ad_id, clicks) VALUES (?, ?, 1)
			ON CONFLICT (ad_type, ad_id) DO UPDATE SET clicks = clicks + 1`
	default:
		return fmt.Errorf("unknown event kind %q", kind)
	}

	if _, err := s.db.ExecContext(ctx, query, string(t), id); err != nil {
		return fmt.Errorf("failed to increment %s counter: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) Counters(ctx context.Context) (*models.CounterTable, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ad_type, ad_id, impressions, clicks FROM ad_counters`)
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

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the handle belongs to the caller.
func (s *SQLiteStore) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAd(row rowScanner) (*models.Ad, error) {
	var (
		ad               models.Ad
		id               int64
		created, updated string
	)
	if err := row.Scan(&id, &ad.Title, &ad.ImageURL, &ad.TargetURL, &created, &updated); err != nil {
		return nil, err
	}
	ad.ID = strconv.FormatInt(id, 10)
	ad.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	ad.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &ad, nil
}
