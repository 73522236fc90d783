package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

// Document names inside the data directory.
const (
	bannersFile    = "banners.json"
	fullscreenFile = "fullscreen.json"
	countersFile   = "counters.json"
)

// fileRecord is the on-disk shape of an ad. linkUrl is read for documents
// written by older versions and never written back.
type fileRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"imageUrl"`
	TargetURL string    `json:"targetUrl"`
	LinkURL   string    `json:"linkUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r fileRecord) toAd() *models.Ad {
	target := r.TargetURL
	if target == "" {
		target = r.LinkURL
	}
	return &models.Ad{
		ID:        r.ID,
		Title:     r.Title,
		ImageURL:  r.ImageURL,
		TargetURL: target,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func recordFromAd(a *models.Ad) fileRecord {
	return fileRecord{
		ID:        a.ID,
		Title:     a.Title,
		ImageURL:  a.ImageURL,
		TargetURL: a.TargetURL,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// FileStore persists ads and counters as three JSON documents. Every
// mutation holds mu around read, modify and write of the whole document,
// so concurrent requests inside one process never lose updates.
type FileStore struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
	// issued is the highest id handed out per type, so deleting the newest
	// ad never lets its id be reused.
	issued map[models.AdType]int64
}

// NewFileStore opens the store rooted at dir, creating the directory and
// empty documents when missing.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		issued: make(map[models.AdType]int64),
	}

	for _, t := range models.AdTypes {
		if _, err := os.Stat(s.adsPath(t)); errors.Is(err, fs.ErrNotExist) {
			if err := s.writeJSON(s.adsPath(t), []fileRecord{}); err != nil {
				return nil, err
			}
		}
		ads, err := s.readAds(t)
		if err != nil {
			return nil, err
		}
		s.issued[t] = nextNumericID(ads, 0) - 1
	}
	if _, err := os.Stat(s.countersPath()); errors.Is(err, fs.ErrNotExist) {
		if err := s.writeJSON(s.countersPath(), models.NewCounterTable()); err != nil {
			return nil, err
		}
	}

	logger.Info("file store ready", zap.String("dir", dir))
	return s, nil
}

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) adsPath(t models.AdType) string {
	if t == models.AdTypeFullscreen {
		return filepath.Join(s.dir, fullscreenFile)
	}
	return filepath.Join(s.dir, bannersFile)
}

func (s *FileStore) countersPath() string {
	return filepath.Join(s.dir, countersFile)
}

// =============================================
// Ads
// =============================================

func (s *FileStore) ListAds(ctx context.Context, t models.AdType) ([]*models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAds(t)
}

func (s *FileStore) GetAd(ctx context.Context, t models.AdType, id string) (*models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ads, err := s.readAds(t)
	if err != nil {
		return nil, err
	}
	for _, ad := range ads {
		if ad.ID == id {
			return ad, nil
		}
	}
	return nil, nil
}

func (s *FileStore) CreateAd(ctx context.Context, t models.AdType, in models.AdInput) (*models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ads, err := s.readAds(t)
	if err != nil {
		return nil, err
	}

	next := nextNumericID(ads, s.issued[t])
	now := s.now()
	ad := &models.Ad{
		ID:        strconv.FormatInt(next, 10),
		Title:     in.Title,
		ImageURL:  in.ImageURL,
		TargetURL: in.TargetURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.writeAds(t, append(ads, ad)); err != nil {
		return nil, err
	}
	s.issued[t] = next
	return ad.Clone(), nil
}

func (s *FileStore) UpdateAd(ctx context.Context, t models.AdType, id string, in models.AdInput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ads, err := s.readAds(t)
	if err != nil {
		return false, err
	}
	for _, ad := range ads {
		if ad.ID != id {
			continue
		}
		ad.Title = in.Title
		ad.ImageURL = in.ImageURL
		ad.TargetURL = in.TargetURL
		ad.UpdatedAt = s.now()
		if err := s.writeAds(t, ads); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (s *FileStore) DeleteAd(ctx context.Context, t models.AdType, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ads, err := s.readAds(t)
	if err != nil {
		return false, err
	}
	for i, ad := range ads {
		if ad.ID != id {
			continue
		}
		kept := append(ads[:i:i], ads[i+1:]...)
		if err := s.writeAds(t, kept); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// =============================================
// Counters
// =============================================

func (s *FileStore) Increment(ctx context.Context, t models.AdType, id string, kind models.EventKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.readCounters()
	if err != nil {
		return err
	}
	table.Add(t, id, kind, 1)
	return s.writeJSON(s.countersPath(), table)
}

func (s *FileStore) Counters(ctx context.Context) (*models.CounterTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCounters()
}

// =============================================
// Lifecycle
// =============================================

// Health verifies the data directory is still readable and writable.
func (s *FileStore) Health(ctx context.Context) error {
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return fmt.Errorf("data directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *FileStore) Close() error { return nil }

// =============================================
// Document I/O (callers hold mu, except during construction)
// =============================================

func (s *FileStore) readAds(t models.AdType) ([]*models.Ad, error) {
	var records []fileRecord
	if err := s.readJSON(s.adsPath(t), &records); err != nil {
		return nil, err
	}
	ads := make([]*models.Ad, 0, len(records))
	for _, r := range records {
		ads = append(ads, r.toAd())
	}
	return ads, nil
}

func (s *FileStore) writeAds(t models.AdType, ads []*models.Ad) error {
	records := make([]fileRecord, 0, len(ads))
	for _, ad := range ads {
		records = append(records, recordFromAd(ad))
	}
	return s.writeJSON(s.adsPath(t), records)
}

func (s *FileStore) readCounters() (*models.CounterTable, error) {
	table := models.NewCounterTable()
	if err := s.readJSON(s.countersPath(), table); err != nil {
		return nil, err
	}
	if table.Impressions == nil {
		table.Impressions = make(map[string]int64)
	}
	if table.Clicks == nil {
		table.Clicks = make(map[string]int64)
	}
	return table, nil
}

func (s *FileStore) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
