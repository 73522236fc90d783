package ads

import (
	"context"
	"time"

	"github.com/radiusdt/game-ads/internal/metrics"
	"github.com/radiusdt/game-ads/internal/models"
	"github.com/radiusdt/game-ads/internal/storage"
	"go.uber.org/zap"
)

// ReportingService joins ads with their counters. Nothing is cached; every
// call reads the store.
type ReportingService struct {
	ads      *AdService
	counters storage.CounterStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(ads *AdService, counters storage.CounterStore, m *metrics.Metrics, logger *zap.Logger) *ReportingService {
	return &ReportingService{
		ads:      ads,
		counters: counters,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot computes both collections from one read of the counter table.
func (s *ReportingService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	table, err := s.readCounters(ctx)
	if err != nil {
		return nil, err
	}

	snap := &models.Snapshot{GeneratedAt: s.now()}
	for _, t := range models.AdTypes {
		ts, err := s.join(ctx, t, table)
		if err != nil {
			return nil, err
		}
		*snap.ForType(t) = *ts
	}
	return snap, nil
}

// TypeSnapshot computes one collection.
func (s *ReportingService) TypeSnapshot(ctx context.Context, t models.AdType) (*models.TypeSnapshot, error) {
	table, err := s.readCounters(ctx)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, t, table)
}

// AdStats returns one ad with its counters.
func (s *ReportingService) AdStats(ctx context.Context, t models.AdType, id string) (*models.AdStats, error) {
	ad, err := s.ads.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	table, err := s.readCounters(ctx)
	if err != nil {
		return nil, err
	}
	stats := enrich(t, ad, table)
	return &stats, nil
}

func (s *ReportingService) readCounters(ctx context.Context) (*models.CounterTable, error) {
	if s.counters == nil {
		return nil, ErrBackendUnavailable
	}
	table, err := s.counters.Counters(ctx)
	if err != nil {
		s.logger.Error("failed to read counters", zap.Error(err))
		return nil, storageError("counters", err)
	}
	return table, nil
}

func (s *ReportingService) join(ctx context.Context, t models.AdType, table *models.CounterTable) (*models.TypeSnapshot, error) {
	list, err := s.ads.ListStrict(ctx, t)
	if err != nil {
		return nil, err
	}

	ts := &models.TypeSnapshot{
		Type:     t,
		AdsCount: len(list),
		Ads:      make([]models.AdStats, 0, len(list)),
	}
	for _, ad := range list {
		stats := enrich(t, ad, table)
		ts.TotalImpressions += stats.Impressions
		ts.TotalClicks += stats.Clicks
		ts.Ads = append(ts.Ads, stats)
	}
	ts.CTR = models.CTR(ts.TotalClicks, ts.TotalImpressions)

	if s.metrics != nil {
		s.metrics.SetAdCount(t.String(), ts.AdsCount)
	}
	return ts, nil
}

func enrich(t models.AdType, ad *models.Ad, table *models.CounterTable) models.AdStats {
	imps, clicks := table.Get(t, ad.ID)
	return models.AdStats{
		Ad:          *ad,
		Impressions: imps,
		Clicks:      clicks,
		CTR:         models.CTR(clicks, imps),
	}
}
