package ads

import (
	"context"
	"errors"
	"testing"

	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/metrics"
	"github.com/radiusdt/game-ads/internal/models"
	"github.com/radiusdt/game-ads/internal/storage"
	"go.uber.org/zap"
)

var errDisk = errors.New("disk on fire")

// brokenBackend fails every call.
type brokenBackend struct{}

func (brokenBackend) ListAds(context.Context, models.AdType) ([]*models.Ad, error) {
	return nil, errDisk
}
func (brokenBackend) GetAd(context.Context, models.AdType, string) (*models.Ad, error) {
	return nil, errDisk
}
func (brokenBackend) CreateAd(context.Context, models.AdType, models.AdInput) (*models.Ad, error) {
	return nil, errDisk
}
func (brokenBackend) UpdateAd(context.Context, models.AdType, string, models.AdInput) (bool, error) {
	return false, errDisk
}
func (brokenBackend) DeleteAd(context.Context, models.AdType, string) (bool, error) {
	return false, errDisk
}
func (brokenBackend) Increment(context.Context, models.AdType, string, models.EventKind) error {
	return errDisk
}
func (brokenBackend) Counters(context.Context) (*models.CounterTable, error) { return nil, errDisk }
func (brokenBackend) Name() string                                          { return "broken" }
func (brokenBackend) Health(context.Context) error                          { return errDisk }
func (brokenBackend) Close() error                                          { return nil }

type fixture struct {
	backend   storage.Backend
	ads       *AdService
	events    *EventService
	reporting *ReportingService
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, backend storage.Backend) *fixture {
	t.Helper()
	if backend == nil {
		fs, err := storage.NewFileStore(t.TempDir(), zap.NewNop())
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		backend = fs
	}
	m := metrics.NewMetrics()
	logger := zap.NewNop()
	adSvc := NewAdService(backend, NewNormalizer(config.Default().Ads), logger)
	return &fixture{
		backend:   backend,
		ads:       adSvc,
		events:    NewEventService(backend, m, logger),
		reporting: NewReportingService(adSvc, backend, m, logger),
		metrics:   m,
	}
}

func validInput() models.AdInput {
	return models.AdInput{Title: "Promo", ImageURL: "https://x/img.png", TargetURL: "https://x"}
}
