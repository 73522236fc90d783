package storage

import (
	"context"
	"time"

	"github.com/radiusdt/game-ads/internal/metrics"
	"github.com/radiusdt/game-ads/internal/models"
)

// Instrumented wraps a Backend and records latency and failures of every
// call under the backend's name.
type Instrumented struct {
	Backend
	metrics *metrics.Metrics
}

// NewInstrumented returns b unchanged when m is nil.
func NewInstrumented(b Backend, m *metrics.Metrics) Backend {
	if m == nil || b == nil {
		return b
	}
	return &Instrumented{Backend: b, metrics: m}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	s.metrics.RecordStoreOp(s.Backend.Name(), op, time.Since(start), err)
}

func (s *Instrumented) ListAds(ctx context.Context, t models.AdType) (ads []*models.Ad, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())
	return s.Backend.ListAds(ctx, t)
}

func (s *Instrumented) GetAd(ctx context.Context, t models.AdType, id string) (ad *models.Ad, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.Backend.GetAd(ctx, t, id)
}

func (s *Instrumented) CreateAd(ctx context.Context, t models.AdType, in models.AdInput) (ad *models.Ad, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())
	return s.Backend.CreateAd(ctx, t, in)
}

func (s *Instrumented) UpdateAd(ctx context.Context, t models.AdType, id string, in models.AdInput) (ok bool, err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())
	return s.Backend.UpdateAd(ctx, t, id, in)
}

func (s *Instrumented) DeleteAd(ctx context.Context, t models.AdType, id string) (ok bool, err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.Backend.DeleteAd(ctx, t, id)
}

func (s *Instrumented) Increment(ctx context.Context, t models.AdType, id string, kind models.EventKind) (err error) {
	defer func(start time.Time) { s.observe("increment", start, err) }(time.Now())
	return s.Backend.Increment(ctx, t, id, kind)
}

func (s *Instrumented) Counters(ctx context.Context) (table *models.CounterTable, err error) {
	defer func(start time.Time) { s.observe("counters", start, err) }(time.Now())
	return s.Backend.Counters(ctx)
}
