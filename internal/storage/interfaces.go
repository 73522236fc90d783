package storage

import (
	"context"
	"strconv"

	"github.com/radiusdt/game-ads/internal/models"
)

// =============================================
// AD REPOSITORY
// =============================================

// AdRepo stores the banner and fullscreen collections.
//
// Absence is not an error: GetAd returns nil, nil and UpdateAd/DeleteAd
// return false, nil when the id is unknown. A non-nil error always means
// the backend itself failed.
type AdRepo interface {
	ListAds(ctx context.Context, t models.AdType) ([]*models.Ad, error)
	GetAd(ctx context.Context, t models.AdType, id string) (*models.Ad, error)
	CreateAd(ctx context.Context, t models.AdType, in models.AdInput) (*models.Ad, error)
	UpdateAd(ctx context.Context, t models.AdType, id string, in models.AdInput) (bool, error)
	DeleteAd(ctx context.Context, t models.AdType, id string) (bool, error)
}

// =============================================
// COUNTER STORE
// =============================================

// CounterStore keeps the impression and click counters. Increment must be
// atomic per key; it performs no check that the ad exists.
type CounterStore interface {
	Increment(ctx context.Context, t models.AdType, id string, kind models.EventKind) error
	Counters(ctx context.Context) (*models.CounterTable, error)
}

// =============================================
// BACKEND
// =============================================

// Backend is a complete persistence implementation.
type Backend interface {
	AdRepo
	CounterStore

	// Name identifies the backend in logs and metrics.
	Name() string
	Health(ctx context.Context) error
	Close() error
}

// parseSequentialID accepts only the canonical decimal form issued by the
// sequential backends, so "01" or "+1" do not alias "1".
func parseSequentialID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != id {
		return 0, false
	}
	return n, true
}

// nextNumericID returns one more than the larger of the highest numeric id
// in ads and floor. Non-numeric ids are ignored.
func nextNumericID(ads []*models.Ad, floor int64) int64 {
	max := floor
	for _, ad := range ads {
		n, err := strconv.ParseInt(ad.ID, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}
