package ads

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/game-ads/internal/models"
)

func record(t *testing.T, f *fixture, adType, id string, kind models.EventKind, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := f.events.Record(context.Background(), adType, id, kind); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
}

func TestAdStatsCTR(t *testing.T) {
	tests := []struct {
		impressions, clicks int
		want                float64
	}{
		{0, 0, 0},
		{3, 0, 0},
		{3, 1, 33.33},
		{8, 1, 12.5},
		{7, 2, 28.57},
		{0, 2, 0},
	}

	for _, tt := range tests {
		f := newFixture(t, nil)
		ctx := context.Background()
		ad, err := f.ads.Create(ctx, models.AdTypeBanner, validInput())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		record(t, f, "banner", ad.ID, models.EventImpression, tt.impressions)
		record(t, f, "banner", ad.ID, models.EventClick, tt.clicks)

		stats, err := f.reporting.AdStats(ctx, models.AdTypeBanner, ad.ID)
		if err != nil {
			t.Fatalf("AdStats: %v", err)
		}
		if stats.Impressions != int64(tt.impressions) || stats.Clicks != int64(tt.clicks) {
			t.Errorf("counts = %d/%d, want %d/%d", stats.Impressions, stats.Clicks, tt.impressions, tt.clicks)
		}
		if stats.CTR != tt.want {
			t.Errorf("N=%d M=%d: ctr = %v, want %v", tt.impressions, tt.clicks, stats.CTR, tt.want)
		}
	}
}

func TestSnapshotAggregates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, _ := f.ads.Create(ctx, models.AdTypeBanner, validInput())
	b, _ := f.ads.Create(ctx, models.AdTypeBanner, validInput())
	f.ads.Create(ctx, models.AdTypeFullscreen, validInput())

	record(t, f, "banner", a.ID, models.EventImpression, 5)
	record(t, f, "banner", a.ID, models.EventClick, 1)
	record(t, f, "banner", b.ID, models.EventImpression, 1)
	record(t, f, "banner", b.ID, models.EventClick, 1)
	// Orphaned counters are tolerated and excluded from totals.
	record(t, f, "banner", "999", models.EventImpression, 10)

	snap, err := f.reporting.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	banner := snap.Banner
	if banner.AdsCount != 2 {
		t.Errorf("ads_count = %d, want 2", banner.AdsCount)
	}
	if banner.TotalImpressions != 6 || banner.TotalClicks != 2 {
		t.Errorf("totals = %d/%d, want 6/2", banner.TotalImpressions, banner.TotalClicks)
	}
	if banner.CTR != 33.33 {
		t.Errorf("ctr = %v, want 33.33", banner.CTR)
	}
	if len(banner.Ads) != 2 || banner.Ads[0].ID != a.ID || banner.Ads[0].CTR != 20 || banner.Ads[1].CTR != 100 {
		t.Errorf("ads = %+v", banner.Ads)
	}

	full := snap.Fullscreen
	if full.AdsCount != 1 || full.TotalImpressions != 0 || full.CTR != 0 {
		t.Errorf("fullscreen = %+v, want one ad and zero ctr", full)
	}
	if got := testutil.ToFloat64(f.metrics.Ads.WithLabelValues("banner")); got != 2 {
		t.Errorf("ads gauge = %v, want 2", got)
	}
}

func TestSnapshotReflectsLatestState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ad, _ := f.ads.Create(ctx, models.AdTypeBanner, validInput())

	record(t, f, "banner", ad.ID, models.EventImpression, 3)
	first, _ := f.reporting.TypeSnapshot(ctx, models.AdTypeBanner)
	record(t, f, "banner", ad.ID, models.EventImpression, 1)
	second, _ := f.reporting.TypeSnapshot(ctx, models.AdTypeBanner)

	if first.TotalImpressions != 3 || second.TotalImpressions != 4 {
		t.Errorf("impressions = %d then %d, want 3 then 4", first.TotalImpressions, second.TotalImpressions)
	}
}

func TestSnapshotBrokenBackend(t *testing.T) {
	f := newFixture(t, brokenBackend{})
	if _, err := f.reporting.Snapshot(context.Background()); !errors.Is(err, ErrStorage) {
		t.Errorf("err = %v, want ErrStorage", err)
	}
}

func TestAdStatsMissing(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.reporting.AdStats(context.Background(), models.AdTypeBanner, "5"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
