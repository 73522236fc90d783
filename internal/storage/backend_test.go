package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/radiusdt/game-ads/internal/models"
)

// runBackendSuite exercises the behaviour every Backend must share.
func runBackendSuite(t *testing.T, open func(t *testing.T) Backend) {
	t.Helper()

	t.Run("CreateThenGet", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		in := models.AdInput{Title: "Promo", ImageURL: "https://x/img.png", TargetURL: "https://x"}

		ad, err := b.CreateAd(ctx, models.AdTypeBanner, in)
		if err != nil {
			t.Fatalf("CreateAd: %v", err)
		}
		if ad.ID == "" {
			t.Fatal("CreateAd returned empty id")
		}
		if ad.CreatedAt.IsZero() || !ad.CreatedAt.Equal(ad.UpdatedAt) {
			t.Errorf("timestamps = %v / %v, want equal and set", ad.CreatedAt, ad.UpdatedAt)
		}

		got, err := b.GetAd(ctx, models.AdTypeBanner, ad.ID)
		if err != nil {
			t.Fatalf("GetAd: %v", err)
		}
		if got == nil {
			t.Fatal("GetAd returned nil for created ad")
		}
		if got.ID != ad.ID || got.Title != in.Title || got.ImageURL != in.ImageURL || got.TargetURL != in.TargetURL {
			t.Errorf("GetAd = %+v, want fields of %+v", got, ad)
		}
	})

	t.Run("CollectionsAreSeparate", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		ad, err := b.CreateAd(ctx, models.AdTypeFullscreen, models.AdInput{Title: "F", ImageURL: "https://x/f.png", TargetURL: "https://x"})
		if err != nil {
			t.Fatalf("CreateAd: %v", err)
		}

		banners, err := b.ListAds(ctx, models.AdTypeBanner)
		if err != nil {
			t.Fatalf("ListAds: %v", err)
		}
		if len(banners) != 0 {
			t.Errorf("banners = %d, want 0", len(banners))
		}
		if got, _ := b.GetAd(ctx, models.AdTypeBanner, ad.ID); got != nil {
			t.Errorf("fullscreen ad visible as banner: %+v", got)
		}
	})

	t.Run("DistinctIDsInCreationOrder", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		var want []string
		seen := make(map[string]bool)
		for i := 0; i < 8; i++ {
			ad, err := b.CreateAd(ctx, models.AdTypeBanner, models.AdInput{
				Title:     fmt.Sprintf("ad %d", i),
				ImageURL:  "https://x/img.png",
				TargetURL: "https://x",
			})
			if err != nil {
				t.Fatalf("CreateAd #%d: %v", i, err)
			}
			if seen[ad.ID] {
				t.Fatalf("duplicate id %q", ad.ID)
			}
			seen[ad.ID] = true
			want = append(want, ad.ID)
		}

		list, err := b.ListAds(ctx, models.AdTypeBanner)
		if err != nil {
			t.Fatalf("ListAds: %v", err)
		}
		if len(list) != len(want) {
			t.Fatalf("len = %d, want %d", len(list), len(want))
		}
		for i, ad := range list {
			if ad.ID != want[i] {
				t.Errorf("list[%d] = %q, want %q", i, ad.ID, want[i])
			}
		}
	})

	t.Run("UpdateMissingLeavesCollection", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		if _, err := b.CreateAd(ctx, models.AdTypeBanner, models.AdInput{Title: "A", ImageURL: "https://x/a.png", TargetURL: "https://x"}); err != nil {
			t.Fatalf("CreateAd: %v", err)
		}
		before, _ := b.ListAds(ctx, models.AdTypeBanner)

		ok, err := b.UpdateAd(ctx, models.AdTypeBanner, "9999", models.AdInput{Title: "B", ImageURL: "https://x/b.png", TargetURL: "https://y"})
		if err != nil {
			t.Fatalf("UpdateAd: %v", err)
		}
		if ok {
			t.Fatal("UpdateAd on missing id returned true")
		}

		after, _ := b.ListAds(ctx, models.AdTypeBanner)
		if len(after) != len(before) || after[0].Title != before[0].Title {
			t.Errorf("collection changed: before %+v after %+v", before[0], after[0])
		}
	})

	t.Run("UpdateRefreshesFields", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		ad, err := b.CreateAd(ctx, models.AdTypeBanner, models.AdInput{Title: "A", ImageURL: "https://x/a.png", TargetURL: "https://x"})
		if err != nil {
			t.Fatalf("CreateAd: %v", err)
		}

		ok, err := b.UpdateAd(ctx, models.AdTypeBanner, ad.ID, models.AdInput{Title: "B", ImageURL: "https://x/b.png", TargetURL: "https://y"})
		if err != nil || !ok {
			t.Fatalf("UpdateAd = %v, %v; want true, nil", ok, err)
		}

		got, _ := b.GetAd(ctx, models.AdTypeBanner, ad.ID)
		if got.Title != "B" || got.ImageURL != "https://x/b.png" || got.TargetURL != "https://y" {
			t.Errorf("GetAd after update = %+v", got)
		}
		if got.ID != ad.ID {
			t.Errorf("id changed from %q to %q", ad.ID, got.ID)
		}
		if !got.CreatedAt.Equal(ad.CreatedAt) {
			t.Errorf("createdAt changed from %v to %v", ad.CreatedAt, got.CreatedAt)
		}
		if got.UpdatedAt.Before(ad.UpdatedAt) {
			t.Errorf("updatedAt went backwards: %v < %v", got.UpdatedAt, ad.UpdatedAt)
		}
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		ad, err := b.CreateAd(ctx, models.AdTypeBanner, models.AdInput{Title: "A", ImageURL: "https://x/a.png", TargetURL: "https://x"})
		if err != nil {
			t.Fatalf("CreateAd: %v", err)
		}

		ok, err := b.DeleteAd(ctx, models.AdTypeBanner, ad.ID)
		if err != nil || !ok {
			t.Fatalf("first DeleteAd = %v, %v; want true, nil", ok, err)
		}
		ok, err = b.DeleteAd(ctx, models.AdTypeBanner, ad.ID)
		if err != nil {
			t.Fatalf("second DeleteAd: %v", err)
		}
		if ok {
			t.Error("second DeleteAd returned true")
		}

		list, _ := b.ListAds(ctx, models.AdTypeBanner)
		if len(list) != 0 {
			t.Errorf("len = %d, want 0", len(list))
		}
		if got, _ := b.GetAd(ctx, models.AdTypeBanner, ad.ID); got != nil {
			t.Errorf("deleted ad still readable: %+v", got)
		}
	})

	t.Run("CountersWithoutAd", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			if err := b.Increment(ctx, models.AdTypeBanner, "77", models.EventImpression); err != nil {
				t.Fatalf("Increment: %v", err)
			}
		}
		if err := b.Increment(ctx, models.AdTypeBanner, "77", models.EventClick); err != nil {
			t.Fatalf("Increment: %v", err)
		}

		table, err := b.Counters(ctx)
		if err != nil {
			t.Fatalf("Counters: %v", err)
		}
		imps, clicks := table.Get(models.AdTypeBanner, "77")
		if imps != 3 || clicks != 1 {
			t.Errorf("counters = %d/%d, want 3/1", imps, clicks)
		}
		if imps, clicks := table.Get(models.AdTypeFullscreen, "77"); imps != 0 || clicks != 0 {
			t.Errorf("fullscreen counters = %d/%d, want 0/0", imps, clicks)
		}
	})

	t.Run("ConcurrentIncrements", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		const workers, each = 8, 25

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < each; i++ {
					if err := b.Increment(ctx, models.AdTypeFullscreen, "1", models.EventImpression); err != nil {
						errs <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("Increment: %v", err)
		}

		table, err := b.Counters(ctx)
		if err != nil {
			t.Fatalf("Counters: %v", err)
		}
		if imps, _ := table.Get(models.AdTypeFullscreen, "1"); imps != workers*each {
			t.Errorf("impressions = %d, want %d", imps, workers*each)
		}
	})

	t.Run("UnknownIDsAreNotFound", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		in := models.AdInput{Title: "Promo", ImageURL: "https://x/img.png", TargetURL: "https://x"}
		for i := 0; i < 2; i++ {
			if _, err := b.CreateAd(ctx, models.AdTypeBanner, in); err != nil {
				t.Fatalf("CreateAd: %v", err)
			}
		}

		for _, id := range []string{"index", "counters", "01", "+1", "", "banner:1", "*"} {
			if got, err := b.GetAd(ctx, models.AdTypeBanner, id); err != nil || got != nil {
				t.Errorf("GetAd(%q) = %+v, %v; want nil, nil", id, got, err)
			}
			if ok, err := b.UpdateAd(ctx, models.AdTypeBanner, id, in); err != nil || ok {
				t.Errorf("UpdateAd(%q) = %v, %v; want false, nil", id, ok, err)
			}
			if ok, err := b.DeleteAd(ctx, models.AdTypeBanner, id); err != nil || ok {
				t.Errorf("DeleteAd(%q) = %v, %v; want false, nil", id, ok, err)
			}
		}

		ads, err := b.ListAds(ctx, models.AdTypeBanner)
		if err != nil {
			t.Fatalf("ListAds: %v", err)
		}
		if len(ads) != 2 {
			t.Errorf("len = %d, want 2", len(ads))
		}
	})

	t.Run("Health", func(t *testing.T) {
		b := open(t)
		if err := b.Health(context.Background()); err != nil {
			t.Errorf("Health: %v", err)
		}
	})
}

// runSequentialIDSuite checks the numeric id policy of the file and SQL backends.
func runSequentialIDSuite(t *testing.T, open func(t *testing.T) Backend) {
	t.Helper()

	t.Run("FirstIDIsOne", func(t *testing.T) {
		b := open(t)
		ad, err := b.CreateAd(context.Background(), models.AdTypeBanner, models.AdInput{Title: "Promo", ImageURL: "https://x/img.png", TargetURL: "https://x"})
		if err != nil {
			t.Fatalf("CreateAd: %v", err)
		}
		if ad.ID != "1" {
			t.Errorf("id = %q, want %q", ad.ID, "1")
		}
	})

	t.Run("NoReuseAfterDeletingNewest", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		in := models.AdInput{Title: "A", ImageURL: "https://x/a.png", TargetURL: "https://x"}

		first, _ := b.CreateAd(ctx, models.AdTypeBanner, in)
		second, _ := b.CreateAd(ctx, models.AdTypeBanner, in)
		if first.ID != "1" || second.ID != "2" {
			t.Fatalf("ids = %q, %q; want 1, 2", first.ID, second.ID)
		}
		if ok, err := b.DeleteAd(ctx, models.AdTypeBanner, second.ID); !ok || err != nil {
			t.Fatalf("DeleteAd = %v, %v", ok, err)
		}

		third, err := b.CreateAd(ctx, models.AdTypeBanner, in)
		if err != nil {
			t.Fatalf("CreateAd: %v", err)
		}
		if third.ID != "3" {
			t.Errorf("id after delete = %q, want %q", third.ID, "3")
		}
	})

	t.Run("ConcurrentCreatesDistinct", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()
		const n = 16

		ids := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ad, err := b.CreateAd(ctx, models.AdTypeFullscreen, models.AdInput{Title: "C", ImageURL: "https://x/c.png", TargetURL: "https://x"})
				if err != nil {
					t.Errorf("CreateAd: %v", err)
					return
				}
				ids <- ad.ID
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			if seen[id] {
				t.Errorf("duplicate id %q", id)
			}
			seen[id] = true
		}
		list, _ := b.ListAds(ctx, models.AdTypeFullscreen)
		if len(list) != n {
			t.Errorf("len = %d, want %d", len(list), n)
		}
	})
}
