package ads

import (
	"context"
	"errors"
	"testing"

	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

func TestCreateThenGet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ad, err := f.ads.Create(ctx, models.AdTypeBanner, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ad.ID != "1" {
		t.Errorf("id = %q, want %q", ad.ID, "1")
	}

	got, err := f.ads.Get(ctx, models.AdTypeBanner, ad.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Promo" || got.ImageURL != "https://x/img.png" || got.TargetURL != "https://x" {
		t.Errorf("Get = %+v", got)
	}

	list := f.ads.List(ctx, models.AdTypeBanner)
	if len(list) != 1 || list[0].ID != "1" {
		t.Errorf("List = %+v, want one ad with id 1", list)
	}
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.ads.Get(context.Background(), models.AdTypeFullscreen, "42")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateInvalidNotApplied(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.ads.Create(ctx, models.AdTypeBanner, models.AdInput{Title: "No target", ImageURL: "https://x/a.png"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if list := f.ads.List(ctx, models.AdTypeBanner); len(list) != 0 {
		t.Errorf("List len = %d, want 0", len(list))
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ad, _ := f.ads.Create(ctx, models.AdTypeBanner, validInput())

	ok, err := f.ads.Update(ctx, models.AdTypeBanner, ad.ID, models.AdInput{Title: "Bad", ImageURL: "https://x/b.png"})
	if !errors.Is(err, ErrValidation) || ok {
		t.Fatalf("invalid Update = %v, %v; want false, ErrValidation", ok, err)
	}
	got, _ := f.ads.Get(ctx, models.AdTypeBanner, ad.ID)
	if got.Title != "Promo" {
		t.Errorf("invalid update applied: %+v", got)
	}

	ok, err = f.ads.Update(ctx, models.AdTypeBanner, "999", validInput())
	if err != nil || ok {
		t.Errorf("Update missing = %v, %v; want false, nil", ok, err)
	}
	if list := f.ads.List(ctx, models.AdTypeBanner); len(list) != 1 {
		t.Errorf("List len = %d, want 1", len(list))
	}

	ok, err = f.ads.Update(ctx, models.AdTypeBanner, ad.ID, models.AdInput{Title: "New", ImageURL: "https://imgur.com/zz", TargetURL: "https://y"})
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v; want true, nil", ok, err)
	}
	got, _ = f.ads.Get(ctx, models.AdTypeBanner, ad.ID)
	if got.Title != "New" || got.ImageURL != "https://i.imgur.com/zz.png" || got.TargetURL != "https://y" {
		t.Errorf("after update = %+v", got)
	}
}

func TestDeleteTwice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ad, _ := f.ads.Create(ctx, models.AdTypeFullscreen, validInput())

	if ok, err := f.ads.Delete(ctx, models.AdTypeFullscreen, ad.ID); err != nil || !ok {
		t.Fatalf("first Delete = %v, %v", ok, err)
	}
	before := len(f.ads.List(ctx, models.AdTypeFullscreen))
	if ok, err := f.ads.Delete(ctx, models.AdTypeFullscreen, ad.ID); err != nil || ok {
		t.Errorf("second Delete = %v, %v; want false, nil", ok, err)
	}
	if after := len(f.ads.List(ctx, models.AdTypeFullscreen)); after != before {
		t.Errorf("len changed from %d to %d", before, after)
	}
}

func TestBrokenBackend(t *testing.T) {
	f := newFixture(t, brokenBackend{})
	ctx := context.Background()

	if list := f.ads.List(ctx, models.AdTypeBanner); list == nil || len(list) != 0 {
		t.Errorf("List = %v, want empty non-nil", list)
	}
	if _, err := f.ads.ListStrict(ctx, models.AdTypeBanner); !errors.Is(err, ErrStorage) {
		t.Errorf("ListStrict err = %v, want ErrStorage", err)
	}
	if _, err := f.ads.Get(ctx, models.AdTypeBanner, "1"); !errors.Is(err, ErrStorage) {
		t.Errorf("Get err = %v, want ErrStorage", err)
	}
	if _, err := f.ads.Create(ctx, models.AdTypeBanner, validInput()); !errors.Is(err, ErrStorage) {
		t.Errorf("Create err = %v, want ErrStorage", err)
	}
	if _, err := f.ads.Delete(ctx, models.AdTypeBanner, "1"); !errors.Is(err, ErrStorage) {
		t.Errorf("Delete err = %v, want ErrStorage", err)
	}
}

func TestNoBackend(t *testing.T) {
	s := NewAdService(nil, NewNormalizer(config.Default().Ads), zap.NewNop())
	ctx := context.Background()

	if s.Available() {
		t.Error("Available = true with nil repo")
	}
	if list := s.List(ctx, models.AdTypeBanner); len(list) != 0 {
		t.Errorf("List = %v, want empty", list)
	}
	if _, err := s.Create(ctx, models.AdTypeBanner, validInput()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Create err = %v, want ErrBackendUnavailable", err)
	}
	if _, err := s.Get(ctx, models.AdTypeBanner, "1"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Get err = %v, want ErrBackendUnavailable", err)
	}
}
