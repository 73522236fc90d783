package ads

import (
	"context"
	"strings"

	"github.com/radiusdt/game-ads/internal/models"
	"github.com/radiusdt/game-ads/internal/storage"
	"go.uber.org/zap"
)

// AdService provides CRUD operations over the banner and fullscreen
// collections. It validates input and turns backend failures into the
// package's sentinel errors; a nil backend yields ErrBackendUnavailable.
type AdService struct {
	repo   storage.AdRepo
	norm   *Normalizer
	logger *zap.Logger
}

// NewAdService constructs an AdService. repo may be nil when no backend
// could be configured.
func NewAdService(repo storage.AdRepo, norm *Normalizer, logger *zap.Logger) *AdService {
	return &AdService{repo: repo, norm: norm, logger: logger}
}

// Available reports whether a backend is configured.
func (s *AdService) Available() bool {
	return s.repo != nil
}

// List returns the ads of type t in creation order. It never fails: on a
// missing or failing backend it logs and returns an empty list.
func (s *AdService) List(ctx context.Context, t models.AdType) []*models.Ad {
	ads, err := s.ListStrict(ctx, t)
	if err != nil {
		s.logger.Error("listing ads failed, serving empty list",
			zap.String("ad_type", t.String()),
			zap.Error(err),
		)
		return []*models.Ad{}
	}
	return ads
}

// ListStrict is List with the failure reported to the caller.
func (s *AdService) ListStrict(ctx context.Context, t models.AdType) ([]*models.Ad, error) {
	if s.repo == nil {
		return nil, ErrBackendUnavailable
	}
	ads, err := s.repo.ListAds(ctx, t)
	if err != nil {
		return nil, storageError("list "+t.String(), err)
	}
	for _, ad := range ads {
		s.norm.Repair(t, ad)
	}
	return ads, nil
}

// Get returns one ad, ErrNotFound when absent or ErrStorage on I/O failure.
func (s *AdService) Get(ctx context.Context, t models.AdType, id string) (*models.Ad, error) {
	if s.repo == nil {
		return nil, ErrBackendUnavailable
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	ad, err := s.repo.GetAd(ctx, t, id)
	if err != nil {
		s.logger.Error("failed to get ad", zap.String("ad_type", t.String()), zap.String("ad_id", id), zap.Error(err))
		return nil, storageError("get "+t.String(), err)
	}
	if ad == nil {
		return nil, ErrNotFound
	}
	s.norm.Repair(t, ad)
	return ad, nil
}

// Create validates in and stores a new ad with a fresh id.
func (s *AdService) Create(ctx context.Context, t models.AdType, in models.AdInput) (*models.Ad, error) {
	if s.repo == nil {
		return nil, ErrBackendUnavailable
	}
	clean, err := s.norm.Normalize(t, in)
	if err != nil {
		return nil, err
	}

	ad, err := s.repo.CreateAd(ctx, t, clean)
	if err != nil {
		s.logger.Error("failed to create ad", zap.String("ad_type", t.String()), zap.Error(err))
		return nil, storageError("create "+t.String(), err)
	}

	s.logger.Info("ad created",
		zap.String("ad_type", t.String()),
		zap.String("ad_id", ad.ID),
		zap.String("title", ad.Title),
	)
	return ad, nil
}

// Update replaces the mutable fields of an ad. It returns false, nil when
// the id does not exist; invalid input is rejected before any write.
func (s *AdService) Update(ctx context.Context, t models.AdType, id string, in models.AdInput) (bool, error) {
	if s.repo == nil {
		return false, ErrBackendUnavailable
	}
	clean, err := s.norm.Normalize(t, in)
	if err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	ok, err := s.repo.UpdateAd(ctx, t, id, clean)
	if err != nil {
		s.logger.Error("failed to update ad", zap.String("ad_type", t.String()), zap.String("ad_id", id), zap.Error(err))
		return false, storageError("update "+t.String(), err)
	}
	if ok {
		s.logger.Info("ad updated", zap.String("ad_type", t.String()), zap.String("ad_id", id))
	}
	return ok, nil
}

// Delete removes an ad. A second delete of the same id returns false, nil.
// Counters of the deleted ad are kept.
func (s *AdService) Delete(ctx context.Context, t models.AdType, id string) (bool, error) {
	if s.repo == nil {
		return false, ErrBackendUnavailable
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	ok, err := s.repo.DeleteAd(ctx, t, id)
	if err != nil {
		s.logger.Error("failed to delete ad", zap.String("ad_type", t.String()), zap.String("ad_id", id), zap.Error(err))
		return false, storageError("delete "+t.String(), err)
	}
	if ok {
		s.logger.Info("ad deleted", zap.String("ad_type", t.String()), zap.String("ad_id", id))
	}
	return ok, nil
}
