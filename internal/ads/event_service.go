package ads

import (
	"context"
	"strings"

	"github.com/radiusdt/game-ads/internal/metrics"
	"github.com/radiusdt/game-ads/internal/models"
	"github.com/radiusdt/game-ads/internal/storage"
	"go.uber.org/zap"
)

// EventService records impressions and clicks. It does not check that the
// ad exists: counters may outlive their ad.
type EventService struct {
	store   storage.CounterStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEventService constructs an EventService. store may be nil when no
// backend is configured; m may be nil to skip instrumentation.
func NewEventService(store storage.CounterStore, m *metrics.Metrics, logger *zap.Logger) *EventService {
	return &EventService{store: store, metrics: m, logger: logger}
}

// Record validates the raw event fields and increments the matching counter.
func (s *EventService) Record(ctx context.Context, rawType, id string, kind models.EventKind) error {
	rawType = strings.TrimSpace(rawType)
	if rawType == "" {
		return s.reject("missing_type", invalid("type is required"))
	}
	t, err := models.ParseAdType(rawType)
	if err != nil {
		return s.reject("invalid_type", invalid("type must be banner or fullscreen, got %q", rawType))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return s.reject("missing_id", invalid("adId is required"))
	}
	if !kind.Valid() {
		return s.reject("invalid_kind", invalid("unknown event kind %q", kind))
	}
	if s.store == nil {
		return ErrBackendUnavailable
	}

	if err := s.store.Increment(ctx, t, id, kind); err != nil {
		s.logger.Error("failed to record event",
			zap.String("ad_type", t.String()),
			zap.String("ad_id", id),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return storageError("record "+string(kind), err)
	}

	if s.metrics != nil {
		s.metrics.RecordEvent(t.String(), string(kind))
	}
	s.logger.Debug("event recorded",
		zap.String("ad_type", t.String()),
		zap.String("ad_id", id),
		zap.String("kind", string(kind)),
	)
	return nil
}

func (s *EventService) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.RecordEventRejection(reason)
	}
	return err
}
