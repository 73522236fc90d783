package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/game-ads/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxWatchRetries = 3

// RedisStore keeps ads in Redis using a hierarchical key layout:
//
//	{prefix}:{type}:{id}              hash with the ad fields
//	{prefix}:index:{type}             sorted set of ids scored by creation time
//	{prefix}:counters:impressions     hash of "{type}_{id}" -> count
//	{prefix}:counters:clicks          hash of "{type}_{id}" -> count
//
// Ids are push-style opaque keys (time-ordered UUIDs). The {prefix}:{type}
// namespace holds nothing but ad hashes, and ids that would reach outside
// it are reported as not found. Counter increments use HINCRBY and are
// atomic on the server.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client, prefix string, timeout time.Duration, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "ads"
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) adKey(t models.AdType, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, t, id)
}

func (s *RedisStore) indexKey(t models.AdType) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, t)
}

// validID rejects ids that cannot name a record this store wrote.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, ":*?[] ")
}

func (s *RedisStore) counterKey(kind models.EventKind) string {
	if kind == models.EventClick {
		return s.prefix + ":counters:clicks"
	}
	return s.prefix + ":counters:impressions"
}

func (s *RedisStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

// =============================================
// Ads
// =============================================

func (s *RedisStore) ListAds(ctx context.Context, t models.AdType) ([]*models.Ad, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	ids, err := s.client.ZRange(ctx, s.indexKey(t), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w", t, err)
	}
	if len(ids) == 0 {
		return []*models.Ad{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.adKey(t, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s ads: %w", t, err)
	}

	ads := make([]*models.Ad, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Index entry without a record: tolerated, skipped.
			continue
		}
		ads = append(ads, adFromHash(ids[i], fields))
	}
	return ads, nil
}

func (s *RedisStore) GetAd(ctx context.Context, t models.AdType, id string) (*models.Ad, error) {
	if !validID(id) {
		return nil, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, s.adKey(t, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s ad: %w", t, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return adFromHash(id, fields), nil
}

func (s *RedisStore) CreateAd(ctx context.Context, t models.AdType, in models.AdInput) (*models.Ad, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	key, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ad id: %w", err)
	}
	now := s.now()
	ad := &models.Ad{
		ID:        key.String(),
		Title:     in.Title,
		ImageURL:  in.ImageURL,
		TargetURL: in.TargetURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.adKey(t, ad.ID), hashFromAd(ad))
		pipe.ZAdd(ctx, s.indexKey(t), redis.Z{Score: float64(now.UnixMilli()), Member: ad.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s ad: %w", t, err)
	}
	return ad, nil
}

func (s *RedisStore) UpdateAd(ctx context.Context, t models.AdType, id string, in models.AdInput) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	key := s.adKey(t, id)
	found := false
	update := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			found = false
			return nil
		}
		found = true
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"title", in.Title,
				"imageUrl", in.ImageURL,
				"targetUrl", in.TargetURL,
				"updatedAt", s.now().Format(time.RFC3339Nano),
			)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = s.client.Watch(ctx, update, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return false, fmt.Errorf("failed to update %s ad: %w", t, err)
	}
	return found, nil
}

func (s *RedisStore) DeleteAd(ctx context.Context, t models.AdType, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.adKey(t, id))
		pipe.ZRem(ctx, s.indexKey(t), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete %s ad: %w", t, err)
	}
	return del.Val() > 0, nil
}

// =============================================
// Counters
// =============================================

func (s *RedisStore) Increment(ctx context.Context, t models.AdType, id string, kind models.EventKind) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	if err := s.client.HIncrBy(ctx, s.counterKey(kind), models.CounterKey(t, id), 1).Err(); err != nil {
		return fmt.Errorf("failed to increment %s counter: %w", kind, err)
	}
	return nil
}

func (s *RedisStore) Counters(ctx context.Context) (*models.CounterTable, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var imps, clicks *redis.MapStringStringCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		imps = pipe.HGetAll(ctx, s.counterKey(models.EventImpression))
		clicks = pipe.HGetAll(ctx, s.counterKey(models.EventClick))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	table := models.NewCounterTable()
	fillCounts(table.Impressions, imps.Val(), s.logger)
	fillCounts(table.Clicks, clicks.Val(), s.logger)
	return table, nil
}

func fillCounts(dst map[string]int64, src map[string]string, logger *zap.Logger) {
	for k, v := range src {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			logger.Warn("ignoring malformed counter", zap.String("key", k), zap.String("value", v))
			continue
		}
		dst[k] = n
	}
}

// =============================================
// Lifecycle
// =============================================

func (s *RedisStore) Health(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisStore) Close() error { return nil }

// =============================================
// Hash encoding
// =============================================

func hashFromAd(a *models.Ad) map[string]any {
	return map[string]any{
		"title":     a.Title,
		"imageUrl":  a.ImageURL,
		"targetUrl": a.TargetURL,
		"createdAt": a.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": a.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func adFromHash(id string, fields map[string]string) *models.Ad {
	ad := &models.Ad{
		ID:        id,
		Title:     fields["title"],
		ImageURL:  fields["imageUrl"],
		TargetURL: fields["targetUrl"],
	}
	if ad.TargetURL == "" {
		ad.TargetURL = fields["linkUrl"]
	}
	ad.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["createdAt"])
	ad.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updatedAt"])
	return ad
}
