package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatorStats is the cached snapshot shown on a creator's dashboard.
type CreatorStats struct {
	CreatorID     uuid.UUID       `json:"creator_id"`
	ActiveMembers int             `json:"active_members"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
	Currency      string          `json:"currency"`
	DonationCount int             `json:"donation_count"`
	RefreshedAt   time.Time       `json:"refreshed_at"`
}

// RefreshCreatorStatsTask asks the worker to recompute one creator's cached
// stats. Enqueued after every reconciled charge.
type RefreshCreatorStatsTask struct {
	CreatorID uuid.UUID `json:"creator_id"`
}

// Source aggregates the raw numbers from storage.
type Source interface {
	CollectCreatorStats(ctx context.Context, creatorID uuid.UUID) (*CreatorStats, error)
}

// Cache stores serialized snapshots. Implemented by RedisCache in production
// and MemoryCache in tests.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("stats cache miss")

// Config holds stats service settings.
type Config struct {
	CacheTTL time.Duration `env:"STATS_CACHE_TTL" envDefault:"24h"`
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

// Service refreshes and serves cached creator stats.
type Service struct {
	src   Source
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewService creates the stats service.
func NewService(src Source, cache Cache, opts ...Option) *Service {
	s := &Service{
		src:   src,
		cache: cache,
		ttl:   24 * time.Hour,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cacheKey(creatorID uuid.UUID) string {
	return "stats:creator:" + creatorID.String()
}

// Refresh recomputes and caches one creator's stats.
func (s *Service) Refresh(ctx context.Context, creatorID uuid.UUID) (*CreatorStats, error) {
	cs, err := s.src.CollectCreatorStats(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("collect creator stats: %w", err)
	}
	cs.RefreshedAt = time.Now().UTC()

	raw, err := json.Marshal(cs)
	if err != nil {
		return nil, fmt.Errorf("marshal creator stats: %w", err)
	}
	if err := s.cache.Set(ctx, cacheKey(creatorID), raw, s.ttl); err != nil {
		return nil, fmt.Errorf("cache creator stats: %w", err)
	}

	s.log.InfoContext(ctx, "creator_stats_refreshed",
		slog.String("creator_id", creatorID.String()),
		slog.Int("active_members", cs.ActiveMembers))
	return cs, nil
}

// Get returns the cached snapshot, refreshing on a miss.
func (s *Service) Get(ctx context.Context, creatorID uuid.UUID) (*CreatorStats, error) {
	raw, err := s.cache.Get(ctx, cacheKey(creatorID))
	if errors.Is(err, ErrCacheMiss) {
		return s.Refresh(ctx, creatorID)
	}
	if err != nil {
		return nil, err
	}

	var cs CreatorStats
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("decode cached creator stats: %w", err)
	}
	return &cs, nil
}
