package submission

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"judge-core/internal/db"
	"judge-core/internal/logging"
)

// pollTTL is deliberately short: submissions change state every few
// hundred milliseconds while a worker is actively running them, so a long
// TTL would make clients poll stale RUNNING rows past their actual
// terminal transition.
const pollTTL = 2 * time.Second

// CachedRepository decorates a Repository with a Redis read-through cache
// in front of Get, following the project_cache read-through shape: check
// Redis first, fall back to the backing store on miss, and populate Redis
// on the way back out. Writes always go straight through — Postgres stays
// the single source of truth, the cache only ever serves hot polling
// reads.
type CachedRepository struct {
	next  Repository
	redis *db.RedisClient
}

// NewCachedRepository wraps next with a cache backed by redis. redis may
// be nil, in which case CachedRepository behaves as a plain passthrough
// (the same "cache disabled" convention as internal/db.GetGlobalRedis).
func NewCachedRepository(next Repository, redis *db.RedisClient) *CachedRepository {
	return &CachedRepository{next: next, redis: redis}
}

func cacheKey(id string) string {
	return "judge:submission:" + id
}

func (c *CachedRepository) Create(ctx context.Context, s *Submission) error {
	return c.next.Create(ctx, s)
}

func (c *CachedRepository) Get(ctx context.Context, id string) (*Submission, error) {
	if c.redis == nil {
		return c.next.Get(ctx, id)
	}

	raw, err := c.redis.Get(ctx, cacheKey(id))
	if err == nil {
		var s Submission
		if jsonErr := json.Unmarshal([]byte(raw), &s); jsonErr == nil {
			return &s, nil
		}
	} else if !db.IsNotFound(err) {
		logging.L().Warn("submission cache read failed", zap.String("id", id), zap.Error(err))
	}

	s, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.populate(ctx, s)
	return s, nil
}

func (c *CachedRepository) Update(ctx context.Context, s *Submission) error {
	if err := c.next.Update(ctx, s); err != nil {
		return err
	}
	if c.redis != nil {
		if s.Status.IsTerminal() {
			c.populate(ctx, s)
		} else {
			// Invalidate rather than cache a short-lived intermediate
			// state; the next poll repopulates from Postgres.
			if err := c.redis.Del(ctx, cacheKey(s.ID)); err != nil {
				logging.L().Warn("submission cache invalidate failed", zap.String("id", s.ID), zap.Error(err))
			}
		}
	}
	return nil
}

func (c *CachedRepository) populate(ctx context.Context, s *Submission) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(s.ID), raw, pollTTL); err != nil {
		logging.L().Warn("submission cache write failed", zap.String("id", s.ID), zap.Error(err))
	}
}
