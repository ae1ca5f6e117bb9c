// Package cache caches seat-grid records in Redis.  The grid endpoint is
// by far the hottest read path and its data only changes when a reservation
// for that exact session changes, so entries are invalidated by key on
// every write instead of waiting out the TTL.  Raw records are cached, not
// rendered grids: rendering personalizes "mine" markings per viewer.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/repository"
)

type GridCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewGridCache returns nil when caching is disabled or Redis is absent;
// callers treat a nil cache as a no-op.
func NewGridCache(cfg config.GridCacheConfig, rdb *redis.Client) *GridCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &GridCache{rdb: rdb, ttl: ttl, prefix: cfg.Prefix}
}

func (g *GridCache) key(classroomID uint64, date time.Time, slot int) string {
	return fmt.Sprintf("%s:%d:%s:%d", g.prefix, classroomID, date.Format("2006-01-02"), slot)
}

// Get returns the cached records and whether the key was present.  An empty
// session is a valid cached value, so presence is reported separately.
// Redis errors degrade to a miss.
func (g *GridCache) Get(ctx context.Context, classroomID uint64, date time.Time, slot int) ([]repository.GridRecord, bool) {
	if g == nil {
		return nil, false
	}
	bs, err := g.rdb.Get(ctx, g.key(classroomID, date, slot)).Bytes()
	if err != nil {
		return nil, false
	}
	var records []repository.GridRecord
	if err := json.Unmarshal(bs, &records); err != nil {
		return nil, false
	}
	return records, true
}

// Set stores a session's records.  Failures are ignored.
func (g *GridCache) Set(ctx context.Context, classroomID uint64, date time.Time, slot int, records []repository.GridRecord) {
	if g == nil {
		return
	}
	bs, err := json.Marshal(records)
	if err != nil {
		return
	}
	_ = g.rdb.SetEx(ctx, g.key(classroomID, date, slot), bs, g.ttl).Err()
}

// Invalidate drops the session's entry after any write touching its
// reservations.
func (g *GridCache) Invalidate(ctx context.Context, classroomID uint64, date time.Time, slot int) {
	if g == nil {
		return
	}
	_ = g.rdb.Del(ctx, g.key(classroomID, date, slot)).Err()
}
