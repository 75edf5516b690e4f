// Package cache is a Redis-backed cache of video-search results. Each entry
// counts its hits; an operator endpoint exposes aggregate stats and a
// periodic pass ages out entries nobody asks for.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"karaoke-service/internal/metrics"
)

const keyPrefix = "searchcache:"

const (
	staleAfter = 60 * 24 * time.Hour
	dropAfter  = 90 * 24 * time.Hour
)

type Cache struct {
	rdb     *redis.Client
	metrics *metrics.Collector
	log     zerolog.Logger
}

func New(rdb *redis.Client, collector *metrics.Collector, log zerolog.Logger) *Cache {
	return &Cache{rdb: rdb, metrics: collector, log: log}
}

// normalizeQuery makes lookups case- and whitespace-insensitive.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func entryKey(query string) string {
	return keyPrefix + normalizeQuery(query)
}

// Get returns the cached payload for a query and counts the hit.
func (c *Cache) Get(ctx context.Context, query string) ([]byte, bool) {
	if c.rdb == nil {
		return nil, false
	}
	key := entryKey(query)
	payload, err := c.rdb.HGet(ctx, key, "results").Bytes()
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
		return nil, false
	}
	if err := c.rdb.HIncrBy(ctx, key, "hits", 1).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("count cache hit")
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
	return payload, true
}

// Put stores the payload for a query with a fresh hit counter. Best-effort:
// a failed write only costs the next caller a provider round-trip.
func (c *Cache) Put(ctx context.Context, query string, payload []byte) {
	if c.rdb == nil {
		return
	}
	key := entryKey(query)
	err := c.rdb.HSet(ctx, key, map[string]any{
		"results":  payload,
		"hits":     0,
		"cachedAt": time.Now().Unix(),
	}).Err()
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache put")
	}
}

type Stats struct {
	TotalCached         int     `json:"totalCached"`
	TotalHits           int64   `json:"totalHits"`
	AverageHitsPerEntry float64 `json:"averageHitsPerEntry"`
}

// Stats aggregates entry and hit counts across the cache.
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if c.rdb == nil {
		return st, nil
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		st.TotalCached++
		hits, err := c.rdb.HGet(ctx, iter.Val(), "hits").Int64()
		if err == nil {
			st.TotalHits += hits
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if st.TotalCached > 0 {
		st.AverageHitsPerEntry = float64(st.TotalHits) / float64(st.TotalCached)
	}
	return st, nil
}

type cleanupAction int

const (
	actionKeep cleanupAction = iota
	actionResetHits
	actionDrop
)

// entryAction decides an entry's fate: drop entries past 90 days that nobody
// hit, reset counters on entries between 60 and 90 days so the next window
// measures fresh demand, keep everything else.
func entryAction(cachedAt time.Time, hits int64, now time.Time) cleanupAction {
	age := now.Sub(cachedAt)
	if age > dropAfter && hits == 0 {
		return actionDrop
	}
	if age > staleAfter {
		return actionResetHits
	}
	return actionKeep
}

// Cleanup walks the cache once and applies the aging policy. Returns how
// many entries were dropped and how many had their counters reset.
func (c *Cache) Cleanup(ctx context.Context, now time.Time) (dropped, reset int) {
	if c.rdb == nil {
		return 0, 0
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		cachedAtUnix, err := c.rdb.HGet(ctx, key, "cachedAt").Int64()
		if err != nil {
			continue
		}
		hits, _ := c.rdb.HGet(ctx, key, "hits").Int64()

		switch entryAction(time.Unix(cachedAtUnix, 0), hits, now) {
		case actionDrop:
			if err := c.rdb.Del(ctx, key).Err(); err == nil {
				dropped++
			}
		case actionResetHits:
			if err := c.rdb.HSet(ctx, key, "hits", 0).Err(); err == nil {
				reset++
			}
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Error().Err(err).Msg("cache cleanup scan")
	}
	return dropped, reset
}

// StartCleanupTicker runs the cleanup pass on an interval until ctx is done.
func (c *Cache) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				dropped, reset := c.Cleanup(ctx, time.Now())
				if dropped > 0 || reset > 0 {
					c.log.Info().
						Int("dropped", dropped).
						Int("reset", reset).
						Msg("search cache cleanup")
				}
			}
		}
	}()
}
