// Package cache puts a Redis read-through cache in front of a snapshot store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/snapshot"
	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

const (
	keyPrefix = "gradestats:snapshot:"

	// DefaultTTL bounds how long a cached pair outlives a write made by
	// another process.
	DefaultTTL = 5 * time.Minute
)

// ErrConnection wraps failures to reach Redis at startup.
var ErrConnection = errors.New("cache: connection failed")

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return client, nil
}

// entry is the cached form of a Latest result. Version is the value of the
// key's version counter read before the store was queried.
type entry struct {
	Version  string          `json:"version"`
	Current  *model.Snapshot `json:"current"`
	Previous *model.Snapshot `json:"previous"`
}

// SnapshotCache decorates a repository.SnapshotStore. Redis failures are
// logged and the call falls through to the wrapped store.
type SnapshotCache struct {
	next   repository.SnapshotStore
	client redis.UniversalClient
	ttl    time.Duration
	log    logger.Logger
}

var _ repository.SnapshotStore = (*SnapshotCache)(nil)

// Option configures a SnapshotCache.
type Option func(*SnapshotCache)

// WithTTL sets the expiry of cached entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *SnapshotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger overrides the cache logger.
func WithLogger(l logger.Logger) Option {
	return func(c *SnapshotCache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewSnapshotCache wraps next with client.
func NewSnapshotCache(next repository.SnapshotStore, client redis.UniversalClient, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		next:   next,
		client: client,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("snapshot-cache")
	}
	return c
}

// Key returns the Redis key of a selection.
func Key(key model.SelectionKey) string {
	return fmt.Sprintf("%s%s:%s:%d:%s", keyPrefix, key.Scope, key.Name, key.Semester, key.AcademicYear)
}

// versionKey holds a counter bumped on every write of the selection. An
// entry cached under an older version is ignored, so a read that raced a
// write cannot serve the pair it loaded before that write.
func versionKey(k string) string {
	return k + ":version"
}

// Latest implements repository.SnapshotStore.
func (c *SnapshotCache) Latest(ctx context.Context, key model.SelectionKey) (*model.Snapshot, *model.Snapshot, error) {
	k, vk := Key(key), versionKey(Key(key))

	reachable := true
	var version string
	vals, err := c.client.MGet(ctx, k, vk).Result()
	if err != nil {
		reachable = false
		metrics.RecordCacheResult("error")
		c.log.Warn(ctx, "cache read failed", logger.String("key", k), logger.Error(err))
	} else {
		version = asString(vals[1])
		e, result := decode(vals[0], version)
		metrics.RecordCacheResult(result)
		if result == "hit" {
			return e.Current, e.Previous, nil
		}
	}

	current, previous, err := c.next.Latest(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, nil
	}
	if reachable {
		c.store(ctx, k, entry{Version: version, Current: current, Previous: previous})
	}
	return current, previous, nil
}

// Upsert implements repository.SnapshotStore. The version of the key is
// bumped and its cached entry dropped after a successful write.
func (c *SnapshotCache) Upsert(ctx context.Context, snap model.Snapshot, now time.Time) (snapshot.Action, model.Snapshot, error) {
	action, stored, err := c.next.Upsert(ctx, snap, now)
	if err != nil {
		return action, stored, err
	}
	k := Key(snap.Key())
	if ierr := c.client.Incr(ctx, versionKey(k)).Err(); ierr != nil {
		metrics.RecordCacheResult("error")
		c.log.Warn(ctx, "cache version bump failed", logger.String("key", k), logger.Error(ierr))
	}
	if derr := c.client.Del(ctx, k).Err(); derr != nil {
		metrics.RecordCacheResult("error")
		c.log.Warn(ctx, "cache invalidation failed", logger.String("key", k), logger.Error(derr))
	}
	return action, stored, nil
}

func (c *SnapshotCache) store(ctx context.Context, k string, e entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, k, raw, c.ttl).Err(); err != nil {
		metrics.RecordCacheResult("error")
		c.log.Warn(ctx, "cache write failed", logger.String("key", k), logger.Error(err))
	}
}

// decode classifies a cached value against the current version.
func decode(raw any, version string) (entry, string) {
	s, ok := raw.(string)
	if !ok {
		return entry{}, "miss"
	}
	var e entry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return entry{}, "corrupt"
	}
	if e.Version != version {
		return entry{}, "stale"
	}
	return e, "hit"
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
