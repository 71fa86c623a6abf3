package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisIndex keeps the fingerprint set in Redis so several engine processes
// can share one dedup view. Registration relies on SETNX.
type RedisIndex struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

// NewRedisIndex parses redisURL, verifies connectivity and returns an index.
func NewRedisIndex(ctx context.Context, redisURL string, opts ...Option) (*RedisIndex, error) {
	o := defaultOptions("redis")
	for _, opt := range opts {
		opt(&o)
	}

	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, unavailable(BackendRedis, "parse_url", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(BackendRedis, "ping", err)
	}
	o.logger.Info(ctx, "redis fingerprint index ready", logger.String("prefix", o.keyPrefix))
	return &RedisIndex{client: client, prefix: o.keyPrefix, logger: o.logger}, nil
}

func (r *RedisIndex) key(fp model.Fingerprint) string {
	return r.prefix + string(fp)
}

// Insert implements Index.
func (r *RedisIndex) Insert(ctx context.Context, fp model.Fingerprint, p model.Posting) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageLatency(BackendRedis, "insert_fingerprint", since(start)) }()

	body, err := encodePosting(p)
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(ctx, r.key(fp), body, 0).Result()
	if err != nil {
		return false, unavailable(BackendRedis, "insert_fingerprint", err)
	}
	return ok, nil
}

// Contains implements Index.
func (r *RedisIndex) Contains(ctx context.Context, fp model.Fingerprint) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(fp)).Result()
	if err != nil {
		return false, unavailable(BackendRedis, "contains", err)
	}
	return n > 0, nil
}

// Lookup implements Index.
func (r *RedisIndex) Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error) {
	body, err := r.client.Get(ctx, r.key(fp)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Posting{}, model.ErrNotFound
	}
	if err != nil {
		return model.Posting{}, unavailable(BackendRedis, "lookup", err)
	}
	return decodePosting(body)
}

// Remove implements Index.
func (r *RedisIndex) Remove(ctx context.Context, fp model.Fingerprint) error {
	if err := r.client.Del(ctx, r.key(fp)).Err(); err != nil {
		return unavailable(BackendRedis, "remove", err)
	}
	return nil
}

// Count implements Index. It walks the key space with SCAN.
func (r *RedisIndex) Count(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, unavailable(BackendRedis, "count", err)
	}
	return n, nil
}

// Close closes the client.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}

// overlay routes fingerprint operations to a separate index and everything
// else to the base store.
type overlay struct {
	Store
	index Index
}

// WithSharedIndex returns a Store that keeps decisions and weights in base
// and fingerprints in index.
func WithSharedIndex(base Store, index Index) Store {
	return &overlay{Store: base, index: index}
}

func (o *overlay) Insert(ctx context.Context, fp model.Fingerprint, p model.Posting) (bool, error) {
	return o.index.Insert(ctx, fp, p)
}

func (o *overlay) Contains(ctx context.Context, fp model.Fingerprint) (bool, error) {
	return o.index.Contains(ctx, fp)
}

func (o *overlay) Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error) {
	return o.index.Lookup(ctx, fp)
}

func (o *overlay) Remove(ctx context.Context, fp model.Fingerprint) error {
	return o.index.Remove(ctx, fp)
}

func (o *overlay) Count(ctx context.Context) (int, error) {
	return o.index.Count(ctx)
}

func (o *overlay) Close() error {
	return errors.Join(o.index.Close(), o.Store.Close())
}
