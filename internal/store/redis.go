// Package store provides frequency-record storage backends for ModalPipe.
//
// This file implements the Redis-backed durable partition.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/ModalPipe/internal/models"
	redis "github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces all ModalPipe keys in a shared Redis.
const DefaultRedisKeyPrefix = "modalpipe:freq:"

// redisRecord is the JSON document stored per (modal id, kind).
type redisRecord struct {
	Value     string    `json:"value"`
	WrittenAt time.Time `json:"written_at"`
}

// RedisStore is the Redis-backed durable frequency store. Alongside each
// record it maintains a ZSET index scored by write time so sweeps do not
// need to scan the keyspace.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis store based on provided options.
func NewRedisStore(opts ...Option) *RedisStore {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisStore invoked", "addr", cfg.RedisAddr, "db", cfg.RedisDB)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return newRedisStore(client, cfg.KeyPrefix)
}

// NewRedisStoreFromClient creates a Redis store from an existing client.
func NewRedisStoreFromClient(client *redis.Client, opts ...Option) *RedisStore {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return newRedisStore(client, cfg.KeyPrefix)
}

func newRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(modalID string, kind models.FrequencyKind) string {
	return s.prefix + modalID + ":" + string(kind)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// index members encode (modal id, kind) so sweeps can filter by kind.
func indexMember(modalID string, kind models.FrequencyKind) string {
	return modalID + "|" + string(kind)
}

// Get returns the stored value for (modalID, kind).
func (s *RedisStore) Get(modalID string, kind models.FrequencyKind) (string, bool, error) {
	ctx := context.Background()
	raw, err := s.client.Get(ctx, s.key(modalID, kind)).Result()
	if err == redis.Nil {
		slog.Debug("RedisStore.Get: no record", "modalID", modalID, "kind", kind)
		return "", false, nil
	}
	if err != nil {
		slog.Error("RedisStore.Get failed", "error", err, "modalID", modalID, "kind", kind)
		return "", false, fmt.Errorf("failed to get frequency record for %s/%s: %w", modalID, kind, err)
	}

	var rec redisRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Error("RedisStore.Get unmarshal failed", "error", err, "modalID", modalID, "kind", kind)
		return "", false, fmt.Errorf("failed to unmarshal frequency record for %s/%s: %w", modalID, kind, err)
	}
	slog.Debug("RedisStore.Get found", "modalID", modalID, "kind", kind)
	return rec.Value, true, nil
}

// Set writes or overwrites the record for (modalID, kind).
func (s *RedisStore) Set(modalID string, kind models.FrequencyKind, value string) error {
	ctx := context.Background()
	now := time.Now()
	data, err := json.Marshal(redisRecord{Value: value, WrittenAt: now})
	if err != nil {
		return fmt.Errorf("failed to marshal frequency record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(modalID, kind), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(now.Unix()),
		Member: indexMember(modalID, kind),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("RedisStore.Set failed", "error", err, "modalID", modalID, "kind", kind)
		return fmt.Errorf("failed to save frequency record for %s/%s: %w", modalID, kind, err)
	}
	slog.Debug("RedisStore.Set succeeded", "modalID", modalID, "kind", kind)
	return nil
}

// Clear removes all records for the modal id, across kinds.
func (s *RedisStore) Clear(modalID string) error {
	ctx := context.Background()
	kinds := []models.FrequencyKind{
		models.FrequencyOncePerSession,
		models.FrequencyOncePerDay,
		models.FrequencyOncePerWeek,
	}

	pipe := s.client.Pipeline()
	for _, kind := range kinds {
		pipe.Del(ctx, s.key(modalID, kind))
		pipe.ZRem(ctx, s.indexKey(), indexMember(modalID, kind))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("RedisStore.Clear failed", "error", err, "modalID", modalID)
		return fmt.Errorf("failed to clear frequency records for %s: %w", modalID, err)
	}
	slog.Debug("RedisStore.Clear succeeded", "modalID", modalID)
	return nil
}

// SweepExpired removes session-kind records older than maxAge, pruning the
// index as it goes.
func (s *RedisStore) SweepExpired(maxAge time.Duration) error {
	ctx := context.Background()
	cutoff := time.Now().Add(-maxAge).Unix()

	members, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		slog.Error("RedisStore.SweepExpired index query failed", "error", err)
		return fmt.Errorf("failed to query expired frequency records: %w", err)
	}

	removed := 0
	for _, member := range members {
		modalID, kindStr, found := strings.Cut(member, "|")
		if !found || models.FrequencyKind(kindStr) != models.FrequencyOncePerSession {
			continue
		}
		pipe := s.client.Pipeline()
		pipe.Del(ctx, s.key(modalID, models.FrequencyOncePerSession))
		pipe.ZRem(ctx, s.indexKey(), member)
		if _, err := pipe.Exec(ctx); err != nil {
			slog.Error("RedisStore.SweepExpired delete failed", "error", err, "member", member)
			return fmt.Errorf("failed to sweep frequency record %s: %w", member, err)
		}
		removed++
	}
	slog.Debug("RedisStore.SweepExpired succeeded", "removed", removed)
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
