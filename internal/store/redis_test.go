package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/BTreeMap/ModalPipe/internal/models"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, WithKeyPrefix("test:freq:")), client
}

func TestRedisStoreSetGet(t *testing.T) {
	s, _ := newTestRedisStore(t)

	_, ok, err := s.Get("welcome", models.FrequencyOncePerDay)
	if err != nil {
		t.Fatalf("Get on empty store failed: %v", err)
	}
	if ok {
		t.Fatal("expected no record in empty store")
	}

	if err := s.Set("welcome", models.FrequencyOncePerDay, "2026-03-04"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := s.Get("welcome", models.FrequencyOncePerDay)
	if err != nil || !ok || value != "2026-03-04" {
		t.Fatalf("Get = (%q, %v, %v), want (2026-03-04, true, nil)", value, ok, err)
	}

	if err := s.Set("welcome", models.FrequencyOncePerDay, "2026-03-05"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, _, _ = s.Get("welcome", models.FrequencyOncePerDay)
	if value != "2026-03-05" {
		t.Errorf("value after overwrite = %q, want 2026-03-05", value)
	}
}

func TestRedisStoreClear(t *testing.T) {
	s, client := newTestRedisStore(t)

	s.Set("promo", models.FrequencyOncePerDay, "2026-03-04")
	s.Set("promo", models.FrequencyOncePerWeek, "10")
	s.Set("other", models.FrequencyOncePerDay, "2026-03-04")

	if err := s.Clear("promo"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok, _ := s.Get("promo", models.FrequencyOncePerDay); ok {
		t.Error("day record survived Clear")
	}
	if _, ok, _ := s.Get("promo", models.FrequencyOncePerWeek); ok {
		t.Error("week record survived Clear")
	}
	if _, ok, _ := s.Get("other", models.FrequencyOncePerDay); !ok {
		t.Error("Clear removed records for an unrelated modal")
	}

	// Index members are pruned with the records.
	members, err := client.ZRange(context.Background(), s.indexKey(), 0, -1).Result()
	if err != nil {
		t.Fatalf("index query failed: %v", err)
	}
	for _, m := range members {
		if m == indexMember("promo", models.FrequencyOncePerDay) {
			t.Errorf("index member %q survived Clear", m)
		}
	}
}

func TestRedisStoreSweepExpired(t *testing.T) {
	s, client := newTestRedisStore(t)
	ctx := context.Background()

	// Seed a stale session record directly; Set always stamps time.Now.
	staleAt := time.Now().Add(-48 * time.Hour)
	data, err := json.Marshal(redisRecord{Value: "1", WrittenAt: staleAt})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := client.Set(ctx, s.key("stale", models.FrequencyOncePerSession), data, 0).Err(); err != nil {
		t.Fatalf("seed set failed: %v", err)
	}
	if err := client.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(staleAt.Unix()),
		Member: indexMember("stale", models.FrequencyOncePerSession),
	}).Err(); err != nil {
		t.Fatalf("seed zadd failed: %v", err)
	}

	// A stale durable record must survive; sweeps only target session kind.
	if err := client.Set(ctx, s.key("stale", models.FrequencyOncePerDay), data, 0).Err(); err != nil {
		t.Fatalf("seed set failed: %v", err)
	}
	if err := client.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(staleAt.Unix()),
		Member: indexMember("stale", models.FrequencyOncePerDay),
	}).Err(); err != nil {
		t.Fatalf("seed zadd failed: %v", err)
	}

	if err := s.Set("fresh", models.FrequencyOncePerSession, "2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.SweepExpired(24 * time.Hour); err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if _, ok, _ := s.Get("stale", models.FrequencyOncePerSession); ok {
		t.Error("stale session record survived sweep")
	}
	if _, ok, _ := s.Get("stale", models.FrequencyOncePerDay); !ok {
		t.Error("day record removed by sweep")
	}
	if _, ok, _ := s.Get("fresh", models.FrequencyOncePerSession); !ok {
		t.Error("fresh session record removed by sweep")
	}
}

func TestRedisStoreKeyPrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	a := NewRedisStoreFromClient(client, WithKeyPrefix("a:"))
	b := NewRedisStoreFromClient(client, WithKeyPrefix("b:"))

	if err := a.Set("welcome", models.FrequencyOncePerDay, "2026-03-04"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := b.Get("welcome", models.FrequencyOncePerDay); ok {
		t.Error("record visible across key prefixes")
	}
}
