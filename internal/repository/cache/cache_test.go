package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/db"
)

// memStore implements the consumer interface for tests.
type memStore struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	scanned []string
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	n, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	n += val
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *memStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if _, ok := m.ttls[key]; ok && nx {
		return nil
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.scanned = append(m.scanned, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type payload struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_requests_total"}, []string{"cache", "result"})
}

func TestCache_SetGet(t *testing.T) {
	ms := newMemStore()
	counter := newCounter()
	c := New(ms, "offerd:", counter, zap.NewNop())
	ctx := context.Background()

	var got payload
	if c.Get(ctx, "course:detail:c1", &got) {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "course:detail:c1", payload{Name: "Go", Price: "99.00"}, time.Minute)
	if ms.ttls["offerd:course:detail:c1"] != time.Minute {
		t.Errorf("expected ttl to be passed through, got %v", ms.ttls["offerd:course:detail:c1"])
	}
	if !c.Get(ctx, "course:detail:c1", &got) {
		t.Fatal("expected hit")
	}
	if got.Name != "Go" || got.Price != "99.00" {
		t.Errorf("unexpected payload %+v", got)
	}
	if v := testutil.ToFloat64(counter.WithLabelValues("course", "hit")); v != 1 {
		t.Errorf("expected 1 hit, got %v", v)
	}
	if v := testutil.ToFloat64(counter.WithLabelValues("course", "miss")); v != 1 {
		t.Errorf("expected 1 miss, got %v", v)
	}
}

func TestCache_StoreErrorIsMiss(t *testing.T) {
	ms := newMemStore()
	ms.getErr = errors.New("connection refused")
	c := New(ms, "p:", nil, zap.NewNop())

	var got payload
	if c.Get(context.Background(), "order:detail:1", &got) {
		t.Fatal("store errors must be reported as a miss")
	}
}

func TestCache_CorruptValueIsMiss(t *testing.T) {
	ms := newMemStore()
	ms.data["p:k"] = []byte("{not json")
	c := New(ms, "p:", nil, zap.NewNop())

	var got payload
	if c.Get(context.Background(), "k", &got) {
		t.Fatal("corrupt values must be reported as a miss")
	}
}

func TestCache_DeletePattern(t *testing.T) {
	ms := newMemStore()
	c := New(ms, "p:", nil, zap.NewNop())
	ctx := context.Background()
	c.Set(ctx, "course:list:a", payload{}, 0)
	c.Set(ctx, "course:list:b", payload{}, 0)
	c.Set(ctx, "coupon:code:X", payload{}, 0)

	c.DeletePattern(ctx, "course:list:*")

	if len(ms.data) != 1 {
		t.Errorf("expected only the coupon key to survive, got %v", ms.data)
	}
	if ms.scanned[0] != "p:course:list:*" {
		t.Errorf("expected prefixed pattern, got %q", ms.scanned[0])
	}
}

func TestCache_Delete(t *testing.T) {
	ms := newMemStore()
	c := New(ms, "p:", nil, zap.NewNop())
	c.Delete(context.Background(), "a", "b")
	if len(ms.deleted) != 2 || ms.deleted[0] != "p:a" {
		t.Errorf("unexpected deleted keys %v", ms.deleted)
	}
}

func TestCache_Counter(t *testing.T) {
	ms := newMemStore()
	c := New(ms, "p:", nil, zap.NewNop())
	ctx := context.Background()

	if got := c.Count(ctx, "profile:stats:2026-01-01:created"); got != 0 {
		t.Fatalf("expected 0 for a missing counter, got %d", got)
	}
	c.Incr(ctx, "profile:stats:2026-01-01:created", 48*time.Hour)
	if ms.ttls["p:profile:stats:2026-01-01:created"] != 48*time.Hour {
		t.Error("expected ttl set on first increment")
	}
	c.Incr(ctx, "profile:stats:2026-01-01:created", time.Hour)
	if ms.ttls["p:profile:stats:2026-01-01:created"] != 48*time.Hour {
		t.Error("ttl must not be reset by later increments")
	}
	if got := c.Count(ctx, "profile:stats:2026-01-01:created"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestDisabled(t *testing.T) {
	c := Disabled()
	ctx := context.Background()
	c.Set(ctx, "k", payload{}, time.Minute)
	c.Delete(ctx, "k")
	c.DeletePattern(ctx, "*")
	c.Incr(ctx, "n", time.Minute)

	var got payload
	if c.Get(ctx, "k", &got) || c.Enabled() || c.Count(ctx, "n") != 0 {
		t.Fatal("disabled cache must always miss")
	}
}
