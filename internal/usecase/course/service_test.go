package course

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

// --- Mocks ---

type mockRepo struct {
	courses     map[string]domcourse.Course
	getCalls    int
	searchCalls int
	searchErr   error
	updated     []domcourse.Course
	incremented []string
}

func newMockRepo(cs ...domcourse.Course) *mockRepo {
	m := &mockRepo{courses: map[string]domcourse.Course{}}
	for _, c := range cs {
		m.courses[c.ID()] = c
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, c domcourse.Course) error {
	if _, ok := m.courses[c.ID()]; ok {
		return domain.ErrAlreadyExists
	}
	m.courses[c.ID()] = c
	return nil
}

func (m *mockRepo) Update(_ context.Context, c domcourse.Course) error {
	m.courses[c.ID()] = c
	m.updated = append(m.updated, c)
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (domcourse.Course, error) {
	m.getCalls++
	c, ok := m.courses[id]
	if !ok {
		return domcourse.Course{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) GetMany(_ context.Context, ids []string) ([]domcourse.Course, error) {
	var out []domcourse.Course
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepo) Search(_ context.Context, _ domcourse.SearchQuery) ([]domcourse.Course, error) {
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var out []domcourse.Course
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockRepo) ByCategory(_ context.Context, _ domcourse.Category, _, _ int) ([]domcourse.Course, error) {
	return nil, nil
}

func (m *mockRepo) ListAvailable(_ context.Context, _, _ int) ([]domcourse.Course, error) {
	return nil, nil
}

func (m *mockRepo) Popular(_ context.Context, _ int) ([]domcourse.Course, error) {
	return nil, nil
}

func (m *mockRepo) Categories(_ context.Context) ([]domcourse.CategoryStats, error) {
	return nil, nil
}

func (m *mockRepo) PriceRange(_ context.Context, _ domcourse.Category) (domcourse.PriceRange, error) {
	return domcourse.PriceRange{Count: len(m.courses)}, nil
}

func (m *mockRepo) IncrementStudents(_ context.Context, ids []string, _ int) error {
	m.incremented = append(m.incremented, ids...)
	return nil
}

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dst any) bool {
	b, ok := c.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) {
	b, _ := json.Marshal(v)
	c.data[key] = b
}

func (c *memCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		delete(c.data, k)
	}
}

func (c *memCache) DeletePattern(_ context.Context, pattern string) {
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok || strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(c.data, k)
		}
	}
}

func makeCourse(t *testing.T, name, price string) domcourse.Course {
	t.Helper()
	c, err := domcourse.New(domcourse.Draft{
		Name:          name,
		Category:      domcourse.CategoryPython,
		OriginalPrice: decimal.RequireFromString(price),
		DurationHours: 10,
		Difficulty:    domcourse.Beginner,
	}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("domcourse.New: %v", err)
	}
	return c
}

// --- Tests ---

func TestGet_CachesDetail(t *testing.T) {
	c := makeCourse(t, "Python", "999")
	repo := newMockRepo(c)
	cache := newMemCache()
	svc := New(repo, cache, time.Hour, zap.NewNop())

	for range 3 {
		got, err := svc.Get(context.Background(), c.ID())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.CurrentPrice().Equal(decimal.RequireFromString("999")) {
			t.Errorf("unexpected price %s", got.CurrentPrice())
		}
	}
	if repo.getCalls != 1 {
		t.Errorf("expected 1 repo call, got %d", repo.getCalls)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := New(newMockRepo(), newMemCache(), time.Hour, zap.NewNop())
	if _, err := svc.Get(context.Background(), "course_x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearch_CachedByNormalizedQuery(t *testing.T) {
	repo := newMockRepo(makeCourse(t, "Python", "999"))
	svc := New(repo, newMemCache(), time.Hour, zap.NewNop())

	q1 := domcourse.SearchQuery{Keywords: "Python", OnlyAvailable: true}
	q2 := domcourse.SearchQuery{Keywords: "python", OnlyAvailable: true}
	if _, err := svc.Search(context.Background(), q1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.Search(context.Background(), q2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || repo.searchCalls != 1 {
		t.Errorf("expected cached result, got %d courses after %d calls", len(got), repo.searchCalls)
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMemCache(), time.Hour, zap.NewNop())
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(1)

	_, err := svc.Search(context.Background(), domcourse.SearchQuery{MinPrice: &lo, MaxPrice: &hi})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.searchCalls != 0 {
		t.Error("repo must not be called for invalid queries")
	}
}

func TestSearch_RepoError(t *testing.T) {
	repoErr := errors.New("db down")
	repo := newMockRepo()
	repo.searchErr = repoErr
	svc := New(repo, newMemCache(), time.Hour, zap.NewNop())

	if _, err := svc.Search(context.Background(), domcourse.NewSearchQuery()); !errors.Is(err, repoErr) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	c := makeCourse(t, "Python", "999")
	repo := newMockRepo(c)
	cache := newMemCache()
	svc := New(repo, cache, time.Hour, zap.NewNop())

	_, _ = svc.Get(context.Background(), c.ID())
	_, _ = svc.Search(context.Background(), domcourse.NewSearchQuery())
	if len(cache.data) != 2 {
		t.Fatalf("expected 2 cached entries, got %d", len(cache.data))
	}

	price := decimal.RequireFromString("799")
	updated, err := svc.Update(context.Background(), c.ID(), domcourse.Update{CurrentPrice: &price})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.CurrentPrice().Equal(price) {
		t.Errorf("expected 799, got %s", updated.CurrentPrice())
	}
	if len(cache.data) != 0 {
		t.Errorf("expected cache to be flushed, got keys %v", cache.data)
	}

	got, _ := svc.Get(context.Background(), c.ID())
	if !got.CurrentPrice().Equal(price) {
		t.Errorf("expected fresh price after update, got %s", got.CurrentPrice())
	}
}

func TestUpdate_DropsPriceQuotes(t *testing.T) {
	c := makeCourse(t, "Python", "999")
	cache := newMemCache()
	svc := New(newMockRepo(c), cache, time.Hour, zap.NewNop())
	cache.data["price:quote:u1:"+c.ID()+":"] = []byte("{}")

	price := decimal.RequireFromString("899")
	if _, err := svc.Update(context.Background(), c.ID(), domcourse.Update{CurrentPrice: &price}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.data) != 0 {
		t.Errorf("expected quotes priced with the old price to be dropped, got %v", cache.data)
	}
}

func TestUpdateStats_Validates(t *testing.T) {
	c := makeCourse(t, "Python", "999")
	svc := New(newMockRepo(c), newMemCache(), time.Hour, zap.NewNop())

	bad := 7.0
	if _, err := svc.UpdateStats(context.Background(), c.ID(), &bad, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	good, students := 4.8, 1200
	got, err := svc.UpdateStats(context.Background(), c.ID(), &good, &students)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StudentCount() != 1200 || *got.Rating() != 4.8 {
		t.Errorf("unexpected stats %d / %v", got.StudentCount(), *got.Rating())
	}
}

func TestCreate_ValidationAndDuplicate(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMemCache(), time.Hour, zap.NewNop())

	if _, err := svc.Create(context.Background(), domcourse.Draft{Name: ""}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	c, err := svc.Create(context.Background(), domcourse.Draft{
		Name: "SQL", Category: domcourse.CategoryDatabase, OriginalPrice: decimal.NewFromInt(500),
		DurationHours: 12, Difficulty: domcourse.Intermediate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.courses[c.ID()]; !ok {
		t.Error("expected course stored")
	}
}

func TestRecordSales(t *testing.T) {
	repo := newMockRepo()
	svc := New(repo, newMemCache(), time.Hour, zap.NewNop())
	if err := svc.RecordSales(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.incremented) != 2 {
		t.Errorf("expected 2 increments, got %v", repo.incremented)
	}
}

func TestByCategory_RejectsUnknown(t *testing.T) {
	svc := New(newMockRepo(), newMemCache(), time.Hour, zap.NewNop())
	if _, err := svc.ByCategory(context.Background(), "cooking", 10, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAgentView(t *testing.T) {
	c := makeCourse(t, "Python", "999")
	svc := New(newMockRepo(c), newMemCache(), time.Hour, zap.NewNop())
	text, err := svc.AgentView(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Python") {
		t.Errorf("expected course name in view:\n%s", text)
	}
}
