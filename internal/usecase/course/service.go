package course

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

const (
	agentCatalogLimit = 100
	maxPopular        = 50
)

// Service serves the course catalog with a read-through cache.
type Service struct {
	repo   Repository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New creates a course service.
func New(repo Repository, cache Cache, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

func detailKey(id string) string { return "course:detail:" + id }

func listKey(kind string, args ...any) string {
	key := "course:list:" + kind
	for _, a := range args {
		key += fmt.Sprintf(":%v", a)
	}
	return key
}

func (s *Service) cachedList(
	ctx context.Context, key string, load func() ([]domcourse.Course, error),
) ([]domcourse.Course, error) {
	var states []domcourse.State
	if s.cache.Get(ctx, key, &states) {
		return reconstruct(states), nil
	}
	courses, err := load()
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, toStates(courses), s.ttl)
	return courses, nil
}

func toStates(cs []domcourse.Course) []domcourse.State {
	out := make([]domcourse.State, len(cs))
	for i, c := range cs {
		out[i] = c.State()
	}
	return out
}

func reconstruct(states []domcourse.State) []domcourse.Course {
	out := make([]domcourse.Course, len(states))
	for i, st := range states {
		out[i] = domcourse.Reconstruct(st)
	}
	return out
}

// Get returns a course by ID.
func (s *Service) Get(ctx context.Context, id string) (domcourse.Course, error) {
	var st domcourse.State
	if s.cache.Get(ctx, detailKey(id), &st) {
		return domcourse.Reconstruct(st), nil
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domcourse.Course{}, fmt.Errorf("get course: %w", err)
	}
	s.cache.Set(ctx, detailKey(id), c.State(), s.ttl)
	return c, nil
}

// GetMany returns the known courses among ids, in request order. Reads bypass the cache.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]domcourse.Course, error) {
	cs, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get courses: %w", err)
	}
	return cs, nil
}

// Search filters the catalog.
func (s *Service) Search(ctx context.Context, q domcourse.SearchQuery) ([]domcourse.Course, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	cs, err := s.cachedList(ctx, listKey("search", q.CacheKey()), func() ([]domcourse.Course, error) {
		return s.repo.Search(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return cs, nil
}

// ByCategory lists available courses of a category.
func (s *Service) ByCategory(ctx context.Context, cat domcourse.Category, limit, offset int) ([]domcourse.Course, error) {
	if !cat.IsValid() {
		return nil, fmt.Errorf("courses by category: %w", invalidCategory(cat))
	}
	limit, offset = page(limit, offset)
	cs, err := s.cachedList(ctx, listKey("category", cat, limit, offset), func() ([]domcourse.Course, error) {
		return s.repo.ByCategory(ctx, cat, limit, offset)
	})
	if err != nil {
		return nil, fmt.Errorf("courses by category: %w", err)
	}
	return cs, nil
}

// AllForAgent returns the available catalog the agent may recommend from.
func (s *Service) AllForAgent(ctx context.Context) ([]domcourse.Course, error) {
	cs, err := s.cachedList(ctx, listKey("agent"), func() ([]domcourse.Course, error) {
		return s.repo.ListAvailable(ctx, agentCatalogLimit, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("agent catalog: %w", err)
	}
	return cs, nil
}

// Popular lists courses by student count, then rating.
func (s *Service) Popular(ctx context.Context, limit int) ([]domcourse.Course, error) {
	if limit <= 0 || limit > maxPopular {
		limit = 10
	}
	cs, err := s.cachedList(ctx, listKey("popular", limit), func() ([]domcourse.Course, error) {
		return s.repo.Popular(ctx, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("popular courses: %w", err)
	}
	return cs, nil
}

// Categories summarizes the catalog per category.
func (s *Service) Categories(ctx context.Context) ([]domcourse.CategoryStats, error) {
	key := listKey("categories")
	var stats []domcourse.CategoryStats
	if s.cache.Get(ctx, key, &stats) {
		return stats, nil
	}
	stats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("course categories: %w", err)
	}
	s.cache.Set(ctx, key, stats, s.ttl)
	return stats, nil
}

// PriceRange summarizes available prices, optionally within one category.
func (s *Service) PriceRange(ctx context.Context, cat domcourse.Category) (domcourse.PriceRange, error) {
	if cat != "" && !cat.IsValid() {
		return domcourse.PriceRange{}, fmt.Errorf("price range: %w", invalidCategory(cat))
	}
	key := listKey("price_range", cat)
	var pr domcourse.PriceRange
	if s.cache.Get(ctx, key, &pr) {
		return pr, nil
	}
	pr, err := s.repo.PriceRange(ctx, cat)
	if err != nil {
		return domcourse.PriceRange{}, fmt.Errorf("price range: %w", err)
	}
	s.cache.Set(ctx, key, pr, s.ttl)
	return pr, nil
}

// Create validates and stores a new course.
func (s *Service) Create(ctx context.Context, d domcourse.Draft) (domcourse.Course, error) {
	c, err := domcourse.New(d, s.now().UTC())
	if err != nil {
		return domcourse.Course{}, fmt.Errorf("validate course: %w", err)
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return domcourse.Course{}, fmt.Errorf("create course: %w", err)
	}
	s.invalidate(ctx)
	s.logger.Info("Course created", zap.String("course_id", c.ID()), zap.String("name", c.Name()))
	return c, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, u domcourse.Update) (domcourse.Course, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return domcourse.Course{}, fmt.Errorf("get course: %w", err)
	}
	next, err := cur.Apply(u, s.now().UTC())
	if err != nil {
		return domcourse.Course{}, fmt.Errorf("validate course: %w", err)
	}
	if err := s.repo.Update(ctx, next); err != nil {
		return domcourse.Course{}, fmt.Errorf("update course: %w", err)
	}
	s.invalidate(ctx, id)
	s.invalidatePrices(ctx)
	return next, nil
}

// UpdateStats replaces rating and/or student count.
func (s *Service) UpdateStats(ctx context.Context, id string, rating *float64, students *int) (domcourse.Course, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return domcourse.Course{}, fmt.Errorf("get course: %w", err)
	}
	next, err := cur.WithStats(rating, students, s.now().UTC())
	if err != nil {
		return domcourse.Course{}, fmt.Errorf("validate course stats: %w", err)
	}
	if err := s.repo.Update(ctx, next); err != nil {
		return domcourse.Course{}, fmt.Errorf("update course stats: %w", err)
	}
	s.invalidate(ctx, id)
	return next, nil
}

// RecordSales increments the student count of sold courses.
func (s *Service) RecordSales(ctx context.Context, ids []string) error {
	if err := s.repo.IncrementStudents(ctx, ids, 1); err != nil {
		return fmt.Errorf("record course sales: %w", err)
	}
	s.invalidate(ctx, ids...)
	return nil
}

// AgentView returns the agent-facing description of a course.
func (s *Service) AgentView(ctx context.Context, id string) (string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return c.AgentDescription(), nil
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = detailKey(id)
	}
	s.cache.Delete(ctx, keys...)
	s.cache.DeletePattern(ctx, "course:list:*")
}

func (s *Service) invalidatePrices(ctx context.Context) {
	s.cache.DeletePattern(ctx, pricing.AllQuotes)
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func invalidCategory(cat domcourse.Category) error {
	return domain.Invalid("category", "unknown category %q", cat)
}
