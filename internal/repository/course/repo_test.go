package course

import (
	"errors"
	"testing"

	"github.com/coursedesk/offerd/internal/domain"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

func TestRepo_CreateGet(t *testing.T) {
	r, _ := newTestRepo(t)
	rating := 4.5
	c := seedCourse(t, r, "Go in Practice", domcourse.CategoryWebDevelopment, "1299.50", func(d *domcourse.Draft) {
		d.Rating = &rating
		d.Prerequisites = []string{"basic programming"}
	})

	got, err := r.Get(t.Context(), c.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	s := got.State()
	if s.Name != "Go in Practice" || !s.CurrentPrice.Equal(dec("1299.5")) {
		t.Errorf("unexpected course %+v", s)
	}
	if len(s.Prerequisites) != 1 || s.Prerequisites[0] != "basic programming" {
		t.Errorf("expected prerequisites round trip, got %v", s.Prerequisites)
	}
	if s.Rating == nil || *s.Rating != 4.5 {
		t.Errorf("expected rating 4.5, got %v", s.Rating)
	}
}

func TestRepo_GetMissing(t *testing.T) {
	r, _ := newTestRepo(t)
	if _, err := r.Get(t.Context(), "course_nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_CreateDuplicate(t *testing.T) {
	r, _ := newTestRepo(t)
	c := seedCourse(t, r, "A", domcourse.CategoryPython, "10", nil)
	if err := r.Create(t.Context(), c); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRepo_Update(t *testing.T) {
	r, _ := newTestRepo(t)
	c := seedCourse(t, r, "A", domcourse.CategoryPython, "100", nil)
	price := dec("80")
	updated, err := c.Apply(domcourse.Update{CurrentPrice: &price}, testNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := r.Update(t.Context(), updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := r.Get(t.Context(), c.ID())
	if !got.CurrentPrice().Equal(dec("80")) {
		t.Errorf("expected 80, got %s", got.CurrentPrice())
	}

	ghost, _ := domcourse.New(domcourse.Draft{Name: "ghost", Category: domcourse.CategoryPython, OriginalPrice: dec("1"), DurationHours: 1, Difficulty: domcourse.Beginner}, testNow)
	if err := r.Update(t.Context(), ghost); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing course, got %v", err)
	}
}

func TestRepo_GetManyKeepsOrder(t *testing.T) {
	r, _ := newTestRepo(t)
	a := seedCourse(t, r, "A", domcourse.CategoryPython, "10", nil)
	b := seedCourse(t, r, "B", domcourse.CategoryPython, "20", nil)

	got, err := r.GetMany(t.Context(), []string{b.ID(), "missing", a.ID()})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 2 || got[0].ID() != b.ID() || got[1].ID() != a.ID() {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestRepo_Search(t *testing.T) {
	r, _ := newTestRepo(t)
	seedCourse(t, r, "Pandas Basics", domcourse.CategoryDataAnalysis, "500", func(d *domcourse.Draft) {
		d.Tags = []string{"pandas", "excel"}
	})
	seedCourse(t, r, "Deep Learning", domcourse.CategoryMachineLearning, "3000", func(d *domcourse.Draft) {
		d.Difficulty = domcourse.Advanced
		d.Tags = []string{"pytorch"}
	})
	seedCourse(t, r, "Retired SQL", domcourse.CategoryDatabase, "100", func(d *domcourse.Draft) {
		d.Status = domcourse.StatusArchived
	})

	tests := []struct {
		name string
		mut  func(*domcourse.SearchQuery)
		want []string
	}{
		{"all available", func(*domcourse.SearchQuery) {}, []string{"Pandas Basics", "Deep Learning"}},
		{"keyword", func(q *domcourse.SearchQuery) { q.Keywords = "deep" }, []string{"Deep Learning"}},
		{"tag", func(q *domcourse.SearchQuery) { q.Tags = []string{"excel"} }, []string{"Pandas Basics"}},
		{"max price", func(q *domcourse.SearchQuery) { p := dec("1000"); q.MaxPrice = &p }, []string{"Pandas Basics"}},
		{"difficulty", func(q *domcourse.SearchQuery) { q.Difficulty = domcourse.Advanced }, []string{"Deep Learning"}},
		{"include unavailable", func(q *domcourse.SearchQuery) { q.OnlyAvailable = false; q.Category = domcourse.CategoryDatabase }, []string{"Retired SQL"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := domcourse.NewSearchQuery()
			tc.mut(&q)
			q, err := q.Normalize()
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			got, err := r.Search(t.Context(), q)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d results, got %d", len(tc.want), len(got))
			}
			for i, c := range got {
				if c.Name() != tc.want[i] {
					t.Errorf("position %d: expected %q, got %q", i, tc.want[i], c.Name())
				}
			}
		})
	}
}

func TestRepo_PopularAndIncrement(t *testing.T) {
	r, _ := newTestRepo(t)
	a := seedCourse(t, r, "A", domcourse.CategoryPython, "10", nil)
	b := seedCourse(t, r, "B", domcourse.CategoryPython, "10", nil)

	if err := r.IncrementStudents(t.Context(), []string{b.ID()}, 3); err != nil {
		t.Fatalf("IncrementStudents: %v", err)
	}
	got, err := r.Popular(t.Context(), 10)
	if err != nil {
		t.Fatalf("Popular: %v", err)
	}
	if len(got) != 2 || got[0].ID() != b.ID() || got[0].StudentCount() != 3 {
		t.Errorf("expected B first with 3 students, got %v", got)
	}
	_ = a
}

func TestRepo_CategoriesAndPriceRange(t *testing.T) {
	r, _ := newTestRepo(t)
	seedCourse(t, r, "A", domcourse.CategoryPython, "100", nil)
	seedCourse(t, r, "B", domcourse.CategoryPython, "200", nil)
	seedCourse(t, r, "C", domcourse.CategoryDatabase, "50.5", nil)

	cats, err := r.Categories(t.Context())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	if cats[1].Category != domcourse.CategoryPython || cats[1].Count != 2 || !cats[1].AveragePrice.Equal(dec("150")) {
		t.Errorf("unexpected python stats %+v", cats[1])
	}

	pr, err := r.PriceRange(t.Context(), "")
	if err != nil {
		t.Fatalf("PriceRange: %v", err)
	}
	if !pr.Min.Equal(dec("50.5")) || !pr.Max.Equal(dec("200")) || pr.Count != 3 {
		t.Errorf("unexpected range %+v", pr)
	}

	empty, err := r.PriceRange(t.Context(), domcourse.CategoryAI)
	if err != nil {
		t.Fatalf("PriceRange: %v", err)
	}
	if !empty.Min.IsZero() || empty.Count != 0 {
		t.Errorf("expected empty range, got %+v", empty)
	}
}
