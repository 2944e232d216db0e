package course

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validDraft() Draft {
	return Draft{
		Name:          "Python for Data Analysis",
		Category:      CategoryPython,
		OriginalPrice: d("1999"),
		DurationHours: 40,
		Difficulty:    Beginner,
		Tags:          []string{" pandas ", "numpy", ""},
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(validDraft(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.CurrentPrice().Equal(d("1999")) {
		t.Errorf("expected current price to default to original, got %s", c.CurrentPrice())
	}
	if c.Status() != StatusActive || !c.IsAvailable() {
		t.Errorf("expected active course, got %s", c.Status())
	}
	if !strings.HasPrefix(c.ID(), "course_") || len(c.ID()) != len("course_")+12 {
		t.Errorf("unexpected id %q", c.ID())
	}
	if len(c.Tags()) != 2 || c.Tags()[0] != "pandas" {
		t.Errorf("expected trimmed tags, got %v", c.Tags())
	}
}

func TestNew_Validation(t *testing.T) {
	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = "t"
	}
	rating := 5.5
	higher := d("2500")

	tests := []struct {
		name  string
		mut   func(*Draft)
		field string
	}{
		{"empty name", func(x *Draft) { x.Name = "  " }, "name"},
		{"long name", func(x *Draft) { x.Name = strings.Repeat("a", 201) }, "name"},
		{"bad category", func(x *Draft) { x.Category = "cooking" }, "category"},
		{"negative price", func(x *Draft) { x.OriginalPrice = d("-1") }, "original_price"},
		{"current above original", func(x *Draft) { x.CurrentPrice = &higher }, "current_price"},
		{"zero duration", func(x *Draft) { x.DurationHours = 0 }, "duration_hours"},
		{"long duration", func(x *Draft) { x.DurationHours = 1001 }, "duration_hours"},
		{"bad difficulty", func(x *Draft) { x.Difficulty = "impossible" }, "difficulty"},
		{"too many tags", func(x *Draft) { x.Tags = tooMany }, "tags"},
		{"rating out of range", func(x *Draft) { x.Rating = &rating }, "rating"},
		{"bad status", func(x *Draft) { x.Status = "deleted" }, "status"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dr := validDraft()
			tc.mut(&dr)
			_, err := New(dr, now)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, ve.Field)
			}
		})
	}
}

func TestApply_PartialUpdate(t *testing.T) {
	c, _ := New(validDraft(), now)
	price := d("1499.5")
	later := now.Add(time.Hour)

	updated, err := c.Apply(Update{CurrentPrice: &price}, later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.CurrentPrice().Equal(d("1499.5")) {
		t.Errorf("unexpected price %s", updated.CurrentPrice())
	}
	if updated.Name() != c.Name() {
		t.Error("name should be untouched")
	}
	if !updated.State().UpdatedAt.Equal(later) {
		t.Error("expected UpdatedAt to move")
	}
	if !c.CurrentPrice().Equal(d("1999")) {
		t.Error("original value must not change")
	}
}

func TestApply_RevalidatesWhole(t *testing.T) {
	c, _ := New(validDraft(), now)
	original := d("100")
	if _, err := c.Apply(Update{OriginalPrice: &original}, now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error when original drops below current, got %v", err)
	}
}

func TestDiscountPercentage(t *testing.T) {
	cur := d("1500")
	dr := validDraft()
	dr.OriginalPrice = d("2000")
	dr.CurrentPrice = &cur
	c, _ := New(dr, now)
	if !c.DiscountPercentage().Equal(d("0.25")) {
		t.Errorf("expected 0.25, got %s", c.DiscountPercentage())
	}

	zero := decimal.Zero
	dr.OriginalPrice = zero
	dr.CurrentPrice = &zero
	free, _ := New(dr, now)
	if !free.DiscountPercentage().IsZero() {
		t.Errorf("expected zero for free course, got %s", free.DiscountPercentage())
	}
}

func TestRecommendationScore(t *testing.T) {
	rating := 4.5
	s := State{
		ID: "c1", Name: "x", Category: CategoryPython, OriginalPrice: d("1000"), CurrentPrice: d("1000"),
		DurationHours: 10, Difficulty: Beginner, Rating: &rating, StudentCount: 500, Status: StatusActive,
	}
	// 4.5/5*0.4 + 0.5*0.3 + 0.5*0.3 = 0.36 + 0.15 + 0.15
	if got := Reconstruct(s).RecommendationScore(); got != 0.66 {
		t.Errorf("expected 0.66, got %v", got)
	}

	s.Rating = nil
	s.StudentCount = 5000
	s.CurrentPrice = d("3000")
	s.OriginalPrice = d("3000")
	if got := Reconstruct(s).RecommendationScore(); got != 0.3 {
		t.Errorf("expected 0.3, got %v", got)
	}
}

func TestAgentDescription(t *testing.T) {
	cur := d("1500")
	dr := validDraft()
	dr.OriginalPrice = d("2000")
	dr.CurrentPrice = &cur
	dr.Instructor = "Ada"
	c, _ := New(dr, now)

	text := c.AgentDescription()
	for _, want := range []string{"Python for Data Analysis", "Instructor: Ada", "1500.00", "25% off"} {
		if !strings.Contains(text, want) {
			t.Errorf("description missing %q:\n%s", want, text)
		}
	}
}

func TestSearchQuery_Normalize(t *testing.T) {
	lo, hi := d("500"), d("100")
	q := NewSearchQuery()
	q.MinPrice, q.MaxPrice = &lo, &hi
	if _, err := q.Normalize(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inverted price range, got %v", err)
	}

	minD, maxD := 20, 10
	q = NewSearchQuery()
	q.MinDuration, q.MaxDuration = &minD, &maxD
	if _, err := q.Normalize(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inverted duration range, got %v", err)
	}

	q = SearchQuery{Limit: 1000, Offset: -4, Tags: []string{"b", " a "}}
	n, err := q.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Limit != 100 || n.Offset != 0 {
		t.Errorf("expected clamped paging, got limit=%d offset=%d", n.Limit, n.Offset)
	}
	if n.Tags[0] != "a" || n.Tags[1] != "b" {
		t.Errorf("expected sorted tags, got %v", n.Tags)
	}
}

func TestSearchQuery_CacheKeyStable(t *testing.T) {
	a := SearchQuery{Keywords: "Python", Tags: []string{"x", "y"}, OnlyAvailable: true}
	b := SearchQuery{Keywords: "python", Tags: []string{"y", "x"}, OnlyAvailable: true}
	na, _ := a.Normalize()
	nb, _ := b.Normalize()
	if na.CacheKey() != nb.CacheKey() {
		t.Errorf("expected equal keys:\n%s\n%s", na.CacheKey(), nb.CacheKey())
	}
}
