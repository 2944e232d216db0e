package course

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/db/postgres"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

var testNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*Repo, *gorm.DB) {
	t.Helper()
	db, err := postgres.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = postgres.Close(db) })
	return New(db), db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedCourse(t *testing.T, r *Repo, name string, cat domcourse.Category, price string, mut func(*domcourse.Draft)) domcourse.Course {
	t.Helper()
	d := domcourse.Draft{
		Name:          name,
		Category:      cat,
		OriginalPrice: dec(price),
		DurationHours: 20,
		Difficulty:    domcourse.Beginner,
		Tags:          []string{"intro"},
	}
	if mut != nil {
		mut(&d)
	}
	c, err := domcourse.New(d, testNow)
	if err != nil {
		t.Fatalf("new course: %v", err)
	}
	if err := r.Create(t.Context(), c); err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}
