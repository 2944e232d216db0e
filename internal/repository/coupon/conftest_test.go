package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/db/postgres"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

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

func seedCoupon(t *testing.T, r *Repo, code string, mut func(*domcoupon.Draft)) domcoupon.Coupon {
	t.Helper()
	d := domcoupon.Draft{
		Code:      code,
		Name:      "Coupon " + code,
		Type:      domcoupon.Percentage,
		Value:     dec("0.1"),
		ValidFrom: testNow.Add(-24 * time.Hour),
		ValidTo:   testNow.Add(10 * 24 * time.Hour),
	}
	if mut != nil {
		mut(&d)
	}
	c, err := domcoupon.New(d, testNow)
	if err != nil {
		t.Fatalf("new coupon: %v", err)
	}
	if err := r.Create(t.Context(), c); err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	return c
}
