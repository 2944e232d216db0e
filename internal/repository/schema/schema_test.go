package schema

import (
	"testing"

	"github.com/coursedesk/offerd/internal/db/postgres"
)

func TestMigrate_CreatesTables(t *testing.T) {
	db, err := postgres.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = postgres.Close(db) }()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, table := range []string{
		"courses", "coupons", "coupon_usages", "applied_discounts",
		"orders", "order_items", "user_profiles", "profile_history",
	} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
}
