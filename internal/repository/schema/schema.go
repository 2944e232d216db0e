// Package schema owns the relational schema of all repositories.
package schema

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/repository/coupon"
	"github.com/coursedesk/offerd/internal/repository/course"
	"github.com/coursedesk/offerd/internal/repository/discount"
	"github.com/coursedesk/offerd/internal/repository/order"
	"github.com/coursedesk/offerd/internal/repository/profile"
)

// Models returns every gorm model in dependency order.
func Models() []any {
	var out []any
	for _, m := range [][]any{
		course.Models(),
		coupon.Models(),
		discount.Models(),
		order.Models(),
		profile.Models(),
	} {
		out = append(out, m...)
	}
	return out
}

// Migrate creates or updates all tables and indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
