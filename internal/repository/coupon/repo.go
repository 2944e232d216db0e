package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursedesk/offerd/internal/db/postgres"
	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
)

// Repo implements usecase/coupon.Repository on gorm.
type Repo struct {
	db *gorm.DB
}

// New creates a coupon repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Models lists the gorm models owned by this repository.
func Models() []any { return []any{&Row{}, &UsageRow{}} }

// Create inserts a coupon. Codes are unique.
func (r *Repo) Create(ctx context.Context, c domcoupon.Coupon) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	if err := postgres.Conn(ctx, r.db).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert coupon %s: %w", c.Code(), err)
	}
	return nil
}

// Update overwrites a stored coupon.
func (r *Repo) Update(ctx context.Context, c domcoupon.Coupon) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	res := postgres.Conn(ctx, r.db).Model(&Row{}).Where("id = ?", row.ID).
		Select("*").Omit("id", "code", "created_at").Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update coupon %s: %w", c.Code(), res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveUsage persists a redeemed or released coupon, guarded by the used count it was read with.
// Returns domain.ErrConflict when another redemption changed the counter in between.
func (r *Repo) SaveUsage(ctx context.Context, c domcoupon.Coupon, readUsedCount int) error {
	s := c.State()
	res := postgres.Conn(ctx, r.db).Model(&Row{}).
		Where("id = ? AND used_count = ?", s.ID, readUsedCount).
		Updates(map[string]any{
			"used_count": s.UsedCount,
			"status":     string(s.Status),
			"updated_at": s.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save coupon usage %s: %w", s.Code, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// GetByCode returns a coupon by its normalized code.
func (r *Repo) GetByCode(ctx context.Context, code string) (domcoupon.Coupon, error) {
	return r.getByCode(postgres.Conn(ctx, r.db), code)
}

// GetByCodeForUpdate returns a coupon and locks its row for the current transaction.
func (r *Repo) GetByCodeForUpdate(ctx context.Context, code string) (domcoupon.Coupon, error) {
	return r.getByCode(postgres.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), code)
}

func (r *Repo) getByCode(tx *gorm.DB, code string) (domcoupon.Coupon, error) {
	var row Row
	if err := tx.Where("code = ?", code).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domcoupon.Coupon{}, domain.ErrNotFound
		}
		return domcoupon.Coupon{}, fmt.Errorf("get coupon %s: %w", code, err)
	}
	return fromRow(row)
}

func validAt(tx *gorm.DB, now time.Time) *gorm.DB {
	return tx.Where("status = ? AND valid_from <= ? AND valid_to >= ?", string(domcoupon.StatusActive), now, now).
		Where("(usage_limit IS NULL OR used_count < usage_limit)")
}

// ListValid returns coupons usable at now, soonest expiry first.
func (r *Repo) ListValid(ctx context.Context, now time.Time, limit int) ([]domcoupon.Coupon, error) {
	var rows []Row
	err := validAt(postgres.Conn(ctx, r.db), now).
		Order("valid_to ASC").Order("code ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list valid coupons: %w", err)
	}
	return fromRows(rows)
}

// Expiring returns valid coupons whose window closes before until.
func (r *Repo) Expiring(ctx context.Context, now, until time.Time) ([]domcoupon.Coupon, error) {
	var rows []Row
	err := validAt(postgres.Conn(ctx, r.db), now).Where("valid_to <= ?", until).
		Order("valid_to ASC").Order("code ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list expiring coupons: %w", err)
	}
	return fromRows(rows)
}

// ExpireStale marks active coupons past their window as expired.
func (r *Repo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := postgres.Conn(ctx, r.db).Model(&Row{}).
		Where("status = ? AND valid_to < ?", string(domcoupon.StatusActive), now).
		Updates(map[string]any{"status": string(domcoupon.StatusExpired), "updated_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("expire coupons: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordUsage inserts a redemption record.
func (r *Repo) RecordUsage(ctx context.Context, u domcoupon.Usage) error {
	row, err := toUsageRow(u)
	if err != nil {
		return err
	}
	if err := postgres.Conn(ctx, r.db).Create(&row).Error; err != nil {
		return fmt.Errorf("insert coupon usage %s: %w", u.Code, err)
	}
	return nil
}

// DeleteUsageByOrder removes the redemption made by an order and returns it.
func (r *Repo) DeleteUsageByOrder(ctx context.Context, orderID string) (domcoupon.Usage, error) {
	var row UsageRow
	tx := postgres.Conn(ctx, r.db)
	if err := tx.Where("order_id = ?", orderID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domcoupon.Usage{}, domain.ErrNotFound
		}
		return domcoupon.Usage{}, fmt.Errorf("get usage for order %s: %w", orderID, err)
	}
	if err := tx.Delete(&UsageRow{}, "id = ?", row.ID).Error; err != nil {
		return domcoupon.Usage{}, fmt.Errorf("delete usage %s: %w", row.ID, err)
	}
	return fromUsageRow(row)
}

// UserUses counts how many times a user redeemed a coupon.
func (r *Repo) UserUses(ctx context.Context, couponID, userID string) (int, error) {
	var n int64
	err := postgres.Conn(ctx, r.db).Model(&UsageRow{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count coupon uses: %w", err)
	}
	return int(n), nil
}

// UserUsesByCoupon counts a user's redemptions grouped by coupon ID.
func (r *Repo) UserUsesByCoupon(ctx context.Context, userID string) (map[string]int, error) {
	var aggs []struct {
		CouponID string
		Uses     int
	}
	err := postgres.Conn(ctx, r.db).Model(&UsageRow{}).
		Select("coupon_id, COUNT(*) AS uses").Where("user_id = ?", userID).
		Group("coupon_id").Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("count user coupon uses: %w", err)
	}
	out := make(map[string]int, len(aggs))
	for _, a := range aggs {
		out[a.CouponID] = a.Uses
	}
	return out, nil
}

// UsageHistory lists redemptions of a code, newest first.
func (r *Repo) UsageHistory(ctx context.Context, code string, limit int) ([]domcoupon.Usage, error) {
	var rows []UsageRow
	err := postgres.Conn(ctx, r.db).Where("code = ?", code).
		Order("used_at DESC").Order("id ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("coupon usage history %s: %w", code, err)
	}
	out := make([]domcoupon.Usage, 0, len(rows))
	for _, row := range rows {
		u, err := fromUsageRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

type statsAgg struct {
	TotalUses     int
	UniqueUsers   int
	TotalDiscount decimal.Decimal
	TotalRevenue  decimal.Decimal
}

// Stats aggregates redemptions of a code.
func (r *Repo) Stats(ctx context.Context, code string) (domcoupon.Stats, error) {
	var agg statsAgg
	err := postgres.Conn(ctx, r.db).Model(&UsageRow{}).
		Select("COUNT(*) AS total_uses, COUNT(DISTINCT user_id) AS unique_users, "+
			"COALESCE(SUM(discount_amount), 0) AS total_discount, COALESCE(SUM(final_amount), 0) AS total_revenue").
		Where("code = ?", code).Scan(&agg).Error
	if err != nil {
		return domcoupon.Stats{}, fmt.Errorf("coupon stats %s: %w", code, err)
	}
	return domcoupon.Stats{
		Code:          code,
		TotalUses:     agg.TotalUses,
		UniqueUsers:   agg.UniqueUsers,
		TotalDiscount: domain.Round2(agg.TotalDiscount),
		TotalRevenue:  domain.Round2(agg.TotalRevenue),
	}, nil
}
