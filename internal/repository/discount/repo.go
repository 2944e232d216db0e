package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/db/postgres"
	"github.com/coursedesk/offerd/internal/domain"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
)

// Repo stores applied discounts.
type Repo struct {
	db *gorm.DB
}

// New creates an applied discount repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Models lists the gorm models owned by this repository.
func Models() []any { return []any{&Row{}} }

// Create inserts an applied discount.
func (r *Repo) Create(ctx context.Context, a domdiscount.Applied) error {
	row, err := toRow(a)
	if err != nil {
		return err
	}
	if err := postgres.Conn(ctx, r.db).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert discount %s: %w", a.ID(), err)
	}
	return nil
}

// SaveUsage persists the used flags of a discount.
// Marking as used only succeeds while the row is still unused.
func (r *Repo) SaveUsage(ctx context.Context, a domdiscount.Applied) error {
	s := a.State()
	tx := postgres.Conn(ctx, r.db).Model(&Row{}).Where("id = ?", s.ID)
	if s.IsUsed {
		tx = tx.Where("is_used = ?", false)
	}
	res := tx.Updates(map[string]any{
		"is_used":  s.IsUsed,
		"used_at":  s.UsedAt,
		"order_id": s.OrderID,
	})
	if res.Error != nil {
		return fmt.Errorf("save discount usage %s: %w", s.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrDiscountUnavailable
	}
	return nil
}

// Get returns an applied discount by ID.
func (r *Repo) Get(ctx context.Context, id string) (domdiscount.Applied, error) {
	var row Row
	if err := postgres.Conn(ctx, r.db).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domdiscount.Applied{}, domain.ErrNotFound
		}
		return domdiscount.Applied{}, fmt.Errorf("get discount %s: %w", id, err)
	}
	return fromRow(row)
}

// GetByOrder returns the discount consumed by an order.
func (r *Repo) GetByOrder(ctx context.Context, orderID string) (domdiscount.Applied, error) {
	var row Row
	if err := postgres.Conn(ctx, r.db).Where("order_id = ?", orderID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domdiscount.Applied{}, domain.ErrNotFound
		}
		return domdiscount.Applied{}, fmt.Errorf("get discount for order %s: %w", orderID, err)
	}
	return fromRow(row)
}

// ActiveForUser returns unused, unexpired discounts of a user, newest first.
func (r *Repo) ActiveForUser(ctx context.Context, userID string, now time.Time) ([]domdiscount.Applied, error) {
	var rows []Row
	err := postgres.Conn(ctx, r.db).
		Where("user_id = ? AND is_used = ? AND valid_until > ?", userID, false, now).
		Order("created_at DESC").Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("active discounts for %s: %w", userID, err)
	}
	return fromRows(rows)
}

// History returns all discounts of a user, newest first.
func (r *Repo) History(ctx context.Context, userID string, limit int) ([]domdiscount.Applied, error) {
	var rows []Row
	err := postgres.Conn(ctx, r.db).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("discount history for %s: %w", userID, err)
	}
	return fromRows(rows)
}

// CountExpired counts unused discounts whose validity ended at or before now.
func (r *Repo) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := postgres.Conn(ctx, r.db).Model(&Row{}).
		Where("is_used = ? AND valid_until <= ?", false, now).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count expired discounts: %w", err)
	}
	return n, nil
}

type optionAgg struct {
	OptionType    string
	Applied       int
	Used          int
	TotalDiscount decimal.Decimal
	AverageValue  decimal.Decimal
}

// EffectivenessStats aggregates discounts created since the given time per option type.
func (r *Repo) EffectivenessStats(ctx context.Context, since time.Time) ([]domdiscount.OptionStats, error) {
	var aggs []optionAgg
	err := postgres.Conn(ctx, r.db).Model(&Row{}).
		Select("option_type, COUNT(*) AS applied, "+
			"COALESCE(SUM(CASE WHEN is_used THEN 1 ELSE 0 END), 0) AS used, "+
			"COALESCE(SUM(discount_amount), 0) AS total_discount, COALESCE(AVG(value), 0) AS average_value").
		Where("created_at >= ?", since).
		Group("option_type").Order("option_type").Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("discount effectiveness: %w", err)
	}
	out := make([]domdiscount.OptionStats, 0, len(aggs))
	for _, a := range aggs {
		rate, _ := domain.Ratio(decimal.NewFromInt(int64(a.Used)), decimal.NewFromInt(int64(a.Applied))).Float64()
		out = append(out, domdiscount.OptionStats{
			OptionType:     domdiscount.OptionType(a.OptionType),
			Applied:        a.Applied,
			Used:           a.Used,
			ConversionRate: rate,
			TotalDiscount:  domain.Round2(a.TotalDiscount),
			AverageValue:   a.AverageValue.Round(4),
		})
	}
	return out, nil
}
