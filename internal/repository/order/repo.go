package order

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
	domorder "github.com/coursedesk/offerd/internal/domain/order"
)

// Repo stores orders and their items.
type Repo struct {
	db *gorm.DB
}

// New creates an order repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Models lists the gorm models owned by this repository.
func Models() []any { return []any{&Row{}, &ItemRow{}} }

func withItems(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// Create inserts an order with its items.
func (r *Repo) Create(ctx context.Context, o domorder.Order) error {
	row := toRow(o)
	items := row.Items
	row.Items = nil

	tx := postgres.Conn(ctx, r.db)
	if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert order %s: %w", o.ID(), err)
	}
	if err := tx.Create(&items).Error; err != nil {
		return fmt.Errorf("insert order items %s: %w", o.ID(), err)
	}
	return nil
}

// Update persists the mutable part of an order. Items never change after creation.
func (r *Repo) Update(ctx context.Context, o domorder.Order) error {
	s := o.State()
	res := postgres.Conn(ctx, r.db).Model(&Row{}).Where("id = ?", s.ID).Updates(map[string]any{
		"status":         string(s.Status),
		"payment_status": string(s.PaymentStatus),
		"payment_method": s.PaymentMethod,
		"notes":          s.Notes,
		"cancel_reason":  s.CancelReason,
		"updated_at":     s.UpdatedAt,
		"paid_at":        s.PaidAt,
	})
	if res.Error != nil {
		return fmt.Errorf("update order %s: %w", s.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns an order with its items.
func (r *Repo) Get(ctx context.Context, id string) (domorder.Order, error) {
	var row Row
	if err := withItems(postgres.Conn(ctx, r.db)).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domorder.Order{}, domain.ErrNotFound
		}
		return domorder.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return fromRow(row), nil
}

// List returns orders matching the filter, newest first, and the total match count.
func (r *Repo) List(ctx context.Context, f domorder.Filter) ([]domorder.Order, int64, error) {
	f = f.Normalize()
	q := postgres.Conn(ctx, r.db).Model(&Row{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var rows []Row
	err := withItems(q).Order("created_at DESC").Order("id DESC").
		Limit(f.Limit).Offset(f.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return fromRows(rows), total, nil
}

// PendingOlderThan returns pending, unpaid orders created before cutoff, oldest first.
func (r *Repo) PendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domorder.Order, error) {
	var rows []Row
	err := withItems(postgres.Conn(ctx, r.db)).
		Where("status = ? AND payment_status IN ? AND created_at < ?",
			string(domorder.StatusPending),
			[]string{string(domorder.PaymentPending), string(domorder.PaymentFailed)},
			cutoff).
		Order("created_at ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pending orders: %w", err)
	}
	return fromRows(rows), nil
}

// PaidCount counts the paid orders of a user.
func (r *Repo) PaidCount(ctx context.Context, userID string) (int, error) {
	var n int64
	err := postgres.Conn(ctx, r.db).Model(&Row{}).
		Where("user_id = ? AND payment_status = ?", userID, string(domorder.PaymentPaid)).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count paid orders of %s: %w", userID, err)
	}
	return int(n), nil
}

type statsAgg struct {
	TotalOrders     int
	PaidOrders      int
	CancelledOrders int
	Revenue         decimal.Decimal
	TotalDiscount   decimal.Decimal
}

// Statistics aggregates orders created in [from, to). An empty userID covers all users.
func (r *Repo) Statistics(ctx context.Context, from, to time.Time, userID string) (domorder.Statistics, error) {
	paid := string(domorder.PaymentPaid)
	q := postgres.Conn(ctx, r.db).Model(&Row{}).
		Select("COUNT(*) AS total_orders, "+
			"COALESCE(SUM(CASE WHEN payment_status = ? THEN 1 ELSE 0 END), 0) AS paid_orders, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS cancelled_orders, "+
			"COALESCE(SUM(CASE WHEN payment_status = ? THEN final_amount ELSE 0 END), 0) AS revenue, "+
			"COALESCE(SUM(CASE WHEN payment_status = ? THEN discount_amount + coupon_discount ELSE 0 END), 0) AS total_discount",
			paid, string(domorder.StatusCancelled), paid, paid).
		Where("created_at >= ? AND created_at < ?", from, to)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var agg statsAgg
	if err := q.Scan(&agg).Error; err != nil {
		return domorder.Statistics{}, fmt.Errorf("order statistics: %w", err)
	}
	return domorder.Statistics{
		TotalOrders:     agg.TotalOrders,
		PaidOrders:      agg.PaidOrders,
		CancelledOrders: agg.CancelledOrders,
		Revenue:         domain.Round2(agg.Revenue),
		TotalDiscount:   domain.Round2(agg.TotalDiscount),
	}.Finalize(), nil
}

// RevenueByDay buckets paid orders with paid_at in [from, to) by UTC calendar day.
// Days without sales are omitted.
func (r *Repo) RevenueByDay(ctx context.Context, from, to time.Time, userID string) ([]domorder.RevenuePoint, error) {
	var rows []struct {
		PaidAt      time.Time
		FinalAmount decimal.Decimal
	}
	q := postgres.Conn(ctx, r.db).Model(&Row{}).Select("paid_at, final_amount").
		Where("payment_status = ? AND paid_at >= ? AND paid_at < ?", string(domorder.PaymentPaid), from, to)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Order("paid_at ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("revenue by day: %w", err)
	}

	var out []domorder.RevenuePoint
	for _, row := range rows {
		day := row.PaidAt.UTC().Format(time.DateOnly)
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Orders++
			out[n-1].Revenue = out[n-1].Revenue.Add(row.FinalAmount)
			continue
		}
		out = append(out, domorder.RevenuePoint{Date: day, Orders: 1, Revenue: row.FinalAmount})
	}
	for i := range out {
		out[i].Revenue = domain.Round2(out[i].Revenue)
	}
	return out, nil
}

// PopularCourses ranks courses by units sold in paid orders paid since the given time.
func (r *Repo) PopularCourses(ctx context.Context, since time.Time, limit int) ([]domorder.CourseSales, error) {
	var aggs []struct {
		CourseID   string
		CourseName string
		Sold       int
		Revenue    decimal.Decimal
	}
	err := postgres.Conn(ctx, r.db).Table("order_items AS i").
		Select("i.course_id, MAX(i.course_name) AS course_name, "+
			"COALESCE(SUM(i.quantity), 0) AS sold, COALESCE(SUM(i.discounted_price * i.quantity), 0) AS revenue").
		Joins("JOIN orders o ON o.id = i.order_id").
		Where("o.payment_status = ? AND o.paid_at >= ?", string(domorder.PaymentPaid), since).
		Group("i.course_id").
		Order("sold DESC").Order("revenue DESC").Order("i.course_id ASC").
		Limit(limit).Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("popular courses: %w", err)
	}
	out := make([]domorder.CourseSales, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, domorder.CourseSales{
			CourseID:   a.CourseID,
			CourseName: a.CourseName,
			Sold:       a.Sold,
			Revenue:    domain.Round2(a.Revenue),
		})
	}
	return out, nil
}
