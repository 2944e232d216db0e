package coupon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/coursedesk/offerd/internal/db/postgres"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
)

// Row is the gorm model of the coupons table.
type Row struct {
	ID                string           `gorm:"primaryKey;size:64"`
	Code              string           `gorm:"size:50;not null;uniqueIndex"`
	Name              string           `gorm:"size:100;not null"`
	Type              string           `gorm:"size:20;not null"`
	Value             decimal.Decimal  `gorm:"type:numeric(12,4);not null"`
	MinOrderAmount    decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	MaxDiscount       *decimal.Decimal `gorm:"type:numeric(12,2)"`
	ValidFrom         time.Time        `gorm:"not null"`
	ValidTo           time.Time        `gorm:"not null;index"`
	UsageLimit        *int
	UsageLimitPerUser *int
	UsedCount         int            `gorm:"not null;default:0"`
	ApplicableCourses datatypes.JSON `gorm:"type:jsonb"`
	Description       string         `gorm:"size:500"`
	Status            string         `gorm:"size:20;not null;index"`
	CreatedAt         time.Time      `gorm:"not null"`
	UpdatedAt         time.Time      `gorm:"not null"`
}

// TableName pins the table name.
func (Row) TableName() string { return "coupons" }

// UsageRow is the gorm model of the coupon_usages table.
type UsageRow struct {
	ID             string          `gorm:"primaryKey;size:64"`
	CouponID       string          `gorm:"size:64;not null;index"`
	Code           string          `gorm:"size:50;not null;index"`
	UserID         string          `gorm:"size:64;not null;index"`
	OrderID        string          `gorm:"size:64;not null;index"`
	CourseIDs      datatypes.JSON  `gorm:"type:jsonb"`
	OriginalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	FinalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	UsedAt         time.Time       `gorm:"not null;index"`
}

// TableName pins the table name.
func (UsageRow) TableName() string { return "coupon_usages" }

func toRow(c domcoupon.Coupon) (Row, error) {
	s := c.State()
	courses, err := postgres.ToJSON(s.ApplicableCourses)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:                s.ID,
		Code:              s.Code,
		Name:              s.Name,
		Type:              string(s.Type),
		Value:             s.Value,
		MinOrderAmount:    s.MinOrderAmount,
		MaxDiscount:       s.MaxDiscount,
		ValidFrom:         s.ValidFrom,
		ValidTo:           s.ValidTo,
		UsageLimit:        s.UsageLimit,
		UsageLimitPerUser: s.UsageLimitPerUser,
		UsedCount:         s.UsedCount,
		ApplicableCourses: courses,
		Description:       s.Description,
		Status:            string(s.Status),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}, nil
}

func fromRow(r Row) (domcoupon.Coupon, error) {
	s := domcoupon.State{
		ID:                r.ID,
		Code:              r.Code,
		Name:              r.Name,
		Type:              domcoupon.Type(r.Type),
		Value:             r.Value,
		MinOrderAmount:    r.MinOrderAmount,
		MaxDiscount:       r.MaxDiscount,
		ValidFrom:         r.ValidFrom,
		ValidTo:           r.ValidTo,
		UsageLimit:        r.UsageLimit,
		UsageLimitPerUser: r.UsageLimitPerUser,
		UsedCount:         r.UsedCount,
		Description:       r.Description,
		Status:            domcoupon.Status(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if err := postgres.FromJSON(r.ApplicableCourses, &s.ApplicableCourses); err != nil {
		return domcoupon.Coupon{}, fmt.Errorf("coupon %s courses: %w", r.Code, err)
	}
	return domcoupon.Reconstruct(s), nil
}

func fromRows(rows []Row) ([]domcoupon.Coupon, error) {
	out := make([]domcoupon.Coupon, 0, len(rows))
	for _, r := range rows {
		c, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toUsageRow(u domcoupon.Usage) (UsageRow, error) {
	courses, err := postgres.ToJSON(u.CourseIDs)
	if err != nil {
		return UsageRow{}, err
	}
	return UsageRow{
		ID:             u.ID,
		CouponID:       u.CouponID,
		Code:           u.Code,
		UserID:         u.UserID,
		OrderID:        u.OrderID,
		CourseIDs:      courses,
		OriginalAmount: u.OriginalAmount,
		DiscountAmount: u.DiscountAmount,
		FinalAmount:    u.FinalAmount,
		UsedAt:         u.UsedAt,
	}, nil
}

func fromUsageRow(r UsageRow) (domcoupon.Usage, error) {
	u := domcoupon.Usage{
		ID:             r.ID,
		CouponID:       r.CouponID,
		Code:           r.Code,
		UserID:         r.UserID,
		OrderID:        r.OrderID,
		OriginalAmount: r.OriginalAmount,
		DiscountAmount: r.DiscountAmount,
		FinalAmount:    r.FinalAmount,
		UsedAt:         r.UsedAt,
	}
	if err := postgres.FromJSON(r.CourseIDs, &u.CourseIDs); err != nil {
		return domcoupon.Usage{}, fmt.Errorf("usage %s courses: %w", r.ID, err)
	}
	return u, nil
}
