package order

import (
	"time"

	"github.com/shopspring/decimal"

	domorder "github.com/coursedesk/offerd/internal/domain/order"
)

// Row is the gorm model of the orders table.
type Row struct {
	ID                string          `gorm:"primaryKey;size:64"`
	UserID            string          `gorm:"size:64;not null;index:idx_orders_user_created,priority:1"`
	OriginalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DiscountAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	CouponDiscount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	FinalAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	AppliedDiscountID string          `gorm:"size:64"`
	CouponCode        string          `gorm:"size:50;index"`
	Status            string          `gorm:"size:20;not null;index"`
	PaymentStatus     string          `gorm:"size:20;not null;index"`
	PaymentMethod     string          `gorm:"size:32"`
	Notes             string          `gorm:"size:1000"`
	CancelReason      string          `gorm:"size:255"`
	CreatedAt         time.Time       `gorm:"not null;index:idx_orders_user_created,priority:2"`
	UpdatedAt         time.Time       `gorm:"not null"`
	PaidAt            *time.Time      `gorm:"index"`
	Items             []ItemRow       `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName pins the table name.
func (Row) TableName() string { return "orders" }

// ItemRow is the gorm model of the order_items table.
type ItemRow struct {
	ID              string          `gorm:"primaryKey;size:64"`
	OrderID         string          `gorm:"size:64;not null;index"`
	Position        int             `gorm:"not null"`
	CourseID        string          `gorm:"size:64;not null;index"`
	CourseName      string          `gorm:"size:200;not null"`
	OriginalPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DiscountedPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Quantity        int             `gorm:"not null;default:1"`
}

// TableName pins the table name.
func (ItemRow) TableName() string { return "order_items" }

func toRow(o domorder.Order) Row {
	s := o.State()
	items := make([]ItemRow, 0, len(s.Items))
	for i, it := range s.Items {
		items = append(items, ItemRow{
			ID:              it.ID,
			OrderID:         s.ID,
			Position:        i,
			CourseID:        it.CourseID,
			CourseName:      it.CourseName,
			OriginalPrice:   it.OriginalPrice,
			DiscountedPrice: it.DiscountedPrice,
			Quantity:        it.Quantity,
		})
	}
	return Row{
		ID:                s.ID,
		UserID:            s.UserID,
		OriginalAmount:    s.OriginalAmount,
		DiscountAmount:    s.DiscountAmount,
		CouponDiscount:    s.CouponDiscount,
		FinalAmount:       s.FinalAmount,
		AppliedDiscountID: s.AppliedDiscountID,
		CouponCode:        s.CouponCode,
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		PaymentMethod:     s.PaymentMethod,
		Notes:             s.Notes,
		CancelReason:      s.CancelReason,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		PaidAt:            s.PaidAt,
		Items:             items,
	}
}

func fromRow(r Row) domorder.Order {
	items := make([]domorder.Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domorder.Item{
			ID:              it.ID,
			CourseID:        it.CourseID,
			CourseName:      it.CourseName,
			OriginalPrice:   it.OriginalPrice,
			DiscountedPrice: it.DiscountedPrice,
			Quantity:        it.Quantity,
		})
	}
	return domorder.Reconstruct(domorder.State{
		ID:                r.ID,
		UserID:            r.UserID,
		Items:             items,
		OriginalAmount:    r.OriginalAmount,
		DiscountAmount:    r.DiscountAmount,
		CouponDiscount:    r.CouponDiscount,
		FinalAmount:       r.FinalAmount,
		AppliedDiscountID: r.AppliedDiscountID,
		CouponCode:        r.CouponCode,
		Status:            domorder.Status(r.Status),
		PaymentStatus:     domorder.PaymentStatus(r.PaymentStatus),
		PaymentMethod:     r.PaymentMethod,
		Notes:             r.Notes,
		CancelReason:      r.CancelReason,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		PaidAt:            r.PaidAt,
	})
}

func fromRows(rows []Row) []domorder.Order {
	out := make([]domorder.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out
}
