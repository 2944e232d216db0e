package discount

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/coursedesk/offerd/internal/db/postgres"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
)

// Row is the gorm model of the applied_discounts table.
type Row struct {
	ID             string          `gorm:"primaryKey;size:64"`
	UserID         string          `gorm:"size:64;not null;index:idx_discount_user_valid,priority:1"`
	OptionType     string          `gorm:"size:32;not null;index"`
	DiscountType   string          `gorm:"size:20;not null"`
	Value          decimal.Decimal `gorm:"type:numeric(6,4);not null"`
	CourseIDs      datatypes.JSON  `gorm:"type:jsonb"`
	OriginalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	FinalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	AgentReasoning string          `gorm:"type:text"`
	ValidUntil     time.Time       `gorm:"not null;index:idx_discount_user_valid,priority:2"`
	IsUsed         bool            `gorm:"not null;default:false"`
	UsedAt         *time.Time
	OrderID        string    `gorm:"size:64;index"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// TableName pins the table name.
func (Row) TableName() string { return "applied_discounts" }

func toRow(a domdiscount.Applied) (Row, error) {
	s := a.State()
	courses, err := postgres.ToJSON(s.CourseIDs)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:             s.ID,
		UserID:         s.UserID,
		OptionType:     string(s.OptionType),
		DiscountType:   string(s.DiscountType),
		Value:          s.Value,
		CourseIDs:      courses,
		OriginalAmount: s.OriginalAmount,
		DiscountAmount: s.DiscountAmount,
		FinalAmount:    s.FinalAmount,
		AgentReasoning: s.AgentReasoning,
		ValidUntil:     s.ValidUntil,
		IsUsed:         s.IsUsed,
		UsedAt:         s.UsedAt,
		OrderID:        s.OrderID,
		CreatedAt:      s.CreatedAt,
	}, nil
}

func fromRow(r Row) (domdiscount.Applied, error) {
	s := domdiscount.AppliedState{
		ID:             r.ID,
		UserID:         r.UserID,
		OptionType:     domdiscount.OptionType(r.OptionType),
		DiscountType:   domdiscount.Type(r.DiscountType),
		Value:          r.Value,
		OriginalAmount: r.OriginalAmount,
		DiscountAmount: r.DiscountAmount,
		FinalAmount:    r.FinalAmount,
		AgentReasoning: r.AgentReasoning,
		ValidUntil:     r.ValidUntil,
		IsUsed:         r.IsUsed,
		UsedAt:         r.UsedAt,
		OrderID:        r.OrderID,
		CreatedAt:      r.CreatedAt,
	}
	if err := postgres.FromJSON(r.CourseIDs, &s.CourseIDs); err != nil {
		return domdiscount.Applied{}, fmt.Errorf("discount %s courses: %w", r.ID, err)
	}
	return domdiscount.ReconstructApplied(s), nil
}

func fromRows(rows []Row) ([]domdiscount.Applied, error) {
	out := make([]domdiscount.Applied, 0, len(rows))
	for _, r := range rows {
		a, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
