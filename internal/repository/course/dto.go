package course

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/coursedesk/offerd/internal/db/postgres"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

// Row is the gorm model of the courses table.
type Row struct {
	ID               string          `gorm:"primaryKey;size:64"`
	Name             string          `gorm:"size:200;not null"`
	Category         string          `gorm:"size:50;not null;index"`
	OriginalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CurrentPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null;index"`
	Description      string          `gorm:"type:text"`
	DurationHours    int             `gorm:"not null"`
	Difficulty       string          `gorm:"size:20;not null;index"`
	Tags             datatypes.JSON  `gorm:"type:jsonb"`
	Prerequisites    datatypes.JSON  `gorm:"type:jsonb"`
	LearningOutcomes datatypes.JSON  `gorm:"type:jsonb"`
	Instructor       string          `gorm:"size:100"`
	Rating           *float64
	StudentCount     int       `gorm:"not null;default:0;index"`
	Status           string    `gorm:"size:20;not null;index"`
	CreatedAt        time.Time `gorm:"not null;index"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (Row) TableName() string { return "courses" }

func toRow(c domcourse.Course) (Row, error) {
	s := c.State()
	tags, err := postgres.ToJSON(s.Tags)
	if err != nil {
		return Row{}, err
	}
	prereq, err := postgres.ToJSON(s.Prerequisites)
	if err != nil {
		return Row{}, err
	}
	outcomes, err := postgres.ToJSON(s.LearningOutcomes)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:               s.ID,
		Name:             s.Name,
		Category:         string(s.Category),
		OriginalPrice:    s.OriginalPrice,
		CurrentPrice:     s.CurrentPrice,
		Description:      s.Description,
		DurationHours:    s.DurationHours,
		Difficulty:       string(s.Difficulty),
		Tags:             tags,
		Prerequisites:    prereq,
		LearningOutcomes: outcomes,
		Instructor:       s.Instructor,
		Rating:           s.Rating,
		StudentCount:     s.StudentCount,
		Status:           string(s.Status),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}

func fromRow(r Row) (domcourse.Course, error) {
	s := domcourse.State{
		ID:            r.ID,
		Name:          r.Name,
		Category:      domcourse.Category(r.Category),
		OriginalPrice: r.OriginalPrice,
		CurrentPrice:  r.CurrentPrice,
		Description:   r.Description,
		DurationHours: r.DurationHours,
		Difficulty:    domcourse.Difficulty(r.Difficulty),
		Instructor:    r.Instructor,
		Rating:        r.Rating,
		StudentCount:  r.StudentCount,
		Status:        domcourse.Status(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := postgres.FromJSON(r.Tags, &s.Tags); err != nil {
		return domcourse.Course{}, fmt.Errorf("course %s tags: %w", r.ID, err)
	}
	if err := postgres.FromJSON(r.Prerequisites, &s.Prerequisites); err != nil {
		return domcourse.Course{}, fmt.Errorf("course %s prerequisites: %w", r.ID, err)
	}
	if err := postgres.FromJSON(r.LearningOutcomes, &s.LearningOutcomes); err != nil {
		return domcourse.Course{}, fmt.Errorf("course %s outcomes: %w", r.ID, err)
	}
	return domcourse.Reconstruct(s), nil
}

func fromRows(rows []Row) ([]domcourse.Course, error) {
	out := make([]domcourse.Course, 0, len(rows))
	for _, r := range rows {
		c, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
