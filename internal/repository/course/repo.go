package course

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/db/postgres"
	"github.com/coursedesk/offerd/internal/domain"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

// Repo implements usecase/course.Repository on gorm.
type Repo struct {
	db *gorm.DB
}

// New creates a course repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Models lists the gorm models owned by this repository.
func Models() []any { return []any{&Row{}} }

// Create inserts a course.
func (r *Repo) Create(ctx context.Context, c domcourse.Course) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	if err := postgres.Conn(ctx, r.db).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert course %s: %w", c.ID(), err)
	}
	return nil
}

// Update overwrites a stored course.
func (r *Repo) Update(ctx context.Context, c domcourse.Course) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	res := postgres.Conn(ctx, r.db).Model(&Row{}).Where("id = ?", row.ID).Select("*").Omit("created_at").Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update course %s: %w", c.ID(), res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns a course by ID.
func (r *Repo) Get(ctx context.Context, id string) (domcourse.Course, error) {
	var row Row
	if err := postgres.Conn(ctx, r.db).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domcourse.Course{}, domain.ErrNotFound
		}
		return domcourse.Course{}, fmt.Errorf("get course %s: %w", id, err)
	}
	return fromRow(row)
}

// GetMany returns the courses that exist among ids, in the order of ids.
func (r *Repo) GetMany(ctx context.Context, ids []string) ([]domcourse.Course, error) {
	if len(ids) == 0 {
		return []domcourse.Course{}, nil
	}
	var rows []Row
	if err := postgres.Conn(ctx, r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get courses: %w", err)
	}
	byID := make(map[string]Row, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]Row, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
			delete(byID, id)
		}
	}
	return fromRows(ordered)
}

// Search filters the catalog, best rated and cheapest first.
func (r *Repo) Search(ctx context.Context, q domcourse.SearchQuery) ([]domcourse.Course, error) {
	tx := postgres.Conn(ctx, r.db).Model(&Row{})
	if q.OnlyAvailable {
		tx = tx.Where("status = ?", string(domcourse.StatusActive))
	}
	if q.Keywords != "" {
		like := "%" + strings.ToLower(q.Keywords) + "%"
		tx = tx.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(CAST(tags AS TEXT)) LIKE ?)", like, like, like)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", string(q.Category))
	}
	if q.Difficulty != "" {
		tx = tx.Where("difficulty = ?", string(q.Difficulty))
	}
	if q.MinPrice != nil {
		tx = tx.Where("current_price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("current_price <= ?", *q.MaxPrice)
	}
	if q.MinDuration != nil {
		tx = tx.Where("duration_hours >= ?", *q.MinDuration)
	}
	if q.MaxDuration != nil {
		tx = tx.Where("duration_hours <= ?", *q.MaxDuration)
	}
	for _, tag := range q.Tags {
		tx = tx.Where("CAST(tags AS TEXT) LIKE ?", `%"`+tag+`"%`)
	}

	var rows []Row
	err := tx.Order("rating DESC NULLS LAST").Order("current_price ASC").Order("id ASC").
		Limit(q.Limit).Offset(q.Offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return fromRows(rows)
}

// ByCategory lists available courses of one category.
func (r *Repo) ByCategory(ctx context.Context, cat domcourse.Category, limit, offset int) ([]domcourse.Course, error) {
	var rows []Row
	err := postgres.Conn(ctx, r.db).
		Where("category = ? AND status = ?", string(cat), string(domcourse.StatusActive)).
		Order("rating DESC NULLS LAST").Order("current_price ASC").Order("id ASC").
		Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list category %s: %w", cat, err)
	}
	return fromRows(rows)
}

// ListAvailable lists active courses, newest first.
func (r *Repo) ListAvailable(ctx context.Context, limit, offset int) ([]domcourse.Course, error) {
	var rows []Row
	err := postgres.Conn(ctx, r.db).
		Where("status = ?", string(domcourse.StatusActive)).
		Order("created_at DESC").Order("id ASC").
		Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return fromRows(rows)
}

// Popular lists active courses by student count, then rating.
func (r *Repo) Popular(ctx context.Context, limit int) ([]domcourse.Course, error) {
	var rows []Row
	err := postgres.Conn(ctx, r.db).
		Where("status = ?", string(domcourse.StatusActive)).
		Order("student_count DESC").Order("rating DESC NULLS LAST").Order("id ASC").
		Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list popular courses: %w", err)
	}
	return fromRows(rows)
}

type categoryAgg struct {
	Category string
	Count    int
	AvgPrice decimal.Decimal
}

// Categories counts active courses per category with their average current price.
func (r *Repo) Categories(ctx context.Context) ([]domcourse.CategoryStats, error) {
	var aggs []categoryAgg
	err := postgres.Conn(ctx, r.db).Model(&Row{}).
		Select("category, COUNT(*) AS count, COALESCE(AVG(current_price), 0) AS avg_price").
		Where("status = ?", string(domcourse.StatusActive)).
		Group("category").Order("category").
		Scan(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("course categories: %w", err)
	}
	out := make([]domcourse.CategoryStats, len(aggs))
	for i, a := range aggs {
		out[i] = domcourse.CategoryStats{
			Category:     domcourse.Category(a.Category),
			Count:        a.Count,
			AveragePrice: domain.Round2(a.AvgPrice),
		}
	}
	return out, nil
}

const priceRangeColumns = "COALESCE(MIN(current_price), 0) AS min_price, " +
	"COALESCE(MAX(current_price), 0) AS max_price, " +
	"COALESCE(AVG(current_price), 0) AS avg_price, COUNT(*) AS count"

type priceAgg struct {
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	AvgPrice decimal.Decimal
	Count    int
}

// PriceRange summarizes current prices of active courses, optionally in one category.
func (r *Repo) PriceRange(ctx context.Context, cat domcourse.Category) (domcourse.PriceRange, error) {
	tx := postgres.Conn(ctx, r.db).Model(&Row{}).
		Select(priceRangeColumns).
		Where("status = ?", string(domcourse.StatusActive))
	if cat != "" {
		tx = tx.Where("category = ?", string(cat))
	}
	var agg priceAgg
	if err := tx.Scan(&agg).Error; err != nil {
		return domcourse.PriceRange{}, fmt.Errorf("course price range: %w", err)
	}
	return domcourse.PriceRange{
		Min:     domain.Round2(agg.MinPrice),
		Max:     domain.Round2(agg.MaxPrice),
		Average: domain.Round2(agg.AvgPrice),
		Count:   agg.Count,
	}, nil
}

// IncrementStudents adds delta to the student count of each course.
func (r *Repo) IncrementStudents(ctx context.Context, ids []string, delta int) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	err := postgres.Conn(ctx, r.db).Model(&Row{}).Where("id IN ?", ids).
		Updates(map[string]any{
			"student_count": gorm.Expr("student_count + ?", delta),
			"updated_at":    time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("increment students: %w", err)
	}
	return nil
}
