package profile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/coursedesk/offerd/internal/db/postgres"
	"github.com/coursedesk/offerd/internal/domain"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

// Repo stores user profiles and their change history.
type Repo struct {
	db *gorm.DB
}

// New creates a profile repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Models lists the gorm models owned by this repository.
func Models() []any { return []any{&Row{}, &HistoryRow{}} }

// Create inserts a profile. A soft-deleted profile of the same user is replaced.
func (r *Repo) Create(ctx context.Context, p domprofile.Profile) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}
	tx := postgres.Conn(ctx, r.db)
	if err := tx.Where("user_id = ? AND is_deleted = ?", row.UserID, true).Delete(&Row{}).Error; err != nil {
		return fmt.Errorf("purge deleted profile %s: %w", row.UserID, err)
	}
	if err := tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert profile %s: %w", row.UserID, err)
	}
	return nil
}

// Update overwrites a live profile.
func (r *Repo) Update(ctx context.Context, p domprofile.Profile) error {
	row, err := toRow(p)
	if err != nil {
		return err
	}
	res := postgres.Conn(ctx, r.db).Model(&Row{}).
		Where("user_id = ? AND is_deleted = ?", row.UserID, false).
		Select("*").Omit("user_id", "created_at").Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update profile %s: %w", row.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns a live profile.
func (r *Repo) Get(ctx context.Context, userID string) (domprofile.Profile, error) {
	var row Row
	err := postgres.Conn(ctx, r.db).Where("user_id = ? AND is_deleted = ?", userID, false).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domprofile.Profile{}, domain.ErrNotFound
		}
		return domprofile.Profile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return fromRow(row)
}

// GetBySession returns the most recently updated live profile of a session.
func (r *Repo) GetBySession(ctx context.Context, sessionID string) (domprofile.Profile, error) {
	var row Row
	err := postgres.Conn(ctx, r.db).Where("session_id = ? AND is_deleted = ?", sessionID, false).
		Order("updated_at DESC").Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domprofile.Profile{}, domain.ErrNotFound
		}
		return domprofile.Profile{}, fmt.Errorf("get profile by session %s: %w", sessionID, err)
	}
	return fromRow(row)
}

// BatchGet returns the live profiles among userIDs in the order requested. Unknown IDs are skipped.
func (r *Repo) BatchGet(ctx context.Context, userIDs []string) ([]domprofile.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []Row
	err := postgres.Conn(ctx, r.db).Where("user_id IN ? AND is_deleted = ?", userIDs, false).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("batch get profiles: %w", err)
	}
	byID := make(map[string]Row, len(rows))
	for _, row := range rows {
		byID[row.UserID] = row
	}
	out := make([]domprofile.Profile, 0, len(rows))
	for _, id := range userIDs {
		row, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ByCriteria lists live profiles matching every set criterion, most complete first.
func (r *Repo) ByCriteria(ctx context.Context, c domprofile.Criteria) ([]domprofile.Profile, error) {
	c = c.Normalize()
	q := postgres.Conn(ctx, r.db).Where("is_deleted = ?", false)
	if c.ChannelSource != "" {
		q = q.Where("channel_source = ?", c.ChannelSource)
	}
	if c.MinCompleteness > 0 {
		q = q.Where("data_completeness >= ?", c.MinCompleteness)
	}
	if c.PriceSensitivity != "" {
		q = q.Where("price_sensitivity = ?", string(c.PriceSensitivity))
	}
	if c.MinUrgency > 0 {
		q = q.Where("urgency_level >= ?", c.MinUrgency)
	}
	if c.BudgetRange != "" {
		q = q.Where("budget_range = ?", string(c.BudgetRange))
	}
	if c.MotivationType != "" {
		q = q.Where("motivation_type = ?", string(c.MotivationType))
	}
	if c.SkillLevel != "" {
		q = q.Where("current_skill_level = ?", string(c.SkillLevel))
	}

	var rows []Row
	err := q.Order("data_completeness DESC").Order("updated_at DESC").Order("user_id ASC").
		Limit(c.Limit).Offset(c.Offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("profiles by criteria: %w", err)
	}
	out := make([]domprofile.Profile, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SoftDelete flags a profile as deleted.
func (r *Repo) SoftDelete(ctx context.Context, p domprofile.Profile) error {
	s := p.State()
	res := postgres.Conn(ctx, r.db).Model(&Row{}).
		Where("user_id = ? AND is_deleted = ?", s.UserID, false).
		Updates(map[string]any{"is_deleted": true, "updated_at": s.UpdatedAt})
	if res.Error != nil {
		return fmt.Errorf("soft delete profile %s: %w", s.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// HardDelete removes a profile and its history.
func (r *Repo) HardDelete(ctx context.Context, userID string) error {
	tx := postgres.Conn(ctx, r.db)
	res := tx.Where("user_id = ?", userID).Delete(&Row{})
	if res.Error != nil {
		return fmt.Errorf("delete profile %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	if err := tx.Where("user_id = ?", userID).Delete(&HistoryRow{}).Error; err != nil {
		return fmt.Errorf("delete profile history %s: %w", userID, err)
	}
	return nil
}

// AppendHistory records a profile change.
func (r *Repo) AppendHistory(ctx context.Context, h domprofile.History) error {
	row, err := toHistoryRow(h)
	if err != nil {
		return err
	}
	if err := postgres.Conn(ctx, r.db).Create(&row).Error; err != nil {
		return fmt.Errorf("insert profile history %s: %w", h.UserID, err)
	}
	return nil
}

// History lists changes of a user, newest first.
func (r *Repo) History(ctx context.Context, userID string, limit int) ([]domprofile.History, error) {
	var rows []HistoryRow
	err := postgres.Conn(ctx, r.db).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("profile history %s: %w", userID, err)
	}
	out := make([]domprofile.History, 0, len(rows))
	for _, row := range rows {
		h, err := fromHistoryRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Stats summarizes live profiles.
func (r *Repo) Stats(ctx context.Context) (domprofile.Stats, error) {
	tx := postgres.Conn(ctx, r.db)
	var agg struct {
		Total               int
		AverageCompleteness float64
		HighCompleteness    int
	}
	err := tx.Model(&Row{}).
		Select("COUNT(*) AS total, COALESCE(AVG(data_completeness), 0) AS average_completeness, "+
			"COALESCE(SUM(CASE WHEN data_completeness >= ? THEN 1 ELSE 0 END), 0) AS high_completeness",
			domprofile.HighCompleteness).
		Where("is_deleted = ?", false).Scan(&agg).Error
	if err != nil {
		return domprofile.Stats{}, fmt.Errorf("profile stats: %w", err)
	}

	var groups []struct {
		PriceSensitivity string
		Count            int
	}
	err = tx.Model(&Row{}).Select("price_sensitivity, COUNT(*) AS count").
		Where("is_deleted = ? AND price_sensitivity <> ''", false).
		Group("price_sensitivity").Scan(&groups).Error
	if err != nil {
		return domprofile.Stats{}, fmt.Errorf("profile sensitivity stats: %w", err)
	}
	dist := make(map[string]int, len(groups))
	for _, g := range groups {
		dist[g.PriceSensitivity] = g.Count
	}
	return domprofile.Stats{
		Total:               agg.Total,
		AverageCompleteness: math.Round(agg.AverageCompleteness*100) / 100,
		HighCompleteness:    agg.HighCompleteness,
		ByPriceSensitivity:  dist,
	}, nil
}
