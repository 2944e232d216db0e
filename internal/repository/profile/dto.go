package profile

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/coursedesk/offerd/internal/db/postgres"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

// Row is the gorm model of the user_profiles table.
type Row struct {
	UserID             string         `gorm:"primaryKey;size:64"`
	SessionID          string         `gorm:"size:64;not null;index"`
	ChannelSource      string         `gorm:"size:32;not null;index"`
	LearningGoals      datatypes.JSON `gorm:"type:jsonb"`
	PainPoints         datatypes.JSON `gorm:"type:jsonb"`
	MotivationType     string         `gorm:"size:32"`
	UrgencyLevel       *int
	BudgetRange        string         `gorm:"size:20;index"`
	TimeAvailability   string         `gorm:"size:20"`
	LearningDuration   string         `gorm:"size:20"`
	SkillLevel         string         `gorm:"column:current_skill_level;size:20"`
	RelatedExperience  datatypes.JSON `gorm:"type:jsonb"`
	LearningAbility    string         `gorm:"size:20"`
	CommunicationStyle string         `gorm:"size:20"`
	DecisionPattern    string         `gorm:"size:20"`
	ResponseSpeed      string         `gorm:"size:20"`
	PriceSensitivity   string         `gorm:"size:10;index"`
	PaymentPreference  string         `gorm:"size:20"`
	DiscountResponse   string         `gorm:"size:24"`
	FieldConfidence    datatypes.JSON `gorm:"type:jsonb"`
	UpdateCount        int            `gorm:"not null;default:0"`
	DataCompleteness   float64        `gorm:"not null;default:0;index"`
	IsDeleted          bool           `gorm:"not null;default:false;index"`
	CreatedAt          time.Time      `gorm:"not null"`
	UpdatedAt          time.Time      `gorm:"not null"`
}

// TableName pins the table name.
func (Row) TableName() string { return "user_profiles" }

// HistoryRow is the gorm model of the profile_history table.
type HistoryRow struct {
	ID            string         `gorm:"primaryKey;size:64"`
	UserID        string         `gorm:"size:64;not null;index:idx_profile_history_user,priority:1"`
	SessionID     string         `gorm:"size:64"`
	Action        string         `gorm:"size:16;not null"`
	ChangedFields datatypes.JSON `gorm:"type:jsonb"`
	OldValues     datatypes.JSON `gorm:"type:jsonb"`
	NewValues     datatypes.JSON `gorm:"type:jsonb"`
	Source        string         `gorm:"size:32;not null"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_profile_history_user,priority:2"`
}

// TableName pins the table name.
func (HistoryRow) TableName() string { return "profile_history" }

func toRow(p domprofile.Profile) (Row, error) {
	s := p.State()
	d := s.Dimensions
	goals, err := postgres.ToJSON(d.LearningGoals)
	if err != nil {
		return Row{}, err
	}
	pains, err := postgres.ToJSON(d.PainPoints)
	if err != nil {
		return Row{}, err
	}
	experience, err := postgres.ToJSON(d.RelatedExperience)
	if err != nil {
		return Row{}, err
	}
	confidence, err := postgres.ToJSONObject(s.FieldConfidence)
	if err != nil {
		return Row{}, err
	}
	return Row{
		UserID:             s.UserID,
		SessionID:          s.SessionID,
		ChannelSource:      s.ChannelSource,
		LearningGoals:      goals,
		PainPoints:         pains,
		MotivationType:     string(d.MotivationType),
		UrgencyLevel:       d.UrgencyLevel,
		BudgetRange:        string(d.BudgetRange),
		TimeAvailability:   string(d.TimeAvailability),
		LearningDuration:   string(d.LearningDuration),
		SkillLevel:         string(d.SkillLevel),
		RelatedExperience:  experience,
		LearningAbility:    string(d.LearningAbility),
		CommunicationStyle: string(d.CommunicationStyle),
		DecisionPattern:    string(d.DecisionPattern),
		ResponseSpeed:      string(d.ResponseSpeed),
		PriceSensitivity:   string(d.PriceSensitivity),
		PaymentPreference:  string(d.PaymentPreference),
		DiscountResponse:   string(d.DiscountResponse),
		FieldConfidence:    confidence,
		UpdateCount:        s.UpdateCount,
		DataCompleteness:   s.DataCompleteness,
		IsDeleted:          s.Deleted,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}, nil
}

func fromRow(r Row) (domprofile.Profile, error) {
	s := domprofile.State{
		UserID:        r.UserID,
		SessionID:     r.SessionID,
		ChannelSource: r.ChannelSource,
		Dimensions: domprofile.Dimensions{
			MotivationType:     domprofile.MotivationType(r.MotivationType),
			UrgencyLevel:       r.UrgencyLevel,
			BudgetRange:        domprofile.BudgetRange(r.BudgetRange),
			TimeAvailability:   domprofile.TimeAvailability(r.TimeAvailability),
			LearningDuration:   domprofile.LearningDuration(r.LearningDuration),
			SkillLevel:         domprofile.SkillLevel(r.SkillLevel),
			LearningAbility:    domprofile.LearningAbility(r.LearningAbility),
			CommunicationStyle: domprofile.CommunicationStyle(r.CommunicationStyle),
			DecisionPattern:    domprofile.DecisionPattern(r.DecisionPattern),
			ResponseSpeed:      domprofile.ResponseSpeed(r.ResponseSpeed),
			PriceSensitivity:   domprofile.PriceSensitivity(r.PriceSensitivity),
			PaymentPreference:  domprofile.PaymentPreference(r.PaymentPreference),
			DiscountResponse:   domprofile.DiscountResponse(r.DiscountResponse),
		},
		UpdateCount:      r.UpdateCount,
		DataCompleteness: r.DataCompleteness,
		Deleted:          r.IsDeleted,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	columns := []struct {
		name string
		src  datatypes.JSON
		dst  any
	}{
		{"learning_goals", r.LearningGoals, &s.Dimensions.LearningGoals},
		{"pain_points", r.PainPoints, &s.Dimensions.PainPoints},
		{"related_experience", r.RelatedExperience, &s.Dimensions.RelatedExperience},
		{"field_confidence", r.FieldConfidence, &s.FieldConfidence},
	}
	for _, c := range columns {
		if err := postgres.FromJSON(c.src, c.dst); err != nil {
			return domprofile.Profile{}, fmt.Errorf("profile %s %s: %w", r.UserID, c.name, err)
		}
	}
	return domprofile.Reconstruct(s), nil
}

func toHistoryRow(h domprofile.History) (HistoryRow, error) {
	fields, err := postgres.ToJSON(h.ChangedFields)
	if err != nil {
		return HistoryRow{}, err
	}
	oldValues, err := postgres.ToJSONObject(h.OldValues)
	if err != nil {
		return HistoryRow{}, err
	}
	newValues, err := postgres.ToJSONObject(h.NewValues)
	if err != nil {
		return HistoryRow{}, err
	}
	return HistoryRow{
		ID:            h.ID,
		UserID:        h.UserID,
		SessionID:     h.SessionID,
		Action:        h.Action,
		ChangedFields: fields,
		OldValues:     oldValues,
		NewValues:     newValues,
		Source:        h.Source,
		CreatedAt:     h.CreatedAt,
	}, nil
}

func fromHistoryRow(r HistoryRow) (domprofile.History, error) {
	h := domprofile.History{
		ID:        r.ID,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Action:    r.Action,
		Source:    r.Source,
		CreatedAt: r.CreatedAt,
	}
	for _, c := range []struct {
		src datatypes.JSON
		dst any
	}{
		{r.ChangedFields, &h.ChangedFields},
		{r.OldValues, &h.OldValues},
		{r.NewValues, &h.NewValues},
	} {
		if err := postgres.FromJSON(c.src, c.dst); err != nil {
			return domprofile.History{}, fmt.Errorf("profile history %s: %w", r.ID, err)
		}
	}
	return h, nil
}
