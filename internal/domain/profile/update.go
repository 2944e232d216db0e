package profile

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/coursedesk/offerd/internal/domain"
)

// Update is a partial profile change. Nil fields are left untouched.
type Update struct {
	LearningGoals      []string
	PainPoints         []string
	MotivationType     *MotivationType
	UrgencyLevel       *int
	BudgetRange        *BudgetRange
	TimeAvailability   *TimeAvailability
	LearningDuration   *LearningDuration
	SkillLevel         *SkillLevel
	RelatedExperience  []string
	LearningAbility    *LearningAbility
	CommunicationStyle *CommunicationStyle
	DecisionPattern    *DecisionPattern
	ResponseSpeed      *ResponseSpeed
	PriceSensitivity   *PriceSensitivity
	PaymentPreference  *PaymentPreference
	DiscountResponse   *DiscountResponse
	FieldConfidence    map[string]float64
}

// Change describes what an update modified.
type Change struct {
	Fields    []string
	OldValues map[string]any
	NewValues map[string]any
}

func (c *Change) record(field string, from, to any) {
	c.Fields = append(c.Fields, field)
	c.OldValues[field] = from
	c.NewValues[field] = to
}

func setEnum[T enum](c *Change, field string, dst *T, v *T) error {
	if v == nil || *v == *dst {
		return nil
	}
	if !(*v).IsValid() {
		return domain.Invalid(field, "unknown value %q", string(*v))
	}
	c.record(field, string(*dst), string(*v))
	*dst = *v
	return nil
}

func setList(c *Change, field string, dst *[]string, v []string) {
	if v == nil {
		return
	}
	v = cleanList(v)
	if slices.Equal(*dst, v) {
		return
	}
	c.record(field, *dst, v)
	*dst = v
}

// Apply returns a copy with the update applied, the update counter bumped and
// completeness recomputed, together with the fields that actually changed.
func (p Profile) Apply(u Update, now time.Time) (Profile, Change, error) {
	s := p.s
	d := s.Dimensions
	ch := Change{OldValues: map[string]any{}, NewValues: map[string]any{}}

	setList(&ch, "learning_goals", &d.LearningGoals, u.LearningGoals)
	setList(&ch, "pain_points", &d.PainPoints, u.PainPoints)
	setList(&ch, "related_experience", &d.RelatedExperience, u.RelatedExperience)

	if u.UrgencyLevel != nil && (d.UrgencyLevel == nil || *d.UrgencyLevel != *u.UrgencyLevel) {
		if *u.UrgencyLevel < 1 || *u.UrgencyLevel > 5 {
			return Profile{}, Change{}, domain.Invalid("urgency_level", "must be between 1 and 5")
		}
		var old any
		if d.UrgencyLevel != nil {
			old = *d.UrgencyLevel
		}
		level := *u.UrgencyLevel
		ch.record("urgency_level", old, level)
		d.UrgencyLevel = &level
	}

	for _, err := range []error{
		setEnum(&ch, "motivation_type", &d.MotivationType, u.MotivationType),
		setEnum(&ch, "budget_range", &d.BudgetRange, u.BudgetRange),
		setEnum(&ch, "time_availability", &d.TimeAvailability, u.TimeAvailability),
		setEnum(&ch, "learning_duration", &d.LearningDuration, u.LearningDuration),
		setEnum(&ch, "current_skill_level", &d.SkillLevel, u.SkillLevel),
		setEnum(&ch, "learning_ability", &d.LearningAbility, u.LearningAbility),
		setEnum(&ch, "communication_style", &d.CommunicationStyle, u.CommunicationStyle),
		setEnum(&ch, "decision_pattern", &d.DecisionPattern, u.DecisionPattern),
		setEnum(&ch, "response_speed", &d.ResponseSpeed, u.ResponseSpeed),
		setEnum(&ch, "price_sensitivity", &d.PriceSensitivity, u.PriceSensitivity),
		setEnum(&ch, "payment_preference", &d.PaymentPreference, u.PaymentPreference),
		setEnum(&ch, "discount_response", &d.DiscountResponse, u.DiscountResponse),
	} {
		if err != nil {
			return Profile{}, Change{}, err
		}
	}

	if len(u.FieldConfidence) > 0 {
		if err := validateConfidence(u.FieldConfidence); err != nil {
			return Profile{}, Change{}, err
		}
		conf := maps.Clone(s.FieldConfidence)
		if conf == nil {
			conf = map[string]float64{}
		}
		maps.Copy(conf, u.FieldConfidence)
		s.FieldConfidence = conf
		ch.Fields = append(ch.Fields, "field_confidence")
	}

	s.Dimensions = d
	s.UpdateCount++
	s.DataCompleteness = d.Completeness()
	s.UpdatedAt = now
	return Profile{s: s}, ch, nil
}

// History actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// History is one recorded profile change.
type History struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	SessionID     string         `json:"session_id"`
	Action        string         `json:"action"`
	ChangedFields []string       `json:"changed_fields"`
	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
	Source        string         `json:"source"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewHistory records a change of p.
func NewHistory(p Profile, action string, ch Change, source string, now time.Time) History {
	if source == "" {
		source = "system"
	}
	return History{
		ID:            uuid.NewString(),
		UserID:        p.s.UserID,
		SessionID:     p.s.SessionID,
		Action:        action,
		ChangedFields: ch.Fields,
		OldValues:     ch.OldValues,
		NewValues:     ch.NewValues,
		Source:        source,
		CreatedAt:     now,
	}
}
