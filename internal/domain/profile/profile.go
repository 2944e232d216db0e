package profile

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/coursedesk/offerd/internal/domain"
)

// completenessFields is the denominator of DataCompleteness. Only 16 dimensions
// are countable, so a fully filled profile scores 0.89.
const completenessFields = 18

// Dimensions are the facts learned about a user during conversations.
type Dimensions struct {
	LearningGoals      []string           `json:"learning_goals"`
	PainPoints         []string           `json:"pain_points"`
	MotivationType     MotivationType     `json:"motivation_type,omitempty"`
	UrgencyLevel       *int               `json:"urgency_level,omitempty"`
	BudgetRange        BudgetRange        `json:"budget_range,omitempty"`
	TimeAvailability   TimeAvailability   `json:"time_availability,omitempty"`
	LearningDuration   LearningDuration   `json:"learning_duration,omitempty"`
	SkillLevel         SkillLevel         `json:"current_skill_level,omitempty"`
	RelatedExperience  []string           `json:"related_experience"`
	LearningAbility    LearningAbility    `json:"learning_ability,omitempty"`
	CommunicationStyle CommunicationStyle `json:"communication_style,omitempty"`
	DecisionPattern    DecisionPattern    `json:"decision_pattern,omitempty"`
	ResponseSpeed      ResponseSpeed      `json:"response_speed,omitempty"`
	PriceSensitivity   PriceSensitivity   `json:"price_sensitivity,omitempty"`
	PaymentPreference  PaymentPreference  `json:"payment_preference,omitempty"`
	DiscountResponse   DiscountResponse   `json:"discount_response,omitempty"`
}

// Urgency returns the urgency level or 0 when unknown.
func (d Dimensions) Urgency() int {
	if d.UrgencyLevel == nil {
		return 0
	}
	return *d.UrgencyLevel
}

// filled lists the names of dimensions that carry a value.
func (d Dimensions) filled() []string {
	checks := []struct {
		name string
		ok   bool
	}{
		{"learning_goals", len(d.LearningGoals) > 0},
		{"pain_points", len(d.PainPoints) > 0},
		{"motivation_type", d.MotivationType != ""},
		{"urgency_level", d.UrgencyLevel != nil},
		{"budget_range", d.BudgetRange != ""},
		{"time_availability", d.TimeAvailability != ""},
		{"learning_duration", d.LearningDuration != ""},
		{"current_skill_level", d.SkillLevel != ""},
		{"related_experience", len(d.RelatedExperience) > 0},
		{"learning_ability", d.LearningAbility != ""},
		{"communication_style", d.CommunicationStyle != ""},
		{"decision_pattern", d.DecisionPattern != ""},
		{"response_speed", d.ResponseSpeed != ""},
		{"price_sensitivity", d.PriceSensitivity != ""},
		{"payment_preference", d.PaymentPreference != ""},
		{"discount_response", d.DiscountResponse != ""},
	}
	var out []string
	for _, c := range checks {
		if c.ok {
			out = append(out, c.name)
		}
	}
	return out
}

// DimensionNames lists every countable dimension in display order.
var DimensionNames = []string{
	"learning_goals", "pain_points", "motivation_type", "urgency_level",
	"budget_range", "time_availability", "learning_duration", "current_skill_level",
	"related_experience", "learning_ability", "communication_style", "decision_pattern",
	"response_speed", "price_sensitivity", "payment_preference", "discount_response",
}

// Missing lists dimensions without a value.
func (d Dimensions) Missing() []string {
	have := d.filled()
	var out []string
	for _, name := range DimensionNames {
		if !slices.Contains(have, name) {
			out = append(out, name)
		}
	}
	return out
}

// Completeness is the filled share of the profile rounded to 2 places.
func (d Dimensions) Completeness() float64 {
	return math.Round(float64(len(d.filled()))/completenessFields*100) / 100
}

type enum interface {
	~string
	IsValid() bool
}

func checkEnum[T enum](field string, v T) error {
	if v != "" && !v.IsValid() {
		return domain.Invalid(field, "unknown value %q", string(v))
	}
	return nil
}

func (d Dimensions) validate() error {
	if d.UrgencyLevel != nil && (*d.UrgencyLevel < 1 || *d.UrgencyLevel > 5) {
		return domain.Invalid("urgency_level", "must be between 1 and 5")
	}
	for _, err := range []error{
		checkEnum("motivation_type", d.MotivationType),
		checkEnum("budget_range", d.BudgetRange),
		checkEnum("time_availability", d.TimeAvailability),
		checkEnum("learning_duration", d.LearningDuration),
		checkEnum("current_skill_level", d.SkillLevel),
		checkEnum("learning_ability", d.LearningAbility),
		checkEnum("communication_style", d.CommunicationStyle),
		checkEnum("decision_pattern", d.DecisionPattern),
		checkEnum("response_speed", d.ResponseSpeed),
		checkEnum("price_sensitivity", d.PriceSensitivity),
		checkEnum("payment_preference", d.PaymentPreference),
		checkEnum("discount_response", d.DiscountResponse),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func validateConfidence(c map[string]float64) error {
	for field, score := range c {
		if strings.TrimSpace(field) == "" {
			return domain.Invalid("field_confidence", "field name is required")
		}
		if score < 0 || score > 1 {
			return domain.Invalid("field_confidence", "%s must be between 0 and 1, got %v", field, score)
		}
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// State is the persisted representation of a profile.
type State struct {
	UserID           string
	SessionID        string
	ChannelSource    string
	Dimensions       Dimensions
	FieldConfidence  map[string]float64
	UpdateCount      int
	DataCompleteness float64
	Deleted          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Profile is the accumulated picture of one user (immutable value object).
type Profile struct {
	s State
}

// Draft holds the input for a new profile.
type Draft struct {
	UserID          string
	SessionID       string
	ChannelSource   string
	Dimensions      Dimensions
	FieldConfidence map[string]float64
}

// New validates a draft and creates a profile.
func New(d Draft, now time.Time) (Profile, error) {
	dims := d.Dimensions
	dims.LearningGoals = cleanList(dims.LearningGoals)
	dims.PainPoints = cleanList(dims.PainPoints)
	dims.RelatedExperience = cleanList(dims.RelatedExperience)
	conf := make(map[string]float64, len(d.FieldConfidence))
	for k, v := range d.FieldConfidence {
		conf[k] = v
	}
	s := State{
		UserID:           strings.TrimSpace(d.UserID),
		SessionID:        strings.TrimSpace(d.SessionID),
		ChannelSource:    strings.TrimSpace(d.ChannelSource),
		Dimensions:       dims,
		FieldConfidence:  conf,
		DataCompleteness: dims.Completeness(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if s.UserID == "" {
		return Profile{}, domain.Invalid("user_id", "is required")
	}
	if s.SessionID == "" {
		return Profile{}, domain.Invalid("session_id", "is required")
	}
	if s.ChannelSource == "" {
		return Profile{}, domain.Invalid("channel_source", "is required")
	}
	if err := dims.validate(); err != nil {
		return Profile{}, err
	}
	if err := validateConfidence(conf); err != nil {
		return Profile{}, err
	}
	return Profile{s: s}, nil
}

// Reconstruct creates a Profile without validation (storage hydration).
func Reconstruct(s State) Profile {
	if s.FieldConfidence == nil {
		s.FieldConfidence = map[string]float64{}
	}
	return Profile{s: s}
}

// State returns a copy of the persisted representation.
func (p Profile) State() State { return p.s }

// UserID returns the owner.
func (p Profile) UserID() string { return p.s.UserID }

// SessionID returns the conversation session the profile was created in.
func (p Profile) SessionID() string { return p.s.SessionID }

// Dimensions returns the learned facts.
func (p Profile) Dimensions() Dimensions { return p.s.Dimensions }

// FilledFields lists the dimensions that carry a value.
func (p Profile) FilledFields() []string { return p.s.Dimensions.filled() }

// FieldConfidence returns per-field confidence scores.
func (p Profile) FieldConfidence() map[string]float64 { return p.s.FieldConfidence }

// Completeness returns the stored completeness score.
func (p Profile) Completeness() float64 { return p.s.DataCompleteness }

// UpdateCount returns how many updates were applied.
func (p Profile) UpdateCount() int { return p.s.UpdateCount }

// UpdatedAt returns the last modification time.
func (p Profile) UpdatedAt() time.Time { return p.s.UpdatedAt }

// Deleted reports a soft-deleted profile.
func (p Profile) Deleted() bool { return p.s.Deleted }

// MarkDeleted returns a soft-deleted copy.
func (p Profile) MarkDeleted(now time.Time) Profile {
	s := p.s
	s.Deleted = true
	s.UpdatedAt = now
	return Profile{s: s}
}

// ConfidenceSummary aggregates field confidence scores.
type ConfidenceSummary struct {
	Average                  float64 `json:"average"`
	Max                      float64 `json:"max"`
	Min                      float64 `json:"min"`
	FieldsWithHighConfidence int     `json:"fields_with_high_confidence"`
}

// Summary aggregates the confidence map, nil when empty.
func (p Profile) Summary() *ConfidenceSummary {
	if len(p.s.FieldConfidence) == 0 {
		return nil
	}
	sum := ConfidenceSummary{Min: 1}
	total := 0.0
	for _, v := range p.s.FieldConfidence {
		total += v
		sum.Max = math.Max(sum.Max, v)
		sum.Min = math.Min(sum.Min, v)
		if v >= 0.8 {
			sum.FieldsWithHighConfidence++
		}
	}
	sum.Average = math.Round(total/float64(len(p.s.FieldConfidence))*1000) / 1000
	return &sum
}
