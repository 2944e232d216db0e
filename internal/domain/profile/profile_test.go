package profile

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/coursedesk/offerd/internal/domain"
)

var now = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newProfile(t *testing.T) Profile {
	t.Helper()
	p, err := New(Draft{
		UserID:        "u1",
		SessionID:     "s1",
		ChannelSource: "wechat",
		Dimensions: Dimensions{
			LearningGoals: []string{" data analysis ", "", "data analysis"},
			UrgencyLevel:  ptr(3),
		},
	}, now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew(t *testing.T) {
	p := newProfile(t)
	if got := p.Dimensions().LearningGoals; !slices.Equal(got, []string{"data analysis"}) {
		t.Errorf("expected cleaned goals, got %v", got)
	}
	// 2 of 18
	if p.Completeness() != 0.11 {
		t.Errorf("expected completeness 0.11, got %v", p.Completeness())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		field string
	}{
		{"no user", Draft{SessionID: "s", ChannelSource: "c"}, "user_id"},
		{"no session", Draft{UserID: "u", ChannelSource: "c"}, "session_id"},
		{"bad urgency", Draft{UserID: "u", SessionID: "s", ChannelSource: "c", Dimensions: Dimensions{UrgencyLevel: ptr(6)}}, "urgency_level"},
		{"bad budget", Draft{UserID: "u", SessionID: "s", ChannelSource: "c", Dimensions: Dimensions{BudgetRange: "lots"}}, "budget_range"},
		{"bad confidence", Draft{UserID: "u", SessionID: "s", ChannelSource: "c", FieldConfidence: map[string]float64{"budget_range": 1.5}}, "field_confidence"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.draft, now)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("expected validation error on %q, got %v", tc.field, err)
			}
		})
	}
}

func TestCompleteness_FullProfile(t *testing.T) {
	d := Dimensions{
		LearningGoals:      []string{"a"},
		PainPoints:         []string{"b"},
		MotivationType:     CareerChange,
		UrgencyLevel:       ptr(5),
		BudgetRange:        BudgetOver10K,
		TimeAvailability:   TimeFlexible,
		LearningDuration:   DurationOngoing,
		SkillLevel:         SkillAdvanced,
		RelatedExperience:  []string{"c"},
		LearningAbility:    AbilityFast,
		CommunicationStyle: StyleDirect,
		DecisionPattern:    DecisionQuick,
		ResponseSpeed:      ResponseQuick,
		PriceSensitivity:   SensitivityLow,
		PaymentPreference:  PaymentFull,
		DiscountResponse:   DiscountNotMotivated,
	}
	if got := d.Completeness(); got != 0.89 {
		t.Errorf("expected 0.89, got %v", got)
	}
	if len(d.Missing()) != 0 {
		t.Errorf("expected nothing missing, got %v", d.Missing())
	}
}

func TestApply_ChangedFields(t *testing.T) {
	p := newProfile(t)
	updated, ch, err := p.Apply(Update{
		UrgencyLevel:     ptr(3),
		PriceSensitivity: ptr(SensitivityHigh),
		PainPoints:       []string{"no time"},
		FieldConfidence:  map[string]float64{"price_sensitivity": 0.9},
	}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []string{"pain_points", "price_sensitivity", "field_confidence"}
	if !slices.Equal(ch.Fields, want) {
		t.Errorf("expected changed %v, got %v", want, ch.Fields)
	}
	if ch.OldValues["price_sensitivity"] != "" || ch.NewValues["price_sensitivity"] != "high" {
		t.Errorf("unexpected change values %v -> %v", ch.OldValues, ch.NewValues)
	}
	if updated.UpdateCount() != 1 {
		t.Errorf("expected update count 1, got %d", updated.UpdateCount())
	}
	if updated.Completeness() != 0.22 {
		t.Errorf("expected completeness 0.22, got %v", updated.Completeness())
	}
	if updated.FieldConfidence()["price_sensitivity"] != 0.9 {
		t.Error("confidence must be merged")
	}
	if len(p.FieldConfidence()) != 0 {
		t.Error("original profile must not be modified")
	}
}

func TestApply_RejectsInvalidEnum(t *testing.T) {
	_, _, err := newProfile(t).Apply(Update{SkillLevel: ptr(SkillLevel("guru"))}, now)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	p := newProfile(t)
	if p.Summary() != nil {
		t.Fatal("expected nil summary without confidence")
	}
	p, _, _ = p.Apply(Update{FieldConfidence: map[string]float64{"a": 0.9, "b": 0.5, "c": 0.85}}, now)
	s := p.Summary()
	if s.Average != 0.75 || s.Max != 0.9 || s.Min != 0.5 || s.FieldsWithHighConfidence != 2 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestFactorsFor(t *testing.T) {
	f := FactorsFor(nil, 0)
	if f.HasProfile || !f.IsNewUser {
		t.Errorf("unexpected factors without profile %+v", f)
	}
	p := newProfile(t)
	f = FactorsFor(&p, 2)
	if !f.HasProfile || f.IsNewUser || f.UrgencyLevel != 3 || f.PaidOrders != 2 {
		t.Errorf("unexpected factors %+v", f)
	}
}

func TestNewHistory(t *testing.T) {
	p := newProfile(t)
	_, ch, _ := p.Apply(Update{BudgetRange: ptr(Budget1KTo5K)}, now)
	h := NewHistory(p, ActionUpdate, ch, "", now)
	if h.Source != "system" || h.UserID != "u1" || !slices.Equal(h.ChangedFields, []string{"budget_range"}) {
		t.Errorf("unexpected history %+v", h)
	}
}

func TestSkillLevel_Rank(t *testing.T) {
	if SkillBeginner.Rank() != 1 || SkillExpert.Rank() != 4 || SkillLevel("x").Rank() != 0 {
		t.Error("unexpected ranks")
	}
}
