package profile

import "slices"

// MotivationType is why the user wants to learn.
type MotivationType string

// Motivation types.
const (
	CareerAdvancement MotivationType = "career_advancement"
	SkillUpgrade      MotivationType = "skill_upgrade"
	CareerChange      MotivationType = "career_change"
	PersonalInterest  MotivationType = "personal_interest"
	ProblemSolving    MotivationType = "problem_solving"
)

// IsValid checks if the value is supported.
func (v MotivationType) IsValid() bool {
	return slices.Contains([]MotivationType{CareerAdvancement, SkillUpgrade, CareerChange, PersonalInterest, ProblemSolving}, v)
}

// SkillLevel is the user's current skill level.
type SkillLevel string

// Skill levels, ordered.
const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

var skillLevels = []SkillLevel{SkillBeginner, SkillIntermediate, SkillAdvanced, SkillExpert}

// IsValid checks if the value is supported.
func (v SkillLevel) IsValid() bool { return slices.Contains(skillLevels, v) }

// Rank returns 1..4 in ascending order, 0 when unknown.
func (v SkillLevel) Rank() int { return slices.Index(skillLevels, v) + 1 }

// BudgetRange is the user's stated budget bracket.
type BudgetRange string

// Budget ranges.
const (
	BudgetUnder1K BudgetRange = "<1000"
	Budget1KTo5K  BudgetRange = "1000-5000"
	Budget5KTo10K BudgetRange = "5000-10000"
	BudgetOver10K BudgetRange = "10000+"
)

// IsValid checks if the value is supported.
func (v BudgetRange) IsValid() bool {
	return slices.Contains([]BudgetRange{BudgetUnder1K, Budget1KTo5K, Budget5KTo10K, BudgetOver10K}, v)
}

// Ceiling returns the upper bound of the bracket, or -1 when unbounded or unknown.
func (v BudgetRange) Ceiling() int64 {
	switch v {
	case BudgetUnder1K:
		return 1000
	case Budget1KTo5K:
		return 5000
	case Budget5KTo10K:
		return 10000
	default:
		return -1
	}
}

// TimeAvailability is how much time the user can spend.
type TimeAvailability string

// Time availability values.
const (
	TimeVeryLimited  TimeAvailability = "very_limited"
	TimeLimited      TimeAvailability = "limited"
	TimeModerate     TimeAvailability = "moderate"
	TimeFlexible     TimeAvailability = "flexible"
	TimeVeryFlexible TimeAvailability = "very_flexible"
)

// IsValid checks if the value is supported.
func (v TimeAvailability) IsValid() bool {
	return slices.Contains([]TimeAvailability{TimeVeryLimited, TimeLimited, TimeModerate, TimeFlexible, TimeVeryFlexible}, v)
}

// LearningDuration is the expected study horizon.
type LearningDuration string

// Learning durations.
const (
	DurationShortTerm  LearningDuration = "short_term"
	DurationMediumTerm LearningDuration = "medium_term"
	DurationLongTerm   LearningDuration = "long_term"
	DurationOngoing    LearningDuration = "ongoing"
)

// IsValid checks if the value is supported.
func (v LearningDuration) IsValid() bool {
	return slices.Contains([]LearningDuration{DurationShortTerm, DurationMediumTerm, DurationLongTerm, DurationOngoing}, v)
}

// LearningAbility is the assessed learning pace.
type LearningAbility string

// Learning abilities.
const (
	AbilitySlow     LearningAbility = "slow"
	AbilityAverage  LearningAbility = "average"
	AbilityFast     LearningAbility = "fast"
	AbilityVeryFast LearningAbility = "very_fast"
)

// IsValid checks if the value is supported.
func (v LearningAbility) IsValid() bool {
	return slices.Contains([]LearningAbility{AbilitySlow, AbilityAverage, AbilityFast, AbilityVeryFast}, v)
}

// CommunicationStyle is how the user prefers to talk.
type CommunicationStyle string

// Communication styles.
const (
	StyleDirect         CommunicationStyle = "direct"
	StyleAnalytical     CommunicationStyle = "analytical"
	StyleEmotional      CommunicationStyle = "emotional"
	StyleDetailOriented CommunicationStyle = "detail_oriented"
	StyleBigPicture     CommunicationStyle = "big_picture"
)

// IsValid checks if the value is supported.
func (v CommunicationStyle) IsValid() bool {
	return slices.Contains([]CommunicationStyle{StyleDirect, StyleAnalytical, StyleEmotional, StyleDetailOriented, StyleBigPicture}, v)
}

// DecisionPattern is how the user makes purchase decisions.
type DecisionPattern string

// Decision patterns.
const (
	DecisionQuick           DecisionPattern = "quick_decisive"
	DecisionCarefulResearch DecisionPattern = "careful_research"
	DecisionConsensus       DecisionPattern = "consensus_seeking"
	DecisionProcrastinating DecisionPattern = "procrastinating"
	DecisionImpulsive       DecisionPattern = "impulsive"
)

// IsValid checks if the value is supported.
func (v DecisionPattern) IsValid() bool {
	return slices.Contains([]DecisionPattern{DecisionQuick, DecisionCarefulResearch, DecisionConsensus, DecisionProcrastinating, DecisionImpulsive}, v)
}

// ResponseSpeed is how quickly the user replies.
type ResponseSpeed string

// Response speeds.
const (
	ResponseImmediate ResponseSpeed = "immediate"
	ResponseQuick     ResponseSpeed = "quick"
	ResponseNormal    ResponseSpeed = "normal"
	ResponseSlow      ResponseSpeed = "slow"
	ResponseVerySlow  ResponseSpeed = "very_slow"
)

// IsValid checks if the value is supported.
func (v ResponseSpeed) IsValid() bool {
	return slices.Contains([]ResponseSpeed{ResponseImmediate, ResponseQuick, ResponseNormal, ResponseSlow, ResponseVerySlow}, v)
}

// PriceSensitivity is how strongly price drives the decision.
type PriceSensitivity string

// Price sensitivity levels.
const (
	SensitivityHigh   PriceSensitivity = "high"
	SensitivityMedium PriceSensitivity = "medium"
	SensitivityLow    PriceSensitivity = "low"
)

// IsValid checks if the value is supported.
func (v PriceSensitivity) IsValid() bool {
	return slices.Contains([]PriceSensitivity{SensitivityHigh, SensitivityMedium, SensitivityLow}, v)
}

// PaymentPreference is the preferred way to pay.
type PaymentPreference string

// Payment preferences.
const (
	PaymentFull          PaymentPreference = "full_payment"
	PaymentInstallment   PaymentPreference = "installment"
	PaymentTrialFirst    PaymentPreference = "trial_first"
	PaymentGroupDiscount PaymentPreference = "group_discount"
)

// IsValid checks if the value is supported.
func (v PaymentPreference) IsValid() bool {
	return slices.Contains([]PaymentPreference{PaymentFull, PaymentInstallment, PaymentTrialFirst, PaymentGroupDiscount}, v)
}

// DiscountResponse is how strongly discounts motivate the user.
type DiscountResponse string

// Discount responses.
const (
	DiscountHighlyMotivated     DiscountResponse = "highly_motivated"
	DiscountModeratelyMotivated DiscountResponse = "moderately_motivated"
	DiscountSlightlyMotivated   DiscountResponse = "slightly_motivated"
	DiscountNotMotivated        DiscountResponse = "not_motivated"
)

// IsValid checks if the value is supported.
func (v DiscountResponse) IsValid() bool {
	return slices.Contains([]DiscountResponse{DiscountHighlyMotivated, DiscountModeratelyMotivated, DiscountSlightlyMotivated, DiscountNotMotivated}, v)
}
