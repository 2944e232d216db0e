package agent

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domorder "github.com/coursedesk/offerd/internal/domain/order"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

// Insights are the profile facts an agent should keep in mind.
type Insights struct {
	PriceSensitivity   domprofile.PriceSensitivity   `json:"price_sensitivity,omitempty"`
	UrgencyLevel       int                           `json:"urgency_level"`
	LearningGoals      []string                      `json:"learning_goals"`
	BudgetRange        domprofile.BudgetRange        `json:"budget_range,omitempty"`
	CommunicationStyle domprofile.CommunicationStyle `json:"communication_style,omitempty"`
	DecisionPattern    domprofile.DecisionPattern    `json:"decision_pattern,omitempty"`
}

// InsightsOf extracts the key facts of p, nil without a profile.
func InsightsOf(p *domprofile.Profile) *Insights {
	if p == nil {
		return nil
	}
	d := p.Dimensions()
	return &Insights{
		PriceSensitivity:   d.PriceSensitivity,
		UrgencyLevel:       d.Urgency(),
		LearningGoals:      d.LearningGoals,
		BudgetRange:        d.BudgetRange,
		CommunicationStyle: d.CommunicationStyle,
		DecisionPattern:    d.DecisionPattern,
	}
}

func salesGuidance(p domprofile.Profile) []string {
	d := p.Dimensions()
	var out []string
	switch d.PriceSensitivity {
	case domprofile.SensitivityHigh:
		out = append(out, "price sensitive: stress value for money and available offers")
	case domprofile.SensitivityLow:
		out = append(out, "not price sensitive: stress quality and outcomes")
	}
	if d.Urgency() >= 4 {
		out = append(out, "strong intent to learn: it is fine to nudge toward a decision")
	}
	switch d.CommunicationStyle {
	case domprofile.StyleDirect:
		out = append(out, "prefers direct communication: skip long introductions")
	case domprofile.StyleAnalytical, domprofile.StyleDetailOriented:
		out = append(out, "prefers detail: give concrete facts and comparisons")
	}
	return out
}

func profileSuggestions(p domprofile.Profile) []string {
	d := p.Dimensions()
	var out []string
	if p.Completeness() < domprofile.HighCompleteness {
		out = append(out, "learn more about the user's needs to complete the profile")
	}
	if len(d.LearningGoals) == 0 {
		out = append(out, "ask about concrete learning goals")
	}
	if d.BudgetRange == "" {
		out = append(out, "ask about the budget range")
	}
	return out
}

func recommendationStrategy(p *domprofile.Profile) string {
	switch {
	case p == nil:
		return "general recommendations"
	case p.Dimensions().PriceSensitivity == domprofile.SensitivityHigh:
		return "value for money first"
	case p.Dimensions().Urgency() >= 4:
		return "fast conversion"
	default:
		return "match course value to goals"
	}
}

func pricingStrategy(p *domprofile.Profile) string {
	if p == nil {
		return "standard pricing"
	}
	switch p.Dimensions().PriceSensitivity {
	case domprofile.SensitivityHigh:
		return "lead with discounts and value for money"
	case domprofile.SensitivityLow:
		return "lead with course value and return on investment"
	default:
		return "balance value and discounts"
	}
}

func negotiationTips(p *domprofile.Profile) []string {
	if p == nil {
		return []string{"stay professional and lead with course value"}
	}
	d := p.Dimensions()
	var out []string
	switch d.DecisionPattern {
	case domprofile.DecisionCarefulResearch:
		out = append(out, "offer detailed data and comparisons")
	case domprofile.DecisionQuick, domprofile.DecisionImpulsive:
		out = append(out, "describe the learning experience, keep it short")
	case domprofile.DecisionProcrastinating:
		out = append(out, "use the discount validity window as a deadline")
	}
	if d.CommunicationStyle == domprofile.StyleDirect {
		out = append(out, "be straightforward")
	}
	return out
}

var installmentThreshold = decimal.NewFromInt(1000)

func closingSuggestions(p *domprofile.Profile, amount decimal.Decimal) []string {
	var out []string
	if p != nil && p.Dimensions().Urgency() >= 4 {
		out = append(out, "intent is strong: a little time pressure is acceptable")
	}
	if amount.GreaterThan(installmentThreshold) {
		out = append(out, "large order: mention installment payment")
	}
	return append(out,
		"stress the long-term value of the course",
		"promise learning support after purchase")
}

// PaymentGuidance helps the agent walk the user through payment.
type PaymentGuidance struct {
	RecommendedMethod string   `json:"recommended_method"`
	Assurance         string   `json:"security_assurance"`
	Tips              []string `json:"payment_tips"`
}

func paymentGuidance(o domorder.Order) PaymentGuidance {
	method := o.PaymentMethod()
	if method == "" {
		method = "alipay"
	}
	return PaymentGuidance{
		RecommendedMethod: method,
		Assurance:         "7-day no-questions-asked refund",
		Tips: []string{
			"course access opens right after payment",
			"keep the payment receipt",
			"contact support for payment problems",
		},
	}
}

func explainStatus(o domorder.Order) string {
	switch {
	case o.Status() == domorder.StatusPending && o.PaymentStatus() == domorder.PaymentFailed:
		return "payment failed, the order is waiting for another attempt"
	case o.Status() == domorder.StatusPending:
		return "order created, waiting for payment"
	case o.Status() == domorder.StatusConfirmed:
		return "order confirmed, waiting for payment"
	case o.Status() == domorder.StatusPaid:
		return "paid, course access is open"
	case o.Status() == domorder.StatusCancelled:
		return "order cancelled"
	case o.Status() == domorder.StatusRefunded:
		return "order refunded"
	default:
		return "unknown status"
	}
}

func suggestedActions(o domorder.Order) []string {
	switch {
	case o.PaymentStatus() == domorder.PaymentFailed && !o.Status().IsTerminal():
		return []string{"help resolve the payment problem", "offer another payment method", "confirm the order details"}
	case o.Status() == domorder.StatusPending, o.Status() == domorder.StatusConfirmed:
		return []string{"remind the user to complete payment", "share the payment link", "ask whether help is needed"}
	case o.Status() == domorder.StatusPaid:
		return []string{"congratulate the user", "explain how to start learning", "suggest a study plan"}
	case o.Status() == domorder.StatusCancelled:
		return []string{"ask why the order was cancelled", "suggest other suitable courses"}
	default:
		return []string{"check the order details"}
	}
}

func conversationTips(p *domprofile.Profile) []string {
	if p == nil {
		return []string{"keep a friendly professional tone", "ask about the user's needs"}
	}
	d := p.Dimensions()
	var out []string
	switch d.CommunicationStyle {
	case domprofile.StyleEmotional:
		out = append(out, "a warm, relaxed tone works well")
	case domprofile.StyleAnalytical, domprofile.StyleDetailOriented:
		out = append(out, "keep the exchange precise and factual")
	}
	switch d.ResponseSpeed {
	case domprofile.ResponseImmediate, domprofile.ResponseQuick:
		out = append(out, "the user replies fast: keep the pace up")
	case domprofile.ResponseSlow, domprofile.ResponseVerySlow:
		out = append(out, "the user needs time to think: do not rush")
	}
	return out
}

func personalization(p *domprofile.Profile) []string {
	if p == nil {
		return []string{"collect more information to personalize the conversation"}
	}
	d := p.Dimensions()
	var out []string
	if goals := d.LearningGoals; len(goals) > 0 {
		if len(goals) > 2 {
			goals = goals[:2]
		}
		out = append(out, "refer to the learning goals: "+strings.Join(goals, ", "))
	}
	if d.MotivationType != "" {
		out = append(out, fmt.Sprintf("frame the pitch around the motivation (%s)", d.MotivationType))
	}
	return out
}
