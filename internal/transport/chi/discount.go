package chi

import (
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
)

// AppliedDiscountResponse is the JSON form of an applied discount.
type AppliedDiscountResponse struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	OptionType     string          `json:"option_type"`
	DiscountType   string          `json:"discount_type"`
	Value          decimal.Decimal `json:"discount_value"`
	CourseIDs      []string        `json:"course_ids"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	AgentReasoning string          `json:"agent_reasoning,omitempty"`
	ValidUntil     time.Time       `json:"valid_until"`
	IsUsed         bool            `json:"is_used"`
	UsedAt         *time.Time      `json:"used_at,omitempty"`
	OrderID        string          `json:"order_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func appliedToResponse(a domdiscount.Applied) AppliedDiscountResponse {
	s := a.State()
	return AppliedDiscountResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		OptionType:     string(s.OptionType),
		DiscountType:   string(s.DiscountType),
		Value:          s.Value,
		CourseIDs:      s.CourseIDs,
		OriginalAmount: s.OriginalAmount,
		DiscountAmount: s.DiscountAmount,
		FinalAmount:    s.FinalAmount,
		AgentReasoning: s.AgentReasoning,
		ValidUntil:     s.ValidUntil,
		IsUsed:         s.IsUsed,
		UsedAt:         s.UsedAt,
		OrderID:        s.OrderID,
		CreatedAt:      s.CreatedAt,
	}
}

// ApplyDiscountRequest is the body of POST /discounts/apply.
type ApplyDiscountRequest struct {
	UserID         string          `json:"user_id"`
	OptionType     string          `json:"option_type"`
	Value          decimal.Decimal `json:"discount_value"`
	CourseIDs      []string        `json:"course_ids"`
	AgentReasoning string          `json:"agent_reasoning"`
	ValidHours     int             `json:"valid_hours"`
}

func (req ApplyDiscountRequest) application() domdiscount.Application {
	return domdiscount.Application{
		UserID:         req.UserID,
		OptionType:     domdiscount.OptionType(req.OptionType),
		Value:          req.Value,
		CourseIDs:      req.CourseIDs,
		AgentReasoning: req.AgentReasoning,
		ValidHours:     req.ValidHours,
	}
}

// DiscountOptions handles GET /discounts/options.
func (s *Server) DiscountOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listOf(s.discounts.Options()))
}

// GuidanceResponse carries the discount prompt guidance.
type GuidanceResponse struct {
	Guidance string `json:"guidance"`
}

// DiscountGuidance handles GET /discounts/guidance.
func (s *Server) DiscountGuidance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, GuidanceResponse{Guidance: s.discounts.Guidance()})
}

// ApplyDiscount handles POST /discounts/apply.
func (s *Server) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req ApplyDiscountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.discounts.Apply(r.Context(), req.application())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appliedToResponse(a))
}

// GetDiscount handles GET /discounts/{id}.
func (s *Server) GetDiscount(w http.ResponseWriter, r *http.Request) {
	a, err := s.discounts.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appliedToResponse(a))
}

// UserDiscounts handles GET /users/{uid}/discounts.
func (s *Server) UserDiscounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.discounts.ActiveForUser(r.Context(), gochi.URLParam(r, "uid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(mapSlice(list, appliedToResponse)))
}

// DiscountStats handles GET /discounts/stats.
func (s *Server) DiscountStats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		handleError(w, r, err)
		return
	}
	stats, err := s.discounts.EffectivenessStats(r.Context(), days)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(stats))
}
