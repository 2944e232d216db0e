package chi

import (
	"net/http"

	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

// PriceRequest is the body of the pricing endpoints.
type PriceRequest struct {
	UserID            string             `json:"user_id"`
	CourseIDs         []string           `json:"course_ids"`
	CouponCode        string             `json:"coupon_code,omitempty"`
	AppliedDiscountID string             `json:"applied_discount_id,omitempty"`
	AutoDiscount      bool               `json:"auto_discount,omitempty"`
	Scenarios         []pricing.Scenario `json:"scenarios,omitempty"`
}

// CalculatePrice handles POST /pricing/calculate.
func (s *Server) CalculatePrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	calc, err := s.pricing.Calculate(r.Context(), pricing.Request{
		UserID:            req.UserID,
		CourseIDs:         req.CourseIDs,
		CouponCode:        req.CouponCode,
		AppliedDiscountID: req.AppliedDiscountID,
		AutoDiscount:      req.AutoDiscount,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calc)
}

// PricingOptions handles POST /pricing/options.
func (s *Server) PricingOptions(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := s.pricing.Options(r.Context(), req.UserID, req.CourseIDs, req.CouponCode)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ComparePrices handles POST /pricing/compare. Nothing is persisted.
func (s *Server) ComparePrices(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	results, err := s.pricing.Compare(r.Context(), req.UserID, req.CourseIDs, req.Scenarios)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(results))
}
