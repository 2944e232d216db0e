package chi

import (
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
)

// CouponResponse is the JSON form of a coupon.
type CouponResponse struct {
	ID                string           `json:"id"`
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	Type              string           `json:"coupon_type"`
	Value             decimal.Decimal  `json:"discount_value"`
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount"`
	MaxDiscount       *decimal.Decimal `json:"max_discount,omitempty"`
	ValidFrom         time.Time        `json:"valid_from"`
	ValidTo           time.Time        `json:"valid_to"`
	UsageLimit        *int             `json:"usage_limit,omitempty"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user,omitempty"`
	UsedCount         int              `json:"used_count"`
	ApplicableCourses []string         `json:"applicable_courses"`
	Description       string           `json:"description,omitempty"`
	Status            string           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func couponToResponse(c domcoupon.Coupon) CouponResponse {
	s := c.State()
	courses := s.ApplicableCourses
	if courses == nil {
		courses = []string{}
	}
	return CouponResponse{
		ID:                s.ID,
		Code:              s.Code,
		Name:              s.Name,
		Type:              string(s.Type),
		Value:             s.Value,
		MinOrderAmount:    s.MinOrderAmount,
		MaxDiscount:       s.MaxDiscount,
		ValidFrom:         s.ValidFrom,
		ValidTo:           s.ValidTo,
		UsageLimit:        s.UsageLimit,
		UsageLimitPerUser: s.UsageLimitPerUser,
		UsedCount:         s.UsedCount,
		ApplicableCourses: courses,
		Description:       s.Description,
		Status:            string(s.Status),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// CouponRequest is the body of POST /coupons and PATCH /coupons/{code}.
// Code and coupon_type are ignored on update.
type CouponRequest struct {
	Code              string           `json:"code"`
	Name              *string          `json:"name"`
	Type              string           `json:"coupon_type"`
	Value             *decimal.Decimal `json:"discount_value"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount"`
	MaxDiscount       *decimal.Decimal `json:"max_discount"`
	ValidFrom         *time.Time       `json:"valid_from"`
	ValidTo           *time.Time       `json:"valid_to"`
	UsageLimit        *int             `json:"usage_limit"`
	UsageLimitPerUser *int             `json:"usage_limit_per_user"`
	ApplicableCourses []string         `json:"applicable_courses"`
	Description       *string          `json:"description"`
	Status            *string          `json:"status"`
}

func (req CouponRequest) draft() domcoupon.Draft {
	return domcoupon.Draft{
		Code:              req.Code,
		Name:              deref(req.Name),
		Type:              domcoupon.Type(req.Type),
		Value:             deref(req.Value),
		MinOrderAmount:    deref(req.MinOrderAmount),
		MaxDiscount:       req.MaxDiscount,
		ValidFrom:         deref(req.ValidFrom),
		ValidTo:           deref(req.ValidTo),
		UsageLimit:        req.UsageLimit,
		UsageLimitPerUser: req.UsageLimitPerUser,
		ApplicableCourses: req.ApplicableCourses,
		Description:       deref(req.Description),
		Status:            domcoupon.Status(deref(req.Status)),
	}
}

func (req CouponRequest) update() domcoupon.Update {
	u := domcoupon.Update{
		Name:              req.Name,
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscount:       req.MaxDiscount,
		ValidFrom:         req.ValidFrom,
		ValidTo:           req.ValidTo,
		UsageLimit:        req.UsageLimit,
		UsageLimitPerUser: req.UsageLimitPerUser,
		ApplicableCourses: req.ApplicableCourses,
		Description:       req.Description,
	}
	if req.Status != nil {
		st := domcoupon.Status(*req.Status)
		u.Status = &st
	}
	return u
}

// ValidateCouponRequest is the body of POST /coupons/validate.
type ValidateCouponRequest struct {
	Code        string                     `json:"code"`
	UserID      string                     `json:"user_id"`
	OrderAmount decimal.Decimal            `json:"order_amount"`
	CourseLines map[string]decimal.Decimal `json:"course_prices,omitempty"`
}

// CreateCoupon handles POST /coupons.
func (s *Server) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.coupons.Create(r.Context(), req.draft())
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/coupons/"+c.Code())
	writeJSON(w, http.StatusCreated, couponToResponse(c))
}

// ListCoupons handles GET /coupons. Only currently valid coupons are listed.
func (s *Server) ListCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := s.coupons.ListValid(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(mapSlice(list, couponToResponse)))
}

// ExpiringCoupons handles GET /coupons/expiring.
func (s *Server) ExpiringCoupons(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 7)
	if err != nil {
		handleError(w, r, err)
		return
	}
	list, err := s.coupons.Expiring(r.Context(), days)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(mapSlice(list, couponToResponse)))
}

// GetCoupon handles GET /coupons/{code}.
func (s *Server) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := s.coupons.GetByCode(r.Context(), gochi.URLParam(r, "code"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, couponToResponse(c))
}

// UpdateCoupon handles PATCH /coupons/{code}.
func (s *Server) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.coupons.Update(r.Context(), gochi.URLParam(r, "code"), req.update())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, couponToResponse(c))
}

// ValidateCoupon handles POST /coupons/validate.
// An invalid coupon is a successful check and is reported in the body.
func (s *Server) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := s.coupons.Validate(r.Context(), req.Code, req.UserID, req.OrderAmount, req.CourseLines)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CouponStats handles GET /coupons/{code}/stats.
func (s *Server) CouponStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coupons.Stats(r.Context(), gochi.URLParam(r, "code"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// UserCoupons handles GET /users/{uid}/coupons.
func (s *Server) UserCoupons(w http.ResponseWriter, r *http.Request) {
	amount, err := queryDecimal(r, "order_amount")
	if err != nil {
		handleError(w, r, err)
		return
	}
	recs, err := s.coupons.AvailableForUser(r.Context(), gochi.URLParam(r, "uid"), deref(amount))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(recs))
}
