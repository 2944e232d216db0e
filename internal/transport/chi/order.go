package chi

import (
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domorder "github.com/coursedesk/offerd/internal/domain/order"
	"github.com/coursedesk/offerd/internal/usecase/order"
)

// OrderResponse is the JSON form of an order.
type OrderResponse struct {
	ID                 string          `json:"order_id"`
	UserID             string          `json:"user_id"`
	Items              []domorder.Item `json:"items"`
	OriginalAmount     decimal.Decimal `json:"original_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	CouponDiscount     decimal.Decimal `json:"coupon_discount"`
	FinalAmount        decimal.Decimal `json:"final_amount"`
	TotalDiscount      decimal.Decimal `json:"total_discount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	AppliedDiscountID  string          `json:"applied_discount_id,omitempty"`
	CouponCode         string          `json:"coupon_code,omitempty"`
	Status             string          `json:"status"`
	PaymentStatus      string          `json:"payment_status"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CancelReason       string          `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
}

func orderToResponse(o domorder.Order) OrderResponse {
	s := o.State()
	return OrderResponse{
		ID:                 s.ID,
		UserID:             s.UserID,
		Items:              s.Items,
		OriginalAmount:     s.OriginalAmount,
		DiscountAmount:     s.DiscountAmount,
		CouponDiscount:     s.CouponDiscount,
		FinalAmount:        s.FinalAmount,
		TotalDiscount:      o.TotalDiscount(),
		DiscountPercentage: o.DiscountPercentage(),
		AppliedDiscountID:  s.AppliedDiscountID,
		CouponCode:         s.CouponCode,
		Status:             string(s.Status),
		PaymentStatus:      string(s.PaymentStatus),
		PaymentMethod:      s.PaymentMethod,
		Notes:              s.Notes,
		CancelReason:       s.CancelReason,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		PaidAt:             s.PaidAt,
	}
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	UserID            string   `json:"user_id"`
	CourseIDs         []string `json:"course_ids"`
	CouponCode        string   `json:"coupon_code,omitempty"`
	AppliedDiscountID string   `json:"applied_discount_id,omitempty"`
	PaymentMethod     string   `json:"payment_method,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// PaymentRequest is the body of POST /orders/{id}/pay.
type PaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
	Success       *bool  `json:"success"`
}

// CancelRequest is the body of POST /orders/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// OrderListResponse is a page of orders.
type OrderListResponse struct {
	Items  []OrderResponse `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// CreateOrder handles POST /orders.
func (s *Server) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := s.orders.Create(r.Context(), order.CreateRequest{
		UserID:            req.UserID,
		CourseIDs:         req.CourseIDs,
		CouponCode:        req.CouponCode,
		AppliedDiscountID: req.AppliedDiscountID,
		PaymentMethod:     req.PaymentMethod,
		Notes:             req.Notes,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/orders/"+o.ID())
	writeJSON(w, http.StatusCreated, orderToResponse(o))
}

// GetOrder handles GET /orders/{id}.
func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// PayOrder handles POST /orders/{id}/pay. The body is optional and success defaults to true.
func (s *Server) PayOrder(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	success := true
	if req.Success != nil {
		success = *req.Success
	}
	o, err := s.orders.ProcessPayment(r.Context(), gochi.URLParam(r, "id"), order.PaymentResult{
		Method:  req.PaymentMethod,
		Success: success,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// CancelOrder handles POST /orders/{id}/cancel. The body is optional.
func (s *Server) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	o, err := s.orders.Cancel(r.Context(), gochi.URLParam(r, "id"), req.Reason)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// RefundOrder handles POST /orders/{id}/refund.
func (s *Server) RefundOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Refund(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// UserOrders handles GET /users/{uid}/orders.
func (s *Server) UserOrders(w http.ResponseWriter, r *http.Request) {
	f := domorder.Filter{
		UserID: gochi.URLParam(r, "uid"),
		Status: domorder.Status(r.URL.Query().Get("status")),
	}
	var err error
	if f.Limit, err = queryInt(r, "limit", 20); err != nil {
		handleError(w, r, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		handleError(w, r, err)
		return
	}
	f = f.Normalize()

	list, total, err := s.orders.ListForUser(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderListResponse{
		Items:  mapSlice(list, orderToResponse),
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

// OrderStatistics handles GET /orders/stats.
func (s *Server) OrderStatistics(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		handleError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		handleError(w, r, err)
		return
	}
	stats, err := s.orders.Statistics(r.Context(), from, to, r.URL.Query().Get("user_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RevenueTrend handles GET /orders/revenue-trend.
func (s *Server) RevenueTrend(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		handleError(w, r, err)
		return
	}
	points, err := s.orders.RevenueTrend(r.Context(), days, r.URL.Query().Get("user_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(points))
}

// PopularCourseSales handles GET /orders/popular-courses.
func (s *Server) PopularCourseSales(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		handleError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		handleError(w, r, err)
		return
	}
	sales, err := s.orders.PopularCourses(r.Context(), days, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(sales))
}
