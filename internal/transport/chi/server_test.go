package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	"github.com/coursedesk/offerd/internal/usecase/agent"
	"github.com/coursedesk/offerd/internal/usecase/health"
	"github.com/coursedesk/offerd/internal/usecase/order"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- stubs: embedded interfaces panic on calls a test does not expect ---

type stubHealth struct{ report health.Report }

func (s stubHealth) Check(context.Context) health.Report { return s.report }

type stubCourses struct {
	CourseService
	courses map[string]domcourse.Course
	created *domcourse.Draft
	err     error
}

func (s *stubCourses) Get(_ context.Context, id string) (domcourse.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return domcourse.Course{}, fmt.Errorf("get course %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (s *stubCourses) Create(_ context.Context, d domcourse.Draft) (domcourse.Course, error) {
	s.created = &d
	if s.err != nil {
		return domcourse.Course{}, s.err
	}
	return domcourse.New(d, now)
}

func (s *stubCourses) Search(_ context.Context, q domcourse.SearchQuery) ([]domcourse.Course, error) {
	if _, err := q.Normalize(); err != nil {
		return nil, err
	}
	return nil, nil
}

type stubCoupons struct {
	CouponService
	validation domcoupon.Validation
}

func (s *stubCoupons) Validate(
	_ context.Context, code, _ string, _ decimal.Decimal, _ map[string]decimal.Decimal,
) (domcoupon.Validation, error) {
	v := s.validation
	v.Code = code
	return v, nil
}

type stubDiscounts struct {
	DiscountService
	err error
}

func (s *stubDiscounts) Apply(context.Context, domdiscount.Application) (domdiscount.Applied, error) {
	return domdiscount.Applied{}, s.err
}

type stubOrders struct {
	OrderService
	err       error
	payment   *order.PaymentResult
	cancelled string
	filter    domorder.Filter
}

func testOrder() domorder.Order {
	return domorder.Reconstruct(domorder.State{
		ID:             "ORDER_20260301120000_ABCDEF12",
		UserID:         "u1",
		OriginalAmount: decimal.RequireFromString("1999"),
		FinalAmount:    decimal.RequireFromString("1599.2"),
		DiscountAmount: decimal.RequireFromString("399.8"),
		Status:         domorder.StatusPending,
		PaymentStatus:  domorder.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

func (s *stubOrders) Create(context.Context, order.CreateRequest) (domorder.Order, error) {
	if s.err != nil {
		return domorder.Order{}, s.err
	}
	return testOrder(), nil
}

func (s *stubOrders) ProcessPayment(_ context.Context, _ string, p order.PaymentResult) (domorder.Order, error) {
	s.payment = &p
	return testOrder(), s.err
}

func (s *stubOrders) Cancel(_ context.Context, _, reason string) (domorder.Order, error) {
	s.cancelled = reason
	if s.err != nil {
		return domorder.Order{}, s.err
	}
	return testOrder(), nil
}

func (s *stubOrders) ListForUser(_ context.Context, f domorder.Filter) ([]domorder.Order, int64, error) {
	s.filter = f
	return []domorder.Order{testOrder()}, 41, nil
}

func (s *stubOrders) RevenueTrend(context.Context, int, string) ([]domorder.RevenuePoint, error) {
	return nil, nil
}

type stubProfiles struct {
	ProfileService
	hard    *bool
	deleted string
}

func (s *stubProfiles) Delete(_ context.Context, userID string, hard bool) error {
	s.deleted = userID
	s.hard = &hard
	return nil
}

type stubAgent struct {
	AgentService
}

func (stubAgent) ProfileForAgent(context.Context, string) (agent.ProfileBrief, error) {
	return agent.ProfileBrief{Status: agent.ProfileMissing}, nil
}

type fixture struct {
	courses   *stubCourses
	coupons   *stubCoupons
	discounts *stubDiscounts
	orders    *stubOrders
	profiles  *stubProfiles
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := domcourse.New(domcourse.Draft{
		Name:          "Python for Data Analysis",
		Category:      domcourse.CategoryPython,
		OriginalPrice: decimal.RequireFromString("1999"),
		DurationHours: 40,
		Difficulty:    domcourse.Beginner,
	}, now)
	if err != nil {
		t.Fatalf("course fixture: %v", err)
	}
	f := &fixture{
		courses:   &stubCourses{courses: map[string]domcourse.Course{"c1": c}},
		coupons:   &stubCoupons{},
		discounts: &stubDiscounts{},
		orders:    &stubOrders{},
		profiles:  &stubProfiles{},
	}
	f.handler = NewServer(Services{
		Courses:   f.courses,
		Coupons:   f.coupons,
		Discounts: f.discounts,
		Orders:    f.orders,
		Profiles:  f.profiles,
		Agent:     stubAgent{},
		Health:    stubHealth{report: health.Report{Status: health.Healthy, Checks: map[string]health.CheckResult{"db": health.CheckOK}}},
	}).Handler()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- tests ---

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Checks["db"] != "ok" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestHealthCheck_Degraded(t *testing.T) {
	h := NewServer(Services{Health: stubHealth{report: health.Report{
		Status: health.Degraded,
		Checks: map[string]health.CheckResult{"db": health.CheckOK, "cache": health.CheckError},
	}}}).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)
	if rr := f.do(http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Errorf("got %d, want 200", rr.Code)
	}
}

func TestGetCourse_MoneyAsString(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/api/v1/courses/c1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"current_price":"1999"`) {
		t.Errorf("expected decimal string price, got %s", rr.Body)
	}
}

func TestGetCourse_NotFound(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/api/v1/courses/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNotFound {
		t.Errorf("got code %s", resp.Code)
	}
}

func TestCreateCourse(t *testing.T) {
	f := newFixture(t)
	body := `{"course_name":"Go Basics","category":"python","original_price":"500.50",
		"duration_hours":12,"difficulty_level":"beginner"}`
	rr := f.do(http.MethodPost, "/api/v1/courses", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d, want 201: %s", rr.Code, rr.Body)
	}
	if !f.courses.created.OriginalPrice.Equal(decimal.RequireFromString("500.5")) {
		t.Errorf("unexpected price %s", f.courses.created.OriginalPrice)
	}
	if !strings.HasPrefix(rr.Header().Get("Location"), "/api/v1/courses/course_") {
		t.Errorf("unexpected location %q", rr.Header().Get("Location"))
	}
}

func TestCreateCourse_BadBody(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/api/v1/courses", "{")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeBadRequest {
		t.Errorf("got code %s", resp.Code)
	}
}

func TestCreateCourse_ValidationField(t *testing.T) {
	f := newFixture(t)
	f.courses.err = domain.Invalid("original_price", "must not be negative")
	rr := f.do(http.MethodPost, "/api/v1/courses", `{"course_name":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != CodeValidationFailed || resp.Field != "original_price" {
		t.Errorf("unexpected error %+v", resp)
	}
}

func TestSearchCourses_BadQuery(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/api/v1/courses?min_price=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Field != "min_price" {
		t.Errorf("unexpected field %q", resp.Field)
	}

	rr = f.do(http.MethodGet, "/api/v1/courses?min_price=500&max_price=100", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("inverted range: got %d, want 400", rr.Code)
	}

	rr = f.do(http.MethodGet, "/api/v1/courses?keywords=python", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"items":[]`) {
		t.Errorf("expected empty list, got %d %s", rr.Code, rr.Body)
	}
}

func TestValidateCoupon_InvalidIsReportedInBody(t *testing.T) {
	f := newFixture(t)
	f.coupons.validation = domcoupon.Validation{Reason: domcoupon.ReasonExpired, Errors: []string{"coupon has expired"}}
	rr := f.do(http.MethodPost, "/api/v1/coupons/validate", `{"code":"SAVE10","order_amount":"100"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var v domcoupon.Validation
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Valid || v.Reason != domcoupon.ReasonExpired || v.Code != "SAVE10" {
		t.Errorf("unexpected validation %+v", v)
	}
}

func TestCreateOrder_CouponRejection(t *testing.T) {
	tests := []struct {
		name   string
		reason domcoupon.Reason
		status int
	}{
		{"expired", domcoupon.ReasonExpired, http.StatusUnprocessableEntity},
		{"unknown", domcoupon.ReasonNotFound, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.err = fmt.Errorf("create order: %w",
				&domcoupon.RejectionError{Code: "X", Reason: tc.reason, Detail: "no"})
			rr := f.do(http.MethodPost, "/api/v1/orders", `{"user_id":"u1","course_ids":["c1"],"coupon_code":"X"}`)
			if rr.Code != tc.status {
				t.Fatalf("got %d, want %d", rr.Code, tc.status)
			}
			resp := decodeError(t, rr)
			if resp.Code != CodeCouponInvalid || resp.Reason != string(tc.reason) {
				t.Errorf("unexpected error %+v", resp)
			}
		})
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/api/v1/orders", `{"user_id":"u1","course_ids":["c1"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d, want 201: %s", rr.Code, rr.Body)
	}
	var resp OrderResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.FinalAmount.Equal(decimal.RequireFromString("1599.2")) || resp.Status != "pending" {
		t.Errorf("unexpected order %+v", resp)
	}
	if !resp.TotalDiscount.Equal(decimal.RequireFromString("399.8")) {
		t.Errorf("unexpected total discount %s", resp.TotalDiscount)
	}
}

func TestApplyDiscount_OutOfRange(t *testing.T) {
	f := newFixture(t)
	opt := domdiscount.Option{Type: domdiscount.NewUser, Min: decimal.RequireFromString("0.1"), Max: decimal.RequireFromString("0.2")}
	f.discounts.err = fmt.Errorf("apply: %w", &domdiscount.RangeError{Option: opt, Value: decimal.RequireFromString("0.5")})

	rr := f.do(http.MethodPost, "/api/v1/discounts/apply",
		`{"user_id":"u1","option_type":"new_user","discount_value":"0.5","course_ids":["c1"]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != CodeDiscountOutOfRange || !strings.Contains(resp.Message, "0.1-0.2") {
		t.Errorf("unexpected error %+v", resp)
	}
}

func TestPayOrder_DefaultsToSuccess(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/api/v1/orders/o1/pay", `{"payment_method":"alipay"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if f.orders.payment == nil || !f.orders.payment.Success || f.orders.payment.Method != "alipay" {
		t.Errorf("unexpected payment %+v", f.orders.payment)
	}

	f.do(http.MethodPost, "/api/v1/orders/o1/pay", `{"payment_method":"card","success":false}`)
	if f.orders.payment.Success {
		t.Error("expected explicit failure to be passed through")
	}
}

func TestPayOrder_EmptyBody(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/api/v1/orders/o1/pay", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if f.orders.payment == nil || !f.orders.payment.Success {
		t.Errorf("expected a successful payment, got %+v", f.orders.payment)
	}

	if rr := f.do(http.MethodPost, "/api/v1/orders/o1/pay", `{"success":`); rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d, want 400", rr.Code)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	if rr := f.do(http.MethodPost, "/api/v1/orders/o1/cancel", ""); rr.Code != http.StatusOK {
		t.Fatalf("empty body: got %d, want 200", rr.Code)
	}

	f.do(http.MethodPost, "/api/v1/orders/o1/cancel", `{"reason":"changed mind"}`)
	if f.orders.cancelled != "changed mind" {
		t.Errorf("unexpected reason %q", f.orders.cancelled)
	}

	f.orders.err = &domain.TransitionError{Entity: "order", From: "paid", To: "cancelled"}
	rr := f.do(http.MethodPost, "/api/v1/orders/o1/cancel", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeInvalidTransition {
		t.Errorf("got code %s", resp.Code)
	}
}

func TestCreateOrder_InternalError(t *testing.T) {
	f := newFixture(t)
	f.orders.err = errors.New("connection reset")
	rr := f.do(http.MethodPost, "/api/v1/orders", `{"user_id":"u1","course_ids":["c1"]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != CodeInternalError || strings.Contains(resp.Message, "connection") {
		t.Errorf("internal details leaked: %+v", resp)
	}
}

func TestUserOrders_Paging(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/api/v1/users/u1/orders?limit=500&offset=20&status=paid", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if f.orders.filter.UserID != "u1" || f.orders.filter.Limit != 100 || f.orders.filter.Status != domorder.StatusPaid {
		t.Errorf("unexpected filter %+v", f.orders.filter)
	}
	var resp OrderListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 41 || len(resp.Items) != 1 || resp.Offset != 20 {
		t.Errorf("unexpected page %+v", resp)
	}
}

func TestRevenueTrend_BadDays(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/api/v1/orders/revenue-trend?days=week", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Field != "days" {
		t.Errorf("unexpected field %q", resp.Field)
	}
}

func TestDeleteProfile(t *testing.T) {
	f := newFixture(t)
	if rr := f.do(http.MethodDelete, "/api/v1/profiles/u1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("got %d, want 204", rr.Code)
	}
	if f.profiles.deleted != "u1" || *f.profiles.hard {
		t.Errorf("expected soft delete of u1, got %q hard=%v", f.profiles.deleted, *f.profiles.hard)
	}

	f.do(http.MethodDelete, "/api/v1/profiles/u1?hard=true", "")
	if !*f.profiles.hard {
		t.Error("expected hard delete")
	}
}

func TestAgentProfile_Missing(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/api/v1/agent/users/u1/profile", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`"status":"no_profile"`, `"sales_guidance":[]`, `"recommendations":[]`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %s", want, body)
		}
	}
	if strings.Contains(body, `"profile"`) {
		t.Errorf("expected no profile key: %s", body)
	}
}
