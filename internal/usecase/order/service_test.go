package order

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	"github.com/coursedesk/offerd/internal/metrics"
	"github.com/coursedesk/offerd/internal/usecase/coupon"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

var testNow = time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)

// --- Mocks ---

type mockRepo struct {
	orders map[string]domorder.Order
	lists  int
}

func (m *mockRepo) Create(_ context.Context, o domorder.Order) error {
	m.orders[o.ID()] = o
	return nil
}

func (m *mockRepo) Update(_ context.Context, o domorder.Order) error {
	if _, ok := m.orders[o.ID()]; !ok {
		return domain.ErrNotFound
	}
	m.orders[o.ID()] = o
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (domorder.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return domorder.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *mockRepo) List(_ context.Context, f domorder.Filter) ([]domorder.Order, int64, error) {
	m.lists++
	var out []domorder.Order
	for _, o := range m.orders {
		if o.UserID() == f.UserID && (f.Status == "" || o.Status() == f.Status) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, int64(len(out)), nil
}

func (m *mockRepo) PendingOlderThan(_ context.Context, cutoff time.Time, _ int) ([]domorder.Order, error) {
	var out []domorder.Order
	for _, o := range m.orders {
		if o.Status() == domorder.StatusPending && o.CreatedAt().Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockRepo) PaidCount(_ context.Context, userID string) (int, error) {
	n := 0
	for _, o := range m.orders {
		if o.UserID() == userID && o.IsPaid() {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Statistics(context.Context, time.Time, time.Time, string) (domorder.Statistics, error) {
	return domorder.Statistics{TotalOrders: len(m.orders)}.Finalize(), nil
}

func (m *mockRepo) RevenueByDay(_ context.Context, from, _ time.Time, _ string) ([]domorder.RevenuePoint, error) {
	return []domorder.RevenuePoint{{Date: from.Format(time.DateOnly)}}, nil
}

func (m *mockRepo) PopularCourses(_ context.Context, _ time.Time, limit int) ([]domorder.CourseSales, error) {
	return make([]domorder.CourseSales, limit), nil
}

type mockTx struct{}

func (mockTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockPricer charges fixed prices, a 10% agent discount and a 50 coupon.
type mockPricer struct{ prices map[string]string }

func (m *mockPricer) Calculate(_ context.Context, r pricing.Request) (domorder.PriceCalculation, error) {
	var items []domorder.Item
	var missing []string
	for _, id := range r.CourseIDs {
		p, ok := m.prices[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		items = append(items, domorder.NewItem(id, "Course "+id, decimal.RequireFromString(p)))
	}
	base := domorder.Combine(items, decimal.Zero, decimal.Zero).OriginalAmount
	discount, couponAmount := decimal.Zero, decimal.Zero
	var detail *domorder.DiscountDetail
	if r.AppliedDiscountID != "" {
		discount = domain.Round2(base.Mul(decimal.RequireFromString("0.1")))
		detail = &domorder.DiscountDetail{ID: r.AppliedDiscountID, Amount: discount}
	}
	var cd *domorder.CouponDetail
	switch r.CouponCode {
	case "":
	case "BAD":
		cd = &domorder.CouponDetail{Code: "BAD", Reason: "expired", Errors: []string{"coupon has expired"}}
	default:
		couponAmount = decimal.NewFromInt(50)
		cd = &domorder.CouponDetail{Code: r.CouponCode, Valid: true, Amount: couponAmount}
	}
	calc := domorder.Combine(items, discount, couponAmount)
	calc.Discount, calc.Coupon, calc.MissingCourseIDs = detail, cd, missing
	return calc, nil
}

type mockCoupons struct {
	redeemed []coupon.Redemption
	released []string
}

func (m *mockCoupons) Redeem(_ context.Context, r coupon.Redemption) (domcoupon.Usage, error) {
	m.redeemed = append(m.redeemed, r)
	return domcoupon.Usage{Code: r.Code, OrderID: r.OrderID, DiscountAmount: r.Discount}, nil
}

func (m *mockCoupons) Release(_ context.Context, orderID string) error {
	m.released = append(m.released, orderID)
	return nil
}

type mockDiscounts struct {
	used     map[string]string
	released []string
}

func (m *mockDiscounts) MarkUsed(_ context.Context, id, _, orderID string) (domdiscount.Applied, error) {
	if _, ok := m.used[id]; ok {
		return domdiscount.Applied{}, domain.ErrDiscountUnavailable
	}
	m.used[id] = orderID
	return domdiscount.Applied{}, nil
}

func (m *mockDiscounts) Release(_ context.Context, orderID string) error {
	m.released = append(m.released, orderID)
	return nil
}

type mockCourses struct{ sold []string }

func (m *mockCourses) RecordSales(_ context.Context, ids []string) error {
	m.sold = append(m.sold, ids...)
	return nil
}

type memCache struct{ data map[string][]byte }

func (c *memCache) Get(_ context.Context, key string, dst any) bool {
	b, ok := c.data[key]
	return ok && json.Unmarshal(b, dst) == nil
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) {
	b, _ := json.Marshal(v)
	c.data[key] = b
}

func (c *memCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		delete(c.data, k)
	}
}

func (c *memCache) DeletePattern(_ context.Context, pattern string) {
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok || strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(c.data, k)
		}
	}
}

type mockMetrics struct {
	events  []string
	revenue float64
}

func (m *mockMetrics) Order(event string)     { m.events = append(m.events, event) }
func (m *mockMetrics) Revenue(amount float64) { m.revenue += amount }

type fixture struct {
	svc       *Service
	repo      *mockRepo
	coupons   *mockCoupons
	discounts *mockDiscounts
	courses   *mockCourses
	cache     *memCache
	metrics   *mockMetrics
}

func newFixture() *fixture {
	f := &fixture{
		repo:      &mockRepo{orders: map[string]domorder.Order{}},
		coupons:   &mockCoupons{},
		discounts: &mockDiscounts{used: map[string]string{}},
		courses:   &mockCourses{},
		cache:     &memCache{data: map[string][]byte{}},
		metrics:   &mockMetrics{},
	}
	f.svc = New(Deps{
		Repo:      f.repo,
		Tx:        mockTx{},
		Pricer:    &mockPricer{prices: map[string]string{"c1": "1000", "c2": "500"}},
		Coupons:   f.coupons,
		Discounts: f.discounts,
		Courses:   f.courses,
		Cache:     f.cache,
		Metrics:   f.metrics,
		Logger:    zap.NewNop(),
	}, time.Hour, 30*time.Minute)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) create(t *testing.T, r CreateRequest) domorder.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), r)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

// --- Tests ---

func TestCreate_WithDiscountAndCoupon(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{
		UserID: "u1", CourseIDs: []string{"c1", "c2"}, CouponCode: "SAVE50", AppliedDiscountID: "d1",
		PaymentMethod: "card",
	})

	if !o.OriginalAmount().Equal(decimal.NewFromInt(1500)) || !o.FinalAmount().Equal(decimal.NewFromInt(1300)) {
		t.Errorf("unexpected amounts %s -> %s", o.OriginalAmount(), o.FinalAmount())
	}
	if o.CouponCode() != "SAVE50" || o.AppliedDiscountID() != "d1" {
		t.Errorf("expected coupon and discount on order, got %q/%q", o.CouponCode(), o.AppliedDiscountID())
	}
	if !strings.HasPrefix(o.ID(), "ORDER_20260715120000_") {
		t.Errorf("unexpected id %q", o.ID())
	}
	if len(f.coupons.redeemed) != 1 || f.coupons.redeemed[0].OrderID != o.ID() ||
		!f.coupons.redeemed[0].Discount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("unexpected redemption %+v", f.coupons.redeemed)
	}
	if f.discounts.used["d1"] != o.ID() {
		t.Errorf("expected discount consumed by %s", o.ID())
	}
	if len(f.metrics.events) != 1 || f.metrics.events[0] != metrics.OrderCreated {
		t.Errorf("unexpected events %v", f.metrics.events)
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"invalid coupon", CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}, CouponCode: "BAD"}, domain.ErrCouponInvalid},
		{"missing course", CreateRequest{UserID: "u1", CourseIDs: []string{"c1", "zz"}}, domain.ErrNotFound},
		{"no user", CreateRequest{CourseIDs: []string{"c1"}}, domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Create(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(f.repo.orders) != 0 {
				t.Error("no order must be stored")
			}
		})
	}

	f := newFixture()
	_, err := f.svc.Create(context.Background(), CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}, CouponCode: "BAD"})
	var rej *domcoupon.RejectionError
	if !errors.As(err, &rej) || rej.Reason != domcoupon.ReasonExpired {
		t.Errorf("expected expired rejection, got %v", err)
	}
}

func TestCreate_DiscountAlreadyUsed(t *testing.T) {
	f := newFixture()
	f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}, AppliedDiscountID: "d1"})
	_, err := f.svc.Create(context.Background(), CreateRequest{UserID: "u1", CourseIDs: []string{"c2"}, AppliedDiscountID: "d1"})
	if !errors.Is(err, domain.ErrDiscountUnavailable) {
		t.Fatalf("expected ErrDiscountUnavailable, got %v", err)
	}
}

func TestProcessPayment_Success(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1", "c2"}})

	paid, err := f.svc.ProcessPayment(context.Background(), o.ID(), PaymentResult{Method: "alipay", Success: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid.Status() != domorder.StatusPaid || paid.PaymentStatus() != domorder.PaymentPaid || paid.PaidAt() == nil {
		t.Errorf("expected paid order, got %s/%s", paid.Status(), paid.PaymentStatus())
	}
	if paid.PaymentMethod() != "alipay" {
		t.Errorf("expected method alipay, got %q", paid.PaymentMethod())
	}
	if len(f.courses.sold) != 2 {
		t.Errorf("expected 2 courses recorded as sold, got %v", f.courses.sold)
	}
	if f.metrics.revenue != 1500 {
		t.Errorf("expected revenue 1500, got %v", f.metrics.revenue)
	}

	if _, err := f.svc.ProcessPayment(context.Background(), o.ID(), PaymentResult{Success: true}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected double payment to fail, got %v", err)
	}
}

func TestProcessPayment_DropsUserQuotes(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}})
	f.cache.data["price:quote:u1:c1:"] = []byte("{}")
	f.cache.data["price:quote:u2:c1:"] = []byte("{}")

	if _, err := f.svc.ProcessPayment(context.Background(), o.ID(), PaymentResult{Method: "card", Success: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.cache.data["price:quote:u1:c1:"]; ok {
		t.Error("expected the buyer's quotes to be dropped")
	}
	if _, ok := f.cache.data["price:quote:u2:c1:"]; !ok {
		t.Error("expected other users' quotes to stay")
	}
}

func TestProcessPayment_Failure(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}})

	failed, err := f.svc.ProcessPayment(context.Background(), o.ID(), PaymentResult{Success: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failed.Status() != domorder.StatusPending || failed.PaymentStatus() != domorder.PaymentFailed {
		t.Errorf("expected pending/failed, got %s/%s", failed.Status(), failed.PaymentStatus())
	}
	if len(f.courses.sold) != 0 {
		t.Error("failed payment must not count sales")
	}
	if f.metrics.events[len(f.metrics.events)-1] != metrics.OrderFailed {
		t.Errorf("unexpected events %v", f.metrics.events)
	}

	// Retry succeeds.
	if _, err := f.svc.ProcessPayment(context.Background(), o.ID(), PaymentResult{Success: true}); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestCancel_ReleasesCouponAndDiscount(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}, CouponCode: "SAVE50", AppliedDiscountID: "d1"})

	cancelled, err := f.svc.Cancel(context.Background(), o.ID(), " changed my mind ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status() != domorder.StatusCancelled || cancelled.State().CancelReason != "changed my mind" {
		t.Errorf("unexpected cancelled order %+v", cancelled.State())
	}
	if len(f.coupons.released) != 1 || len(f.discounts.released) != 1 {
		t.Errorf("expected coupon and discount released, got %v / %v", f.coupons.released, f.discounts.released)
	}
	if _, err := f.svc.Cancel(context.Background(), o.ID(), "again"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRefund(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}})
	if _, err := f.svc.Refund(context.Background(), o.ID()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected unpaid refund to fail, got %v", err)
	}
	if _, err := f.svc.ProcessPayment(context.Background(), o.ID(), PaymentResult{Success: true}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	refunded, err := f.svc.Refund(context.Background(), o.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refunded.Status() != domorder.StatusRefunded || refunded.PaymentStatus() != domorder.PaymentRefunded {
		t.Errorf("unexpected refund state %s/%s", refunded.Status(), refunded.PaymentStatus())
	}
}

func TestUpdateStatus_CancelReleases(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}, CouponCode: "SAVE50"})

	confirmed := domorder.StatusConfirmed
	if _, err := f.svc.UpdateStatus(context.Background(), o.ID(), domorder.StatusUpdate{Status: &confirmed}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(f.coupons.released) != 0 {
		t.Fatal("confirming must not release the coupon")
	}
	cancelled := domorder.StatusCancelled
	if _, err := f.svc.UpdateStatus(context.Background(), o.ID(), domorder.StatusUpdate{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(f.coupons.released) != 1 {
		t.Errorf("expected coupon released, got %v", f.coupons.released)
	}
}

func TestSweepExpired(t *testing.T) {
	f := newFixture()
	stale := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}})
	f.svc.now = func() time.Time { return testNow.Add(20 * time.Minute) }
	fresh := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c2"}})

	f.svc.now = func() time.Time { return testNow.Add(40 * time.Minute) }
	n, err := f.svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cancelled, got %d", n)
	}
	got := f.repo.orders[stale.ID()]
	if got.Status() != domorder.StatusCancelled || got.State().CancelReason != domorder.CancelReasonPaymentTimeout {
		t.Errorf("expected payment_timeout cancellation, got %s %q", got.Status(), got.State().CancelReason)
	}
	if f.repo.orders[fresh.ID()].Status() != domorder.StatusPending {
		t.Error("fresh order must stay pending")
	}
	if f.metrics.events[len(f.metrics.events)-1] != metrics.OrderExpired {
		t.Errorf("expected expired event, got %v", f.metrics.events)
	}
}

func TestGetAndList_Cached(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}})

	if _, err := f.svc.Get(context.Background(), o.ID()); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := f.cache.data[detailKey(o.ID())]; !ok {
		t.Error("expected order cached")
	}

	for range 2 {
		orders, total, err := f.svc.ListForUser(context.Background(), domorder.Filter{UserID: "u1"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 1 || len(orders) != 1 {
			t.Fatalf("expected one order, got %d/%d", len(orders), total)
		}
	}
	if f.repo.lists != 1 {
		t.Errorf("expected one repo listing, got %d", f.repo.lists)
	}

	f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c2"}})
	if _, ok := f.cache.data[userKey("u1", domorder.Filter{UserID: "u1"}.Normalize())]; ok {
		t.Error("expected user listings invalidated by a new order")
	}
	_, total, _ := f.svc.ListForUser(context.Background(), domorder.Filter{UserID: "u1"})
	if total != 2 {
		t.Errorf("expected 2 orders after invalidation, got %d", total)
	}
}

func TestListForUser_Validation(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.ListForUser(context.Background(), domorder.Filter{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for missing user, got %v", err)
	}
	if _, _, err := f.svc.ListForUser(context.Background(), domorder.Filter{UserID: "u1", Status: "lost"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for bad status, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Statistics(context.Background(), testNow, testNow.Add(-time.Hour), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for inverted range, got %v", err)
	}
	if _, err := f.svc.Statistics(context.Background(), time.Time{}, time.Time{}, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRevenueTrendAndPopular(t *testing.T) {
	f := newFixture()
	pts, err := f.svc.RevenueTrend(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts[0].Date != "2026-07-09" {
		t.Errorf("expected trend to start 6 days back, got %s", pts[0].Date)
	}
	popular, err := f.svc.PopularCourses(context.Background(), 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(popular) != maxPopularLen {
		t.Errorf("expected limit clamped to %d, got %d", maxPopularLen, len(popular))
	}
}

func TestAgentView(t *testing.T) {
	f := newFixture()
	o := f.create(t, CreateRequest{UserID: "u1", CourseIDs: []string{"c1"}, CouponCode: "SAVE50", AppliedDiscountID: "d1"})

	text, err := f.svc.AgentView(context.Background(), o.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{o.ID(), "Status: pending", "Course c1", "Agent discount: -100.00", "Coupon SAVE50: -50.00", "Amount to pay: 850.00", "15% saved"} {
		if !strings.Contains(text, want) {
			t.Errorf("view missing %q:\n%s", want, text)
		}
	}
}
