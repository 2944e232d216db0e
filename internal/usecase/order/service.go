package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	"github.com/coursedesk/offerd/internal/metrics"
	"github.com/coursedesk/offerd/internal/usecase/coupon"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

const (
	sweepBatch        = 500
	defaultTrendDays  = 30
	maxTrendDays      = 365
	defaultPopularLen = 10
	maxPopularLen     = 50
)

// Service runs the order lifecycle.
type Service struct {
	repo      Repository
	tx        TxManager
	pricer    Pricer
	coupons   Coupons
	discounts Discounts
	courses   Courses
	cache     Cache
	ttl       time.Duration
	timeout   time.Duration
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Repo      Repository
	Tx        TxManager
	Pricer    Pricer
	Coupons   Coupons
	Discounts Discounts
	Courses   Courses
	Cache     Cache
	Metrics   Metrics
	Logger    *zap.Logger
}

// New creates an order service. Pending orders older than paymentTimeout are swept.
func New(d Deps, ttl, paymentTimeout time.Duration) *Service {
	return &Service{
		repo:      d.Repo,
		tx:        d.Tx,
		pricer:    d.Pricer,
		coupons:   d.Coupons,
		discounts: d.Discounts,
		courses:   d.Courses,
		cache:     d.Cache,
		ttl:       ttl,
		timeout:   paymentTimeout,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       time.Now,
	}
}

func detailKey(id string) string { return "order:detail:" + id }

func userKey(userID string, f domorder.Filter) string {
	return fmt.Sprintf("order:user:%s:%s:%d:%d", userID, f.Status, f.Limit, f.Offset)
}

func (s *Service) invalidate(ctx context.Context, o domorder.Order) {
	s.cache.Delete(ctx, detailKey(o.ID()))
	s.cache.DeletePattern(ctx, "order:user:"+o.UserID()+":*")
	s.cache.DeletePattern(ctx, "order:stats:*")
	s.cache.DeletePattern(ctx, pricing.UserQuotes(o.UserID()))
}

// CreateRequest describes a new order.
type CreateRequest struct {
	UserID            string
	CourseIDs         []string
	CouponCode        string
	AppliedDiscountID string
	PaymentMethod     string
	Notes             string
}

// Create prices the courses, stores a pending order and consumes the coupon
// and applied discount, all in one transaction.
func (s *Service) Create(ctx context.Context, r CreateRequest) (domorder.Order, error) {
	if strings.TrimSpace(r.UserID) == "" {
		return domorder.Order{}, domain.Invalid("user_id", "is required")
	}
	var created domorder.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		calc, err := s.pricer.Calculate(ctx, pricing.Request{
			UserID:            r.UserID,
			CourseIDs:         r.CourseIDs,
			CouponCode:        r.CouponCode,
			AppliedDiscountID: r.AppliedDiscountID,
		})
		if err != nil {
			return fmt.Errorf("price order: %w", err)
		}
		if len(calc.MissingCourseIDs) > 0 {
			return fmt.Errorf("courses %s: %w", strings.Join(calc.MissingCourseIDs, ","), domain.ErrNotFound)
		}
		if c := calc.Coupon; c != nil && !c.Valid {
			return &domcoupon.RejectionError{Code: c.Code, Reason: domcoupon.Reason(c.Reason), Detail: strings.Join(c.Errors, "; ")}
		}

		draft := domorder.Draft{
			UserID:         r.UserID,
			Items:          calc.Items,
			DiscountAmount: calc.DiscountAmount,
			CouponDiscount: calc.CouponDiscount,
			PaymentMethod:  r.PaymentMethod,
			Notes:          r.Notes,
		}
		if calc.Discount != nil {
			draft.AppliedDiscountID = calc.Discount.ID
		}
		redeem := calc.Coupon != nil && calc.CouponDiscount.IsPositive()
		if redeem {
			draft.CouponCode = calc.Coupon.Code
		}
		o, err := domorder.New(draft, s.now().UTC())
		if err != nil {
			return fmt.Errorf("validate order: %w", err)
		}
		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if redeem {
			_, err := s.coupons.Redeem(ctx, coupon.Redemption{
				Code:      calc.Coupon.Code,
				UserID:    r.UserID,
				OrderID:   o.ID(),
				CourseIDs: o.CourseIDs(),
				Amount:    calc.OriginalAmount,
				Lines:     domorder.Lines(calc.Items),
				Discount:  calc.CouponDiscount,
			})
			if err != nil {
				return err
			}
		}
		if draft.AppliedDiscountID != "" {
			if _, err := s.discounts.MarkUsed(ctx, draft.AppliedDiscountID, r.UserID, o.ID()); err != nil {
				return err
			}
		}
		created = o
		return nil
	})
	if err != nil {
		return domorder.Order{}, err
	}

	s.invalidate(ctx, created)
	s.metrics.Order(metrics.OrderCreated)
	s.logger.Info("Order created",
		zap.String("order_id", created.ID()),
		zap.String("user_id", created.UserID()),
		zap.Int("courses", created.TotalCourses()),
		zap.String("final_amount", created.FinalAmount().StringFixed(2)))
	return created, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, id string) (domorder.Order, error) {
	var st domorder.State
	if s.cache.Get(ctx, detailKey(id), &st) {
		return domorder.Reconstruct(st), nil
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domorder.Order{}, fmt.Errorf("get order: %w", err)
	}
	s.cache.Set(ctx, detailKey(id), o.State(), s.ttl)
	return o, nil
}

type cachedPage struct {
	Orders []domorder.State `json:"orders"`
	Total  int64            `json:"total"`
}

// ListForUser pages through a user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, f domorder.Filter) ([]domorder.Order, int64, error) {
	if f.UserID == "" {
		return nil, 0, domain.Invalid("user_id", "is required")
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, domain.Invalid("status", "unknown status %q", f.Status)
	}
	f = f.Normalize()
	key := userKey(f.UserID, f)

	var page cachedPage
	if s.cache.Get(ctx, key, &page) {
		out := make([]domorder.Order, len(page.Orders))
		for i, st := range page.Orders {
			out[i] = domorder.Reconstruct(st)
		}
		return out, page.Total, nil
	}
	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	page = cachedPage{Orders: make([]domorder.State, len(orders)), Total: total}
	for i, o := range orders {
		page.Orders[i] = o.State()
	}
	s.cache.Set(ctx, key, page, s.ttl)
	return orders, total, nil
}

// PaymentResult is the outcome reported by the payment provider.
type PaymentResult struct {
	Method  string
	Success bool
}

// ProcessPayment records a payment attempt. A successful payment marks the
// order paid and counts the sold courses; a failure leaves it pending.
func (s *Service) ProcessPayment(ctx context.Context, id string, p PaymentResult) (domorder.Order, error) {
	var updated domorder.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		now := s.now().UTC()
		if p.Success {
			updated, err = o.MarkPaid(p.Method, now)
		} else {
			updated, err = o.MarkPaymentFailed(now)
		}
		if err != nil {
			return fmt.Errorf("process payment: %w", err)
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if p.Success {
			if err := s.courses.RecordSales(ctx, updated.CourseIDs()); err != nil {
				return fmt.Errorf("record sales: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domorder.Order{}, err
	}

	s.invalidate(ctx, updated)
	if p.Success {
		amount, _ := updated.FinalAmount().Float64()
		s.metrics.Order(metrics.OrderPaid)
		s.metrics.Revenue(amount)
		s.logger.Info("Payment processed",
			zap.String("order_id", id),
			zap.String("method", updated.PaymentMethod()),
			zap.String("amount", updated.FinalAmount().StringFixed(2)))
	} else {
		s.metrics.Order(metrics.OrderFailed)
		s.logger.Warn("Payment failed", zap.String("order_id", id))
	}
	return updated, nil
}

// Cancel cancels a pending or confirmed order and releases its coupon and discount.
func (s *Service) Cancel(ctx context.Context, id, reason string) (domorder.Order, error) {
	return s.cancel(ctx, id, reason, metrics.OrderCancelled)
}

func (s *Service) cancel(ctx context.Context, id, reason, event string) (domorder.Order, error) {
	var updated domorder.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if updated, err = o.Cancel(reason, s.now().UTC()); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return s.release(ctx, id)
	})
	if err != nil {
		return domorder.Order{}, err
	}
	s.invalidate(ctx, updated)
	s.metrics.Order(event)
	s.logger.Info("Order cancelled", zap.String("order_id", id), zap.String("reason", updated.State().CancelReason))
	return updated, nil
}

func (s *Service) release(ctx context.Context, orderID string) error {
	if err := s.coupons.Release(ctx, orderID); err != nil {
		return err
	}
	return s.discounts.Release(ctx, orderID)
}

// Refund reverts a paid order.
func (s *Service) Refund(ctx context.Context, id string) (domorder.Order, error) {
	var updated domorder.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if updated, err = o.Refund(s.now().UTC()); err != nil {
			return fmt.Errorf("refund order: %w", err)
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return domorder.Order{}, err
	}
	s.invalidate(ctx, updated)
	s.metrics.Order(metrics.OrderRefunded)
	s.logger.Info("Order refunded", zap.String("order_id", id))
	return updated, nil
}

// UpdateStatus applies a generic status change. Cancelling this way also releases the coupon and discount.
func (s *Service) UpdateStatus(ctx context.Context, id string, u domorder.StatusUpdate) (domorder.Order, error) {
	var updated domorder.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if updated, err = o.Apply(u, s.now().UTC()); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if err := s.repo.Update(ctx, updated); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if updated.Status() == domorder.StatusCancelled && o.Status() != domorder.StatusCancelled {
			return s.release(ctx, id)
		}
		return nil
	})
	if err != nil {
		return domorder.Order{}, err
	}
	s.invalidate(ctx, updated)
	return updated, nil
}

// PendingExpired lists pending orders whose payment window has passed.
func (s *Service) PendingExpired(ctx context.Context) ([]domorder.Order, error) {
	orders, err := s.repo.PendingOlderThan(ctx, s.now().UTC().Add(-s.timeout), sweepBatch)
	if err != nil {
		return nil, fmt.Errorf("pending orders: %w", err)
	}
	return orders, nil
}

// SweepExpired cancels timed-out pending orders and returns how many were cancelled.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.PendingExpired(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range expired {
		_, err := s.cancel(ctx, o.ID(), domorder.CancelReasonPaymentTimeout, metrics.OrderExpired)
		switch {
		case err == nil:
			n++
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
			// Paid or cancelled concurrently.
		default:
			return n, err
		}
	}
	if n > 0 {
		s.logger.Info("Expired orders cancelled", zap.Int("count", n))
	}
	return n, nil
}

// Statistics aggregates orders created in [from, to). Zero bounds default to the last 30 days.
func (s *Service) Statistics(ctx context.Context, from, to time.Time, userID string) (domorder.Statistics, error) {
	if to.IsZero() {
		to = s.now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultTrendDays)
	}
	if !from.Before(to) {
		return domorder.Statistics{}, domain.Invalid("from", "must be before to")
	}
	key := fmt.Sprintf("order:stats:%d:%d:%s", from.Unix(), to.Unix(), userID)
	var st domorder.Statistics
	if s.cache.Get(ctx, key, &st) {
		return st, nil
	}
	st, err := s.repo.Statistics(ctx, from, to, userID)
	if err != nil {
		return domorder.Statistics{}, fmt.Errorf("order statistics: %w", err)
	}
	s.cache.Set(ctx, key, st, s.ttl)
	return st, nil
}

// RevenueTrend returns paid revenue per day for the last days, oldest first.
func (s *Service) RevenueTrend(ctx context.Context, days int, userID string) ([]domorder.RevenuePoint, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	pts, err := s.repo.RevenueByDay(ctx, today.AddDate(0, 0, -(days-1)), now, userID)
	if err != nil {
		return nil, fmt.Errorf("revenue trend: %w", err)
	}
	return pts, nil
}

// PopularCourses ranks courses by paid sales over the last days.
func (s *Service) PopularCourses(ctx context.Context, days, limit int) ([]domorder.CourseSales, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	if limit <= 0 {
		limit = defaultPopularLen
	}
	if limit > maxPopularLen {
		limit = maxPopularLen
	}
	cs, err := s.repo.PopularCourses(ctx, s.now().UTC().AddDate(0, 0, -days), limit)
	if err != nil {
		return nil, fmt.Errorf("popular courses: %w", err)
	}
	return cs, nil
}

// PaidCount counts a user's paid orders.
func (s *Service) PaidCount(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.PaidCount(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count paid orders: %w", err)
	}
	return n, nil
}

// AgentView renders an order as text for the agent.
func (s *Service) AgentView(ctx context.Context, id string) (string, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return Describe(o), nil
}

// Describe summarizes an order in plain text.
func Describe(o domorder.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n", o.ID())
	fmt.Fprintf(&b, "Status: %s, payment: %s\n", o.Status(), o.PaymentStatus())
	b.WriteString("Courses:\n")
	for _, it := range o.Items() {
		fmt.Fprintf(&b, "- %s: %s (was %s)\n", it.CourseName,
			it.SubtotalDiscounted().StringFixed(2), it.SubtotalOriginal().StringFixed(2))
	}
	fmt.Fprintf(&b, "Original amount: %s\n", o.OriginalAmount().StringFixed(2))
	if o.DiscountAmount().IsPositive() {
		fmt.Fprintf(&b, "Agent discount: -%s\n", o.DiscountAmount().StringFixed(2))
	}
	if o.CouponDiscount().IsPositive() {
		fmt.Fprintf(&b, "Coupon %s: -%s\n", o.CouponCode(), o.CouponDiscount().StringFixed(2))
	}
	fmt.Fprintf(&b, "Amount to pay: %s", o.FinalAmount().StringFixed(2))
	if pct := o.DiscountPercentage(); pct.IsPositive() {
		fmt.Fprintf(&b, " (%s%% saved)", pct.Mul(decimal.NewFromInt(100)).StringFixed(0))
	}
	b.WriteString("\n")
	if paid := o.PaidAt(); paid != nil {
		fmt.Fprintf(&b, "Paid at: %s\n", paid.Format(time.RFC3339))
	}
	return b.String()
}
