package order

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

const maxNotesLen = 1000

// CancelReasonPaymentTimeout marks orders cancelled by the sweeper.
const CancelReasonPaymentTimeout = "payment_timeout"

// Item is one purchased course.
type Item struct {
	ID              string          `json:"item_id"`
	CourseID        string          `json:"course_id"`
	CourseName      string          `json:"course_name"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Quantity        int             `json:"quantity"`
}

// NewItem creates an undiscounted line for a course.
func NewItem(courseID, courseName string, price decimal.Decimal) Item {
	return Item{
		ID:              "item_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		CourseID:        courseID,
		CourseName:      courseName,
		OriginalPrice:   price,
		DiscountedPrice: price,
		Quantity:        1,
	}
}

// SubtotalOriginal returns the undiscounted line total.
func (i Item) SubtotalOriginal() decimal.Decimal {
	return i.OriginalPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SubtotalDiscounted returns the discounted line total.
func (i Item) SubtotalDiscounted() decimal.Decimal {
	return i.DiscountedPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DiscountAmount returns the discount carried by this line.
func (i Item) DiscountAmount() decimal.Decimal {
	return i.SubtotalOriginal().Sub(i.SubtotalDiscounted())
}

func (i Item) validate() error {
	if i.CourseID == "" {
		return domain.Invalid("items.course_id", "is required")
	}
	if i.Quantity < 1 {
		return domain.Invalid("items.quantity", "must be at least 1")
	}
	if i.OriginalPrice.IsNegative() || i.DiscountedPrice.IsNegative() {
		return domain.Invalid("items.price", "must not be negative")
	}
	if i.DiscountedPrice.GreaterThan(i.OriginalPrice) {
		return domain.Invalid("items.discounted_price", "must not exceed original price")
	}
	return nil
}

// Allocate spreads total across item prices in proportion to their subtotals.
// Shares move in whole-cent unit steps and leftover cents go to the lines with the
// largest rounding remainder, so the discounted subtotals add up to base minus total.
func Allocate(items []Item, total decimal.Decimal) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	base := decimal.Zero
	for _, it := range out {
		base = base.Add(it.SubtotalOriginal())
	}
	if !total.IsPositive() || !base.IsPositive() {
		return out
	}
	total = domain.Round2(domain.MinDecimal(total, base))

	cent := decimal.New(1, -2)
	shares := make([]decimal.Decimal, len(out))
	fracs := make([]decimal.Decimal, len(out))
	remaining := total
	for i := range out {
		step := cent.Mul(decimal.NewFromInt(int64(out[i].Quantity)))
		ideal := total.Mul(out[i].SubtotalOriginal()).Div(base)
		shares[i] = ideal.Div(step).Floor().Mul(step)
		fracs[i] = ideal.Sub(shares[i])
		remaining = remaining.Sub(shares[i])
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fracs[order[a]].GreaterThan(fracs[order[b]])
	})
	for progress := true; remaining.IsPositive() && progress; {
		progress = false
		for _, i := range order {
			step := cent.Mul(decimal.NewFromInt(int64(out[i].Quantity)))
			if step.GreaterThan(remaining) || shares[i].Add(step).GreaterThan(out[i].SubtotalOriginal()) {
				continue
			}
			shares[i] = shares[i].Add(step)
			remaining = remaining.Sub(step)
			progress = true
			if !remaining.IsPositive() {
				break
			}
		}
	}

	for i := range out {
		qty := decimal.NewFromInt(int64(out[i].Quantity))
		out[i].DiscountedPrice = out[i].SubtotalOriginal().Sub(shares[i]).Div(qty).Round(2)
	}
	return out
}

// State is the persisted representation of an order.
type State struct {
	ID                string
	UserID            string
	Items             []Item
	OriginalAmount    decimal.Decimal
	DiscountAmount    decimal.Decimal
	CouponDiscount    decimal.Decimal
	FinalAmount       decimal.Decimal
	AppliedDiscountID string
	CouponCode        string
	Status            Status
	PaymentStatus     PaymentStatus
	PaymentMethod     string
	Notes             string
	CancelReason      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaidAt            *time.Time
}

// Order is a purchase of one or more courses (immutable value object).
type Order struct {
	s State
}

// Draft holds the input for a new order. Amounts come from a price calculation.
type Draft struct {
	UserID            string
	Items             []Item
	DiscountAmount    decimal.Decimal
	CouponDiscount    decimal.Decimal
	AppliedDiscountID string
	CouponCode        string
	PaymentMethod     string
	Notes             string
}

// NewID formats an order identifier: ORDER_<YYYYMMDDHHMMSS>_<8 upper hex>.
func NewID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORDER_%s_%s", now.UTC().Format("20060102150405"), suffix)
}

// New validates a draft and creates a pending order.
func New(d Draft, now time.Time) (Order, error) {
	original := decimal.Zero
	for _, it := range d.Items {
		original = original.Add(it.SubtotalOriginal())
	}
	s := State{
		ID:                NewID(now),
		UserID:            strings.TrimSpace(d.UserID),
		Items:             d.Items,
		OriginalAmount:    original,
		DiscountAmount:    d.DiscountAmount,
		CouponDiscount:    d.CouponDiscount,
		FinalAmount:       original.Sub(d.DiscountAmount).Sub(d.CouponDiscount),
		AppliedDiscountID: d.AppliedDiscountID,
		CouponCode:        d.CouponCode,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		PaymentMethod:     d.PaymentMethod,
		Notes:             d.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validate(s); err != nil {
		return Order{}, err
	}
	return Order{s: s}, nil
}

// Reconstruct creates an Order without validation (storage hydration).
func Reconstruct(s State) Order {
	return Order{s: s}
}

func validate(s State) error {
	if s.UserID == "" {
		return domain.Invalid("user_id", "is required")
	}
	if len(s.Items) == 0 {
		return domain.Invalid("items", "order must contain at least one item")
	}
	for _, it := range s.Items {
		if err := it.validate(); err != nil {
			return err
		}
	}
	if s.DiscountAmount.IsNegative() || s.CouponDiscount.IsNegative() {
		return domain.Invalid("discount_amount", "must not be negative")
	}
	if s.FinalAmount.IsNegative() {
		return domain.Invalid("final_amount", "discounts exceed the original amount")
	}
	if len([]rune(s.Notes)) > maxNotesLen {
		return domain.Invalid("notes", "must be at most %d characters", maxNotesLen)
	}
	return nil
}

// State returns a copy of the persisted representation.
func (o Order) State() State { return o.s }

// ID returns the order identifier.
func (o Order) ID() string { return o.s.ID }

// UserID returns the buyer.
func (o Order) UserID() string { return o.s.UserID }

// Items returns the order lines.
func (o Order) Items() []Item { return o.s.Items }

// OriginalAmount returns the pre-discount total.
func (o Order) OriginalAmount() decimal.Decimal { return o.s.OriginalAmount }

// DiscountAmount returns the agent discount part.
func (o Order) DiscountAmount() decimal.Decimal { return o.s.DiscountAmount }

// CouponDiscount returns the coupon part.
func (o Order) CouponDiscount() decimal.Decimal { return o.s.CouponDiscount }

// FinalAmount returns the amount to pay.
func (o Order) FinalAmount() decimal.Decimal { return o.s.FinalAmount }

// AppliedDiscountID returns the consumed applied discount, if any.
func (o Order) AppliedDiscountID() string { return o.s.AppliedDiscountID }

// CouponCode returns the redeemed coupon code, if any.
func (o Order) CouponCode() string { return o.s.CouponCode }

// Status returns the order status.
func (o Order) Status() Status { return o.s.Status }

// PaymentStatus returns the payment status.
func (o Order) PaymentStatus() PaymentStatus { return o.s.PaymentStatus }

// PaymentMethod returns the payment method.
func (o Order) PaymentMethod() string { return o.s.PaymentMethod }

// CreatedAt returns the creation time.
func (o Order) CreatedAt() time.Time { return o.s.CreatedAt }

// PaidAt returns the payment time, if paid.
func (o Order) PaidAt() *time.Time { return o.s.PaidAt }

// IsPaid reports whether payment succeeded.
func (o Order) IsPaid() bool { return o.s.PaymentStatus == PaymentPaid }

// TotalCourses sums item quantities.
func (o Order) TotalCourses() int {
	n := 0
	for _, it := range o.s.Items {
		n += it.Quantity
	}
	return n
}

// CourseIDs lists the purchased course IDs in item order.
func (o Order) CourseIDs() []string {
	ids := make([]string, len(o.s.Items))
	for i, it := range o.s.Items {
		ids[i] = it.CourseID
	}
	return ids
}

// TotalDiscount returns agent discount plus coupon discount.
func (o Order) TotalDiscount() decimal.Decimal {
	return o.s.DiscountAmount.Add(o.s.CouponDiscount)
}

// DiscountPercentage returns the total discount share of the original amount.
func (o Order) DiscountPercentage() decimal.Decimal {
	return domain.Ratio(o.TotalDiscount(), o.s.OriginalAmount)
}

// Transition moves the order to next, enforcing the status table.
func (o Order) Transition(next Status, now time.Time) (Order, error) {
	if !o.s.Status.CanTransitionTo(next) {
		return Order{}, statusError(o.s.Status, next)
	}
	s := o.s
	s.Status = next
	s.UpdatedAt = now
	return Order{s: s}, nil
}

// MarkPaid records a successful payment.
func (o Order) MarkPaid(method string, now time.Time) (Order, error) {
	if !o.s.PaymentStatus.CanTransitionTo(PaymentPaid) {
		return Order{}, paymentError(o.s.PaymentStatus, PaymentPaid)
	}
	next, err := o.Transition(StatusPaid, now)
	if err != nil {
		return Order{}, err
	}
	s := next.s
	s.PaymentStatus = PaymentPaid
	if method != "" {
		s.PaymentMethod = method
	}
	s.PaidAt = &now
	return Order{s: s}, nil
}

// MarkPaymentFailed records a failed payment. The order stays pending.
func (o Order) MarkPaymentFailed(now time.Time) (Order, error) {
	if o.s.Status.IsTerminal() || o.s.Status == StatusPaid {
		return Order{}, statusError(o.s.Status, o.s.Status)
	}
	if !o.s.PaymentStatus.CanTransitionTo(PaymentFailed) {
		return Order{}, paymentError(o.s.PaymentStatus, PaymentFailed)
	}
	s := o.s
	s.PaymentStatus = PaymentFailed
	s.UpdatedAt = now
	return Order{s: s}, nil
}

// Cancel cancels a pending or confirmed order.
func (o Order) Cancel(reason string, now time.Time) (Order, error) {
	next, err := o.Transition(StatusCancelled, now)
	if err != nil {
		return Order{}, err
	}
	s := next.s
	s.CancelReason = strings.TrimSpace(reason)
	return Order{s: s}, nil
}

// Refund reverts a paid order.
func (o Order) Refund(now time.Time) (Order, error) {
	if !o.s.PaymentStatus.CanTransitionTo(PaymentRefunded) {
		return Order{}, paymentError(o.s.PaymentStatus, PaymentRefunded)
	}
	next, err := o.Transition(StatusRefunded, now)
	if err != nil {
		return Order{}, err
	}
	s := next.s
	s.PaymentStatus = PaymentRefunded
	return Order{s: s}, nil
}

// StatusUpdate is a generic state change request.
type StatusUpdate struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	PaymentMethod *string
	Notes         *string
}

// Apply applies a StatusUpdate, checking both transition tables.
func (o Order) Apply(u StatusUpdate, now time.Time) (Order, error) {
	s := o.s
	if u.Status != nil && *u.Status != s.Status {
		if !u.Status.IsValid() {
			return Order{}, domain.Invalid("order_status", "unknown status %q", *u.Status)
		}
		if !s.Status.CanTransitionTo(*u.Status) {
			return Order{}, statusError(s.Status, *u.Status)
		}
		s.Status = *u.Status
	}
	if u.PaymentStatus != nil && *u.PaymentStatus != s.PaymentStatus {
		if !u.PaymentStatus.IsValid() {
			return Order{}, domain.Invalid("payment_status", "unknown status %q", *u.PaymentStatus)
		}
		if !s.PaymentStatus.CanTransitionTo(*u.PaymentStatus) {
			return Order{}, paymentError(s.PaymentStatus, *u.PaymentStatus)
		}
		s.PaymentStatus = *u.PaymentStatus
		if s.PaymentStatus == PaymentPaid {
			s.PaidAt = &now
		}
	}
	if u.PaymentMethod != nil {
		s.PaymentMethod = *u.PaymentMethod
	}
	if u.Notes != nil {
		s.Notes = *u.Notes
	}
	s.UpdatedAt = now
	if err := validate(s); err != nil {
		return Order{}, err
	}
	return Order{s: s}, nil
}
