package order

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

var now = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func items() []Item {
	return []Item{
		NewItem("c1", "Python basics", d("100")),
		NewItem("c2", "Pandas", d("200")),
	}
}

func pending(t *testing.T) Order {
	t.Helper()
	o, err := New(Draft{
		UserID:         "u1",
		Items:          items(),
		DiscountAmount: d("30"),
		CouponDiscount: d("20"),
		CouponCode:     "SPRING",
	}, now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestNewID_Format(t *testing.T) {
	id := NewID(now)
	if !regexp.MustCompile(`^ORDER_20260314150926_[0-9A-F]{8}$`).MatchString(id) {
		t.Errorf("unexpected id %q", id)
	}
}

func TestNew_Amounts(t *testing.T) {
	o := pending(t)
	if !o.OriginalAmount().Equal(d("300")) {
		t.Errorf("expected original 300, got %s", o.OriginalAmount())
	}
	if !o.FinalAmount().Equal(d("250")) {
		t.Errorf("expected final 250, got %s", o.FinalAmount())
	}
	if o.Status() != StatusPending || o.PaymentStatus() != PaymentPending {
		t.Errorf("expected pending/pending, got %s/%s", o.Status(), o.PaymentStatus())
	}
	if o.TotalCourses() != 2 {
		t.Errorf("expected 2 courses, got %d", o.TotalCourses())
	}
	if !o.TotalDiscount().Equal(d("50")) {
		t.Errorf("expected total discount 50, got %s", o.TotalDiscount())
	}
	if !o.DiscountPercentage().Equal(d("0.1667")) {
		t.Errorf("expected 0.1667, got %s", o.DiscountPercentage())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		field string
	}{
		{"no user", Draft{Items: items()}, "user_id"},
		{"no items", Draft{UserID: "u1"}, "items"},
		{"negative final", Draft{UserID: "u1", Items: items(), DiscountAmount: d("301")}, "final_amount"},
		{"bad item", Draft{UserID: "u1", Items: []Item{{CourseID: "c1", OriginalPrice: d("1"), DiscountedPrice: d("2"), Quantity: 1}}}, "items.discounted_price"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.draft, now)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("expected validation error on %q, got %v", tc.field, err)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusPaid, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusPaid, StatusRefunded, true},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusRefunded, StatusPaid, false},
		{StatusPending, StatusRefunded, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestPaymentTransitions(t *testing.T) {
	if !PaymentFailed.CanTransitionTo(PaymentPaid) || !PaymentFailed.CanTransitionTo(PaymentPending) {
		t.Error("failed payments must be retryable")
	}
	if PaymentRefunded.CanTransitionTo(PaymentPaid) {
		t.Error("refunded is terminal")
	}
	if !PaymentPaid.CanTransitionTo(PaymentPartialRefunded) {
		t.Error("paid must allow partial refund")
	}
}

func TestMarkPaid(t *testing.T) {
	paid, err := pending(t).MarkPaid("wechat", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status() != StatusPaid || !paid.IsPaid() {
		t.Errorf("expected paid, got %s/%s", paid.Status(), paid.PaymentStatus())
	}
	if paid.PaymentMethod() != "wechat" || paid.PaidAt() == nil {
		t.Errorf("expected method and paid time, got %q %v", paid.PaymentMethod(), paid.PaidAt())
	}
	if _, err := paid.MarkPaid("card", now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected invalid transition on double payment, got %v", err)
	}
}

func TestMarkPaymentFailed_ThenRetry(t *testing.T) {
	failed, err := pending(t).MarkPaymentFailed(now)
	if err != nil {
		t.Fatalf("MarkPaymentFailed: %v", err)
	}
	if failed.Status() != StatusPending || failed.PaymentStatus() != PaymentFailed {
		t.Fatalf("expected pending/failed, got %s/%s", failed.Status(), failed.PaymentStatus())
	}
	if _, err := failed.MarkPaid("card", now); err != nil {
		t.Errorf("retry after failure must succeed: %v", err)
	}
}

func TestCancel(t *testing.T) {
	c, err := pending(t).Cancel(" changed mind ", now)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if c.Status() != StatusCancelled || c.State().CancelReason != "changed mind" {
		t.Errorf("unexpected cancelled order %+v", c.State())
	}
	if _, err := c.Cancel("again", now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected invalid transition, got %v", err)
	}

	paid, _ := pending(t).MarkPaid("card", now)
	_, err = paid.Cancel("late", now)
	var te *domain.TransitionError
	if !errors.As(err, &te) || te.From != "paid" || te.To != "cancelled" {
		t.Errorf("expected transition error paid->cancelled, got %v", err)
	}
}

func TestRefund(t *testing.T) {
	if _, err := pending(t).Refund(now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("pending order cannot be refunded, got %v", err)
	}
	paid, _ := pending(t).MarkPaid("card", now)
	r, err := paid.Refund(now)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if r.Status() != StatusRefunded || r.PaymentStatus() != PaymentRefunded {
		t.Errorf("expected refunded/refunded, got %s/%s", r.Status(), r.PaymentStatus())
	}
}

func TestApply_StatusUpdate(t *testing.T) {
	confirmed := StatusConfirmed
	o, err := pending(t).Apply(StatusUpdate{Status: &confirmed}, now)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if o.Status() != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", o.Status())
	}

	refunded := PaymentRefunded
	if _, err := o.Apply(StatusUpdate{PaymentStatus: &refunded}, now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected invalid payment transition, got %v", err)
	}
	bogus := Status("shipped")
	if _, err := o.Apply(StatusUpdate{Status: &bogus}, now); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAllocate(t *testing.T) {
	got := Allocate(items(), d("50"))
	total := decimal.Zero
	for _, it := range got {
		total = total.Add(it.SubtotalDiscounted())
	}
	if !total.Equal(d("250")) {
		t.Errorf("expected discounted subtotals to add to 250, got %s", total)
	}
	if !got[0].DiscountedPrice.Equal(d("83.33")) {
		t.Errorf("expected first line 83.33, got %s", got[0].DiscountedPrice)
	}
	if !got[1].DiscountedPrice.Equal(d("166.67")) {
		t.Errorf("expected last line to absorb remainder, got %s", got[1].DiscountedPrice)
	}
	if !items()[0].DiscountedPrice.Equal(d("100")) {
		t.Error("input must not be modified")
	}
}

func TestCombine_LinesAddUpToFinal(t *testing.T) {
	tests := []struct {
		name   string
		prices []string
		total  string
	}{
		{"small last line", []string{"3.28", "2130.67", "1925.93", "0.01"}, "3631.13"},
		{"cent-level final", []string{"4.82", "4.84", "4.5", "2.54"}, "16.68"},
		{"single line", []string{"999.99"}, "333.33"},
		{"whole base", []string{"10", "20", "30"}, "60"},
		{"thirds", []string{"1", "1", "1"}, "1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var in []Item
			for i, p := range tc.prices {
				in = append(in, NewItem(fmt.Sprintf("c%d", i), "course", d(p)))
			}
			calc := Combine(in, d(tc.total), decimal.Zero)
			assertLinesMatchFinal(t, calc)
		})
	}
}

func TestCombine_LinesAddUpToFinalRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 5000; n++ {
		var in []Item
		base := decimal.Zero
		for i := 0; i < 1+rng.Intn(5); i++ {
			price := decimal.New(int64(1+rng.Intn(300000)), -2)
			in = append(in, NewItem(fmt.Sprintf("c%d", i), "course", price))
			base = base.Add(price)
		}
		total := decimal.New(rng.Int63n(base.Shift(2).IntPart()+1), -2)
		assertLinesMatchFinal(t, Combine(in, total, decimal.Zero))
	}
}

func assertLinesMatchFinal(t *testing.T, calc PriceCalculation) {
	t.Helper()
	sum := decimal.Zero
	for _, it := range calc.Items {
		if it.DiscountedPrice.IsNegative() || it.DiscountedPrice.GreaterThan(it.OriginalPrice) {
			t.Fatalf("line %s out of range: %s of %s", it.CourseID, it.DiscountedPrice, it.OriginalPrice)
		}
		sum = sum.Add(it.SubtotalDiscounted())
	}
	if !sum.Equal(calc.FinalAmount) {
		t.Fatalf("discounted lines add to %s, final is %s", sum, calc.FinalAmount)
	}
}

func TestCombine_CapsCouponFirst(t *testing.T) {
	calc := Combine(items(), d("250"), d("100"))
	if !calc.DiscountAmount.Equal(d("250")) {
		t.Errorf("agent discount must be kept, got %s", calc.DiscountAmount)
	}
	if !calc.CouponDiscount.Equal(d("50")) {
		t.Errorf("coupon must shrink to 50, got %s", calc.CouponDiscount)
	}
	if !calc.FinalAmount.IsZero() {
		t.Errorf("expected zero final, got %s", calc.FinalAmount)
	}
	if !calc.SavingsPercentage.Equal(d("1")) {
		t.Errorf("expected savings percentage 1, got %s", calc.SavingsPercentage)
	}
}

func TestStatistics_Finalize(t *testing.T) {
	s := Statistics{TotalOrders: 4, PaidOrders: 3, Revenue: d("100")}.Finalize()
	if !s.AverageOrderValue.Equal(d("33.33")) {
		t.Errorf("expected 33.33, got %s", s.AverageOrderValue)
	}
	if !s.ConversionRate.Equal(d("0.75")) {
		t.Errorf("expected 0.75, got %s", s.ConversionRate)
	}
	empty := Statistics{}.Finalize()
	if !empty.AverageOrderValue.IsZero() || !empty.ConversionRate.IsZero() {
		t.Errorf("expected zeros, got %+v", empty)
	}
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Limit: 500, Offset: -3}.Normalize()
	if f.Limit != 100 || f.Offset != 0 {
		t.Errorf("unexpected filter %+v", f)
	}
	if (Filter{}).Normalize().Limit != 20 {
		t.Error("expected default limit 20")
	}
}
