package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Order(t *testing.T) {
	before := testutil.ToFloat64(OrdersTotal.WithLabelValues(OrderPaid))
	Recorder{}.Order(OrderPaid)
	if got := testutil.ToFloat64(OrdersTotal.WithLabelValues(OrderPaid)); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestRecorder_Revenue(t *testing.T) {
	before := testutil.ToFloat64(OrderRevenueTotal)
	Recorder{}.Revenue(99.5)
	if got := testutil.ToFloat64(OrderRevenueTotal); got != before+99.5 {
		t.Errorf("expected %v, got %v", before+99.5, got)
	}
}

func TestRecorder_CouponAndDiscount(t *testing.T) {
	Recorder{}.CouponRedemption("rejected")
	Recorder{}.DiscountApplied("new_user")
	if got := testutil.ToFloat64(CouponRedemptionsTotal.WithLabelValues("rejected")); got < 1 {
		t.Errorf("expected coupon counter >= 1, got %v", got)
	}
	if got := testutil.ToFloat64(DiscountsAppliedTotal.WithLabelValues("new_user")); got < 1 {
		t.Errorf("expected discount counter >= 1, got %v", got)
	}
}

func TestRegisterBusinessMetrics_Idempotent(t *testing.T) {
	RegisterBusinessMetrics()
	RegisterBusinessMetrics()
	if !businessMetricsRegistered {
		t.Error("expected metrics to be registered")
	}
}
