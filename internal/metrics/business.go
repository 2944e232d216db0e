package metrics

import "github.com/prometheus/client_golang/prometheus"

// Business Prometheus metrics.
var (
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offerd",
			Name:      "cache_requests_total",
			Help:      "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"}, // result: "hit" / "miss"
	)

	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offerd",
			Name:      "orders_total",
			Help:      "Order lifecycle events",
		},
		[]string{"event"},
	)

	CouponRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offerd",
			Name:      "coupon_redemptions_total",
			Help:      "Coupon redemption attempts by result",
		},
		[]string{"result"},
	)

	DiscountsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offerd",
			Name:      "discounts_applied_total",
			Help:      "Discounts granted by the agent per catalog option",
		},
		[]string{"option"},
	)

	OrderRevenueTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "offerd",
			Name:      "order_revenue_total",
			Help:      "Sum of final amounts of paid orders",
		},
	)
)

// Order events.
const (
	OrderCreated   = "created"
	OrderPaid      = "paid"
	OrderFailed    = "payment_failed"
	OrderCancelled = "cancelled"
	OrderRefunded  = "refunded"
	OrderExpired   = "expired"
)

var businessMetricsRegistered bool

// RegisterBusinessMetrics registers the business metrics. Must be called once from main.
func RegisterBusinessMetrics() {
	if businessMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(OrdersTotal)
	prometheus.MustRegister(CouponRedemptionsTotal)
	prometheus.MustRegister(DiscountsAppliedTotal)
	prometheus.MustRegister(OrderRevenueTotal)
	businessMetricsRegistered = true
}

// Recorder forwards service events to the business metrics.
type Recorder struct{}

// Order counts an order lifecycle event.
func (Recorder) Order(event string) { OrdersTotal.WithLabelValues(event).Inc() }

// Revenue adds a paid amount.
func (Recorder) Revenue(amount float64) { OrderRevenueTotal.Add(amount) }

// CouponRedemption counts a redemption attempt.
func (Recorder) CouponRedemption(result string) {
	CouponRedemptionsTotal.WithLabelValues(result).Inc()
}

// DiscountApplied counts a granted discount.
func (Recorder) DiscountApplied(option string) {
	DiscountsAppliedTotal.WithLabelValues(option).Inc()
}
