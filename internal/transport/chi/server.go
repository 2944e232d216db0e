package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	"github.com/coursedesk/offerd/internal/logger"
	healthuc "github.com/coursedesk/offerd/internal/usecase/health"
)

// APIPrefix is the mount point of the versioned API.
const APIPrefix = "/api/v1"

// Services bundles the use cases exposed over HTTP.
type Services struct {
	Courses   CourseService
	Coupons   CouponService
	Discounts DiscountService
	Pricing   PricingService
	Orders    OrderService
	Profiles  ProfileService
	Agent     AgentService
	Health    HealthService
}

// Server is the HTTP API.
type Server struct {
	courses   CourseService
	coupons   CouponService
	discounts DiscountService
	pricing   PricingService
	orders    OrderService
	profiles  ProfileService
	agent     AgentService
	health    HealthService
}

// NewServer creates an HTTP API server.
func NewServer(s Services) *Server {
	return &Server{
		courses:   s.Courses,
		coupons:   s.Coupons,
		discounts: s.Discounts,
		pricing:   s.Pricing,
		orders:    s.Orders,
		profiles:  s.Profiles,
		agent:     s.Agent,
		health:    s.Health,
	}
}

// Register mounts all routes on r.
func (s *Server) Register(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(APIPrefix, func(r gochi.Router) {
		r.Route("/courses", func(r gochi.Router) {
			r.Get("/", s.SearchCourses)
			r.Post("/", s.CreateCourse)
			r.Get("/popular", s.PopularCourses)
			r.Get("/categories", s.CourseCategories)
			r.Get("/price-range", s.CoursePriceRange)
			r.Get("/{id}", s.GetCourse)
			r.Patch("/{id}", s.UpdateCourse)
			r.Get("/{id}/agent", s.CourseAgentView)
		})

		r.Route("/discounts", func(r gochi.Router) {
			r.Get("/options", s.DiscountOptions)
			r.Get("/guidance", s.DiscountGuidance)
			r.Get("/stats", s.DiscountStats)
			r.Post("/apply", s.ApplyDiscount)
			r.Get("/{id}", s.GetDiscount)
		})

		r.Route("/coupons", func(r gochi.Router) {
			r.Get("/", s.ListCoupons)
			r.Post("/", s.CreateCoupon)
			r.Get("/expiring", s.ExpiringCoupons)
			r.Post("/validate", s.ValidateCoupon)
			r.Get("/{code}", s.GetCoupon)
			r.Patch("/{code}", s.UpdateCoupon)
			r.Get("/{code}/stats", s.CouponStats)
		})

		r.Route("/pricing", func(r gochi.Router) {
			r.Post("/calculate", s.CalculatePrice)
			r.Post("/options", s.PricingOptions)
			r.Post("/compare", s.ComparePrices)
		})

		r.Route("/orders", func(r gochi.Router) {
			r.Post("/", s.CreateOrder)
			r.Get("/stats", s.OrderStatistics)
			r.Get("/revenue-trend", s.RevenueTrend)
			r.Get("/popular-courses", s.PopularCourseSales)
			r.Get("/{id}", s.GetOrder)
			r.Post("/{id}/pay", s.PayOrder)
			r.Post("/{id}/cancel", s.CancelOrder)
			r.Post("/{id}/refund", s.RefundOrder)
		})

		r.Route("/users/{uid}", func(r gochi.Router) {
			r.Use(userScoped)
			r.Get("/discounts", s.UserDiscounts)
			r.Get("/coupons", s.UserCoupons)
			r.Get("/orders", s.UserOrders)
		})

		r.Route("/profiles", func(r gochi.Router) {
			r.Post("/", s.CreateProfile)
			r.Get("/stats", s.ProfileStats)
			r.Post("/batch", s.BatchProfiles)
			r.Get("/session/{sid}", s.ProfileBySession)
			r.Get("/{uid}", s.GetProfile)
			r.Patch("/{uid}", s.UpdateProfile)
			r.Delete("/{uid}", s.DeleteProfile)
			r.Get("/{uid}/history", s.ProfileHistory)
		})

		r.Route("/agent", func(r gochi.Router) {
			r.Route("/users/{uid}", func(r gochi.Router) {
				r.Use(userScoped)
				r.Get("/profile", s.AgentProfile)
				r.Patch("/profile", s.AgentUpdateProfile)
				r.Post("/recommendations", s.AgentRecommendations)
				r.Get("/context", s.AgentContext)
			})
			r.Get("/courses/{id}", s.AgentCourse)
			r.Post("/pricing", s.AgentPricing)
			r.Post("/discounts", s.AgentApplyDiscount)
			r.Post("/orders", s.AgentCreateOrder)
			r.Get("/orders/{id}", s.AgentOrderStatus)
		})
	})
}

// userScoped tags the request logger with the user from the path.
func userScoped(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.With(r.Context(), zap.String("user_id", gochi.URLParam(r, "uid")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler returns a bare router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	s.Register(r)
	return r
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// decodeBody reads a JSON body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody that leaves v untouched for an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
	return false
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(name, "must be an integer")
	}
	return v, nil
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, domain.Invalid(name, "must be a decimal number")
	}
	return &v, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, domain.Invalid(name, "must be a date or RFC 3339 timestamp")
	}
	return t, nil
}

func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Invalid(name, "must be a boolean")
	}
	return v, nil
}

// ListResponse wraps list endpoints.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: len(items)}
}

func mapSlice[S, T any](in []S, f func(S) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
