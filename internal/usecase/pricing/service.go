package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	domorder "github.com/coursedesk/offerd/internal/domain/order"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

// Service prices prospective orders.
type Service struct {
	courses   CourseCatalog
	discounts Discounts
	coupons   Coupons
	profiles  Profiles
	orders    Orders
	catalog   *domdiscount.Catalog
	cache     Cache
	ttl       time.Duration
	logger    *zap.Logger
}

// New creates a pricing service. ttl bounds how long quotes are cached.
func New(
	courses CourseCatalog, discounts Discounts, coupons Coupons, profiles Profiles, orders Orders,
	catalog *domdiscount.Catalog, cache Cache, ttl time.Duration, logger *zap.Logger,
) *Service {
	return &Service{
		courses:   courses,
		discounts: discounts,
		coupons:   coupons,
		profiles:  profiles,
		orders:    orders,
		catalog:   catalog,
		cache:     cache,
		ttl:       ttl,
		logger:    logger,
	}
}

// Request describes the order to price.
type Request struct {
	UserID            string
	CourseIDs         []string
	CouponCode        string
	AppliedDiscountID string
	// AutoDiscount picks the user's best usable discount when no ID is given.
	AutoDiscount bool
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// items loads the requested courses as undiscounted order lines.
// Unknown IDs are returned as missing; unavailable courses are an error.
func (s *Service) items(ctx context.Context, ids []string) ([]domorder.Item, []string, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, nil, domain.Invalid("course_ids", "at least one course is required")
	}
	courses, err := s.courses.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load courses: %w", err)
	}
	found := make(map[string]bool, len(courses))
	items := make([]domorder.Item, 0, len(courses))
	for _, c := range courses {
		if !c.IsAvailable() {
			return nil, nil, fmt.Errorf("course %s: %w", c.ID(), domain.ErrCourseUnavailable)
		}
		found[c.ID()] = true
		items = append(items, domorder.NewItem(c.ID(), c.Name(), c.CurrentPrice()))
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("courses %s: %w", strings.Join(missing, ","), domain.ErrNotFound)
	}
	return items, missing, nil
}

// Calculate prices an order combining an applied discount and a coupon.
// An invalid coupon is reported in the result with a zero amount.
func (s *Service) Calculate(ctx context.Context, r Request) (domorder.PriceCalculation, error) {
	items, missing, err := s.items(ctx, r.CourseIDs)
	if err != nil {
		return domorder.PriceCalculation{}, err
	}
	lines := domorder.Lines(items)
	base := domorder.Combine(items, decimal.Zero, decimal.Zero).OriginalAmount

	discount, detail, err := s.agentDiscount(ctx, r, lines)
	if err != nil {
		return domorder.PriceCalculation{}, err
	}

	var coupon *domorder.CouponDetail
	couponAmount := decimal.Zero
	if code := strings.TrimSpace(r.CouponCode); code != "" {
		v, err := s.coupons.Validate(ctx, code, r.UserID, base, lines)
		if err != nil {
			return domorder.PriceCalculation{}, fmt.Errorf("validate coupon: %w", err)
		}
		coupon = couponDetail(v)
		couponAmount = coupon.Amount
	}

	calc := domorder.Combine(items, discount, couponAmount)
	if detail != nil {
		detail.Amount = calc.DiscountAmount
		calc.Discount = detail
	}
	if coupon != nil {
		coupon.Amount = calc.CouponDiscount
		calc.Coupon = coupon
	}
	calc.MissingCourseIDs = missing
	return calc, nil
}

func (s *Service) agentDiscount(
	ctx context.Context, r Request, lines map[string]decimal.Decimal,
) (decimal.Decimal, *domorder.DiscountDetail, error) {
	var (
		applied *domdiscount.Applied
		auto    bool
	)
	switch {
	case r.AppliedDiscountID != "":
		a, err := s.discounts.Usable(ctx, r.AppliedDiscountID, r.UserID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		applied = &a
	case r.AutoDiscount && r.UserID != "":
		a, err := s.discounts.BestForUser(ctx, r.UserID, lines)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("best discount: %w", err)
		}
		applied, auto = a, true
	}
	if applied == nil {
		return decimal.Zero, nil, nil
	}

	covered, amount := applied.AmountOn(lines)
	if !covered.IsPositive() {
		return decimal.Zero, nil, fmt.Errorf("discount %s covers no course in the order: %w",
			applied.ID(), domain.ErrDiscountUnavailable)
	}
	var courses []string
	for id := range lines {
		if applied.Covers(id) {
			courses = append(courses, id)
		}
	}
	sort.Strings(courses)
	until := applied.ValidUntil()
	return amount, &domorder.DiscountDetail{
		ID:             applied.ID(),
		OptionType:     string(applied.OptionType()),
		Value:          applied.Value(),
		CoveredAmount:  covered,
		Amount:         amount,
		ValidUntil:     &until,
		CoveredCourses: courses,
		AutoSelected:   auto,
	}, nil
}

func couponDetail(v domcoupon.Validation) *domorder.CouponDetail {
	d := &domorder.CouponDetail{
		Code:           v.Code,
		Valid:          v.Valid,
		Reason:         string(v.Reason),
		Errors:         v.Errors,
		EligibleAmount: v.EligibleAmount,
		Amount:         v.Discount,
	}
	if !v.Valid {
		d.Amount = decimal.Zero
	}
	return d
}

// Factors loads the profile facts and purchase history that drive discount choices.
func (s *Service) Factors(ctx context.Context, userID string) (domprofile.PricingFactors, *domprofile.Profile, error) {
	if userID == "" {
		return domprofile.FactorsFor(nil, 0), nil, nil
	}
	var (
		profile *domprofile.Profile
		paid    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.Get(gctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		profile = &p
		return nil
	})
	g.Go(func() error {
		n, err := s.orders.PaidCount(gctx, userID)
		if err != nil {
			return fmt.Errorf("count paid orders: %w", err)
		}
		paid = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return domprofile.PricingFactors{}, nil, err
	}
	return domprofile.FactorsFor(profile, paid), profile, nil
}

const quotePrefix = "price:quote:"

func quoteKey(userID string, ids []string, coupon string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s%s:%s:%s", quotePrefix, userID, strings.Join(sorted, ","), domcoupon.NormalizeCode(coupon))
}

// UserQuotes matches every cached quote of a user.
func UserQuotes(userID string) string { return quotePrefix + userID + ":*" }

// CouponQuotes matches cached quotes priced with the coupon code.
func CouponQuotes(code string) string { return quotePrefix + "*:" + domcoupon.NormalizeCode(code) }

// AllQuotes matches every cached quote.
const AllQuotes = quotePrefix + "*"

// Options quotes every discount choice the agent may offer for the order.
func (s *Service) Options(ctx context.Context, userID string, courseIDs []string, couponCode string) (Quote, error) {
	ids := normalizeIDs(courseIDs)
	key := quoteKey(userID, ids, couponCode)
	var q Quote
	if s.cache.Get(ctx, key, &q) {
		return q, nil
	}

	factors, _, err := s.Factors(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	calc, err := s.Calculate(ctx, Request{UserID: userID, CourseIDs: ids, CouponCode: couponCode})
	if err != nil {
		return Quote{}, err
	}
	q = s.quote(userID, calc, factors)
	q.CouponCode = domcoupon.NormalizeCode(couponCode)
	s.cache.Set(ctx, key, q, s.ttl)
	return q, nil
}

// quote ranks the discount choices for a priced order.
func (s *Service) quote(userID string, calc domorder.PriceCalculation, f domprofile.PricingFactors) Quote {
	base := calc.OriginalAmount
	courses := len(calc.Items)
	finalWith := func(discount decimal.Decimal) decimal.Decimal {
		return domorder.Combine(calc.Items, discount, calc.CouponDiscount).FinalAmount
	}

	options := []OptionQuote{{
		OptionType:         OptionNone,
		Name:               "No discount",
		MinValue:           decimal.Zero,
		MaxValue:           decimal.Zero,
		SuggestedValue:     decimal.Zero,
		EstimatedMin:       decimal.Zero,
		EstimatedSuggested: decimal.Zero,
		EstimatedMax:       decimal.Zero,
		FinalAmount:        finalWith(decimal.Zero),
		Score:              NoneScore(f),
		Reasoning:          noneReasoning(f),
	}}
	for _, o := range s.catalog.Options() {
		if !o.Active || !Eligible(o.Type, f, courses) {
			continue
		}
		suggested := SuggestedValue(o, f)
		amount := domdiscount.AmountFor(base, suggested)
		options = append(options, OptionQuote{
			OptionType:         string(o.Type),
			Name:               o.Name,
			MinValue:           o.Min,
			MaxValue:           o.Max,
			SuggestedValue:     suggested,
			EstimatedMin:       domdiscount.AmountFor(base, o.Min),
			EstimatedSuggested: amount,
			EstimatedMax:       domdiscount.AmountFor(base, o.Max),
			FinalAmount:        finalWith(amount),
			Score:              OptionScore(suggested, f),
			Reasoning:          optionReasoning(o, f, courses),
		})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Score > options[j].Score })

	best := options[0]
	return Quote{
		UserID:         userID,
		CourseIDs:      calc.CourseIDs(),
		Base:           base,
		CouponDiscount: calc.CouponDiscount,
		Options:        options,
		Recommended:    &best,
		Guidance:       s.catalog.PromptGuidance(),
		Factors:        f,
	}
}

// Scenario is one what-if pricing variant.
type Scenario struct {
	Name       string                 `json:"name"`
	OptionType domdiscount.OptionType `json:"option_type,omitempty"`
	Value      decimal.Decimal        `json:"value"`
	CouponCode string                 `json:"coupon_code,omitempty"`
}

// ScenarioResult is the priced outcome of a scenario.
type ScenarioResult struct {
	Scenario    Scenario                   `json:"scenario"`
	Calculation *domorder.PriceCalculation `json:"calculation,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// Compare previews scenarios side by side, largest savings first. Nothing is persisted.
func (s *Service) Compare(ctx context.Context, userID string, courseIDs []string, scenarios []Scenario) ([]ScenarioResult, error) {
	if len(scenarios) == 0 {
		return nil, domain.Invalid("scenarios", "at least one scenario is required")
	}
	items, missing, err := s.items(ctx, courseIDs)
	if err != nil {
		return nil, err
	}
	lines := domorder.Lines(items)
	base := domorder.Combine(items, decimal.Zero, decimal.Zero).OriginalAmount

	out := make([]ScenarioResult, 0, len(scenarios))
	for _, sc := range scenarios {
		res := ScenarioResult{Scenario: sc}
		calc, err := s.preview(ctx, userID, items, lines, base, sc)
		if err != nil {
			if !isInputError(err) {
				return nil, err
			}
			res.Error = err.Error()
		} else {
			calc.MissingCourseIDs = missing
			res.Calculation = &calc
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return savings(out[i]).GreaterThan(savings(out[j]))
	})
	return out, nil
}

func (s *Service) preview(
	ctx context.Context, userID string, items []domorder.Item, lines map[string]decimal.Decimal,
	base decimal.Decimal, sc Scenario,
) (domorder.PriceCalculation, error) {
	discount := decimal.Zero
	var detail *domorder.DiscountDetail
	if sc.OptionType != "" && sc.OptionType != OptionNone {
		opt, ok := s.catalog.Option(sc.OptionType)
		if !ok || !opt.Active {
			return domorder.PriceCalculation{}, domain.Invalid("option_type", "unknown option %q", sc.OptionType)
		}
		if !opt.InRange(sc.Value) {
			return domorder.PriceCalculation{}, &domdiscount.RangeError{Option: opt, Value: sc.Value}
		}
		discount = domdiscount.AmountFor(base, sc.Value)
		detail = &domorder.DiscountDetail{
			OptionType:     string(opt.Type),
			Value:          sc.Value,
			CoveredAmount:  base,
			CoveredCourses: domorder.PriceCalculation{Items: items}.CourseIDs(),
		}
	}

	var coupon *domorder.CouponDetail
	couponAmount := decimal.Zero
	if code := strings.TrimSpace(sc.CouponCode); code != "" {
		v, err := s.coupons.Validate(ctx, code, userID, base, lines)
		if err != nil {
			return domorder.PriceCalculation{}, fmt.Errorf("validate coupon: %w", err)
		}
		coupon = couponDetail(v)
		couponAmount = coupon.Amount
	}

	calc := domorder.Combine(items, discount, couponAmount)
	if detail != nil {
		detail.Amount = calc.DiscountAmount
		calc.Discount = detail
	}
	if coupon != nil {
		coupon.Amount = calc.CouponDiscount
		calc.Coupon = coupon
	}
	return calc, nil
}

func isInputError(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrDiscountOutOfRange)
}

func savings(r ScenarioResult) decimal.Decimal {
	if r.Calculation == nil {
		return decimal.NewFromInt(-1)
	}
	return r.Calculation.Savings
}
