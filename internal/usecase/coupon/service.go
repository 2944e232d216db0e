package coupon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

const (
	validListLimit  = 200
	maxHistoryLimit = 500
)

// Redemption outcomes reported to Metrics.
const (
	ResultRedeemed = "redeemed"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultReleased = "released"
)

// Service manages coupons and their redemptions.
type Service struct {
	repo    Repository
	tx      TxManager
	cache   Cache
	ttl     time.Duration
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a coupon service.
func New(repo Repository, tx TxManager, cache Cache, ttl time.Duration, metrics Metrics, logger *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, cache: cache, ttl: ttl, metrics: metrics, logger: logger, now: time.Now}
}

func detailKey(code string) string { return "coupon:detail:" + code }

// forget drops the cached coupon and every quote priced with it.
func (s *Service) forget(ctx context.Context, code string) {
	s.cache.Delete(ctx, detailKey(code))
	s.cache.DeletePattern(ctx, pricing.CouponQuotes(code))
}

// GetByCode returns a coupon by code (case-insensitive).
func (s *Service) GetByCode(ctx context.Context, code string) (domcoupon.Coupon, error) {
	code = domcoupon.NormalizeCode(code)
	var st domcoupon.State
	if s.cache.Get(ctx, detailKey(code), &st) {
		return domcoupon.Reconstruct(st), nil
	}
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return domcoupon.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	s.cache.Set(ctx, detailKey(code), c.State(), s.ttl)
	return c, nil
}

// Create validates and stores a new coupon.
func (s *Service) Create(ctx context.Context, d domcoupon.Draft) (domcoupon.Coupon, error) {
	c, err := domcoupon.New(d, s.now().UTC())
	if err != nil {
		return domcoupon.Coupon{}, fmt.Errorf("validate coupon: %w", err)
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return domcoupon.Coupon{}, fmt.Errorf("create coupon: %w", err)
	}
	s.logger.Info("Coupon created", zap.String("code", c.Code()))
	return c, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, code string, u domcoupon.Update) (domcoupon.Coupon, error) {
	code = domcoupon.NormalizeCode(code)
	cur, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return domcoupon.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	next, err := cur.Apply(u, s.now().UTC())
	if err != nil {
		return domcoupon.Coupon{}, fmt.Errorf("validate coupon: %w", err)
	}
	if err := s.repo.Update(ctx, next); err != nil {
		return domcoupon.Coupon{}, fmt.Errorf("update coupon: %w", err)
	}
	s.forget(ctx, code)
	return next, nil
}

// ListValid lists coupons usable right now.
func (s *Service) ListValid(ctx context.Context) ([]domcoupon.Coupon, error) {
	cs, err := s.repo.ListValid(ctx, s.now().UTC(), validListLimit)
	if err != nil {
		return nil, fmt.Errorf("list valid coupons: %w", err)
	}
	return cs, nil
}

// Expiring lists valid coupons that end within the given number of days.
func (s *Service) Expiring(ctx context.Context, days int) ([]domcoupon.Coupon, error) {
	if days <= 0 {
		days = 7
	}
	now := s.now().UTC()
	cs, err := s.repo.Expiring(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("expiring coupons: %w", err)
	}
	return cs, nil
}

// Validate evaluates a code for a user's order. Unknown codes yield an invalid result, not an error.
// lines maps course ID to price and may be empty.
func (s *Service) Validate(
	ctx context.Context, code, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal,
) (domcoupon.Validation, error) {
	c, err := s.repo.GetByCode(ctx, domcoupon.NormalizeCode(code))
	if errors.Is(err, domain.ErrNotFound) {
		return domcoupon.NotFound(code), nil
	}
	if err != nil {
		return domcoupon.Validation{}, fmt.Errorf("get coupon: %w", err)
	}
	return s.evaluate(ctx, c, userID, amount, lines)
}

func (s *Service) evaluate(
	ctx context.Context, c domcoupon.Coupon, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal,
) (domcoupon.Validation, error) {
	uses := 0
	if userID != "" {
		n, err := s.repo.UserUses(ctx, c.ID(), userID)
		if err != nil {
			return domcoupon.Validation{}, fmt.Errorf("count coupon uses: %w", err)
		}
		uses = n
	}
	return c.Evaluate(s.now().UTC(), domcoupon.Order{Amount: amount, Lines: lines, UserUses: uses}), nil
}

// Redemption describes a coupon use by an order.
type Redemption struct {
	Code      string
	UserID    string
	OrderID   string
	CourseIDs []string
	Amount    decimal.Decimal
	Lines     map[string]decimal.Decimal
	// Discount is the amount actually granted; zero means the evaluated discount.
	Discount decimal.Decimal
}

// Redeem re-validates the coupon and records its use within a transaction.
func (s *Service) Redeem(ctx context.Context, r Redemption) (domcoupon.Usage, error) {
	var usage domcoupon.Usage
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		c, err := s.repo.GetByCodeForUpdate(ctx, domcoupon.NormalizeCode(r.Code))
		if errors.Is(err, domain.ErrNotFound) {
			return domcoupon.NotFound(r.Code).Err()
		}
		if err != nil {
			return fmt.Errorf("get coupon: %w", err)
		}
		v, err := s.evaluate(ctx, c, r.UserID, r.Amount, r.Lines)
		if err != nil {
			return err
		}
		if !v.Valid {
			return v.Err()
		}
		if err := s.repo.SaveUsage(ctx, c.Redeemed(now), c.UsedCount()); err != nil {
			return fmt.Errorf("save coupon usage: %w", err)
		}

		discount := v.Discount
		if r.Discount.IsPositive() {
			discount = domain.MinDecimal(r.Discount, v.Discount)
		}
		usage = domcoupon.Usage{
			ID:             uuid.NewString(),
			CouponID:       c.ID(),
			Code:           c.Code(),
			UserID:         r.UserID,
			OrderID:        r.OrderID,
			CourseIDs:      r.CourseIDs,
			OriginalAmount: r.Amount,
			DiscountAmount: discount,
			FinalAmount:    domain.MaxDecimal(r.Amount.Sub(discount), decimal.Zero),
			UsedAt:         now,
		}
		if err := s.repo.RecordUsage(ctx, usage); err != nil {
			return fmt.Errorf("record coupon usage: %w", err)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			s.metrics.CouponRedemption(ResultConflict)
		case errors.Is(err, domain.ErrCouponInvalid):
			s.metrics.CouponRedemption(ResultRejected)
		}
		return domcoupon.Usage{}, fmt.Errorf("redeem coupon: %w", err)
	}
	s.forget(ctx, usage.Code)
	s.metrics.CouponRedemption(ResultRedeemed)
	s.logger.Info("Coupon redeemed",
		zap.String("code", usage.Code),
		zap.String("user_id", usage.UserID),
		zap.String("order_id", usage.OrderID),
		zap.String("discount", usage.DiscountAmount.StringFixed(2)))
	return usage, nil
}

// Release reverts the redemption made by an order. Orders without a redemption are a no-op.
func (s *Service) Release(ctx context.Context, orderID string) error {
	var code string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		usage, err := s.repo.DeleteUsageByOrder(ctx, orderID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete coupon usage: %w", err)
		}
		code = usage.Code
		c, err := s.repo.GetByCodeForUpdate(ctx, usage.Code)
		if err != nil {
			return fmt.Errorf("get coupon: %w", err)
		}
		if err := s.repo.SaveUsage(ctx, c.Released(s.now().UTC()), c.UsedCount()); err != nil {
			return fmt.Errorf("save coupon usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("release coupon: %w", err)
	}
	if code != "" {
		s.forget(ctx, code)
		s.metrics.CouponRedemption(ResultReleased)
		s.logger.Info("Coupon released", zap.String("code", code), zap.String("order_id", orderID))
	}
	return nil
}

// UsageHistory lists redemptions of a code, newest first.
func (s *Service) UsageHistory(ctx context.Context, code string, limit int) ([]domcoupon.Usage, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = 50
	}
	us, err := s.repo.UsageHistory(ctx, domcoupon.NormalizeCode(code), limit)
	if err != nil {
		return nil, fmt.Errorf("coupon usage history: %w", err)
	}
	return us, nil
}

// Stats aggregates redemptions of a code. UsageRate is set for limited coupons.
func (s *Service) Stats(ctx context.Context, code string) (domcoupon.Stats, error) {
	c, err := s.GetByCode(ctx, code)
	if err != nil {
		return domcoupon.Stats{}, err
	}
	st, err := s.repo.Stats(ctx, c.Code())
	if err != nil {
		return domcoupon.Stats{}, fmt.Errorf("coupon stats: %w", err)
	}
	if limit := c.UsageLimit(); limit != nil && *limit > 0 {
		rate, _ := domain.Ratio(decimal.NewFromInt(int64(st.TotalUses)), decimal.NewFromInt(int64(*limit))).Float64()
		st.UsageRate = &rate
	}
	return st, nil
}

// ExpireStale marks coupons past their window as expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire coupons: %w", err)
	}
	if n > 0 {
		s.cache.DeletePattern(ctx, pricing.AllQuotes)
		s.logger.Info("Coupons expired", zap.Int64("count", n))
	}
	return n, nil
}

// AvailableForUser lists coupons the user can apply to an order amount, largest discount first.
func (s *Service) AvailableForUser(ctx context.Context, userID string, amount decimal.Decimal) ([]domcoupon.Recommendation, error) {
	return s.recommend(ctx, userID, amount, nil, false, byDiscount)
}

// Best returns the coupon with the largest discount for the order, or nil.
func (s *Service) Best(
	ctx context.Context, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal,
) (*domcoupon.Recommendation, error) {
	recs, err := s.recommend(ctx, userID, amount, lines, false, byDiscount)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// RecommendationsForAgent ranks applicable coupons by priority score and explains each.
func (s *Service) RecommendationsForAgent(
	ctx context.Context, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal, priceSensitive bool,
) ([]domcoupon.Recommendation, error) {
	return s.recommend(ctx, userID, amount, lines, priceSensitive, byPriority)
}

type ranking int

const (
	byDiscount ranking = iota
	byPriority
)

func (s *Service) recommend(
	ctx context.Context, userID string, amount decimal.Decimal, lines map[string]decimal.Decimal,
	priceSensitive bool, rank ranking,
) ([]domcoupon.Recommendation, error) {
	now := s.now().UTC()
	cs, err := s.repo.ListValid(ctx, now, validListLimit)
	if err != nil {
		return nil, fmt.Errorf("list valid coupons: %w", err)
	}
	uses := map[string]int{}
	if userID != "" {
		if uses, err = s.repo.UserUsesByCoupon(ctx, userID); err != nil {
			return nil, fmt.Errorf("count coupon uses: %w", err)
		}
	}

	var out []domcoupon.Recommendation
	for _, c := range cs {
		v := c.Evaluate(now, domcoupon.Order{Amount: amount, Lines: lines, UserUses: uses[c.ID()]})
		if !v.Valid || !v.Discount.IsPositive() {
			continue
		}
		out = append(out, domcoupon.Recommendation{
			Code:          c.Code(),
			Name:          c.Name(),
			Discount:      v.Discount,
			FinalAmount:   domain.MaxDecimal(amount.Sub(v.Discount), decimal.Zero),
			PriorityScore: c.PriorityScore(now, v.Discount, amount),
			Reason:        c.RecommendationReason(now, v.Discount, amount, priceSensitive),
			ValidTo:       c.ValidTo(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if rank == byPriority {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].Discount.GreaterThan(out[j].Discount)
	})
	return out, nil
}
