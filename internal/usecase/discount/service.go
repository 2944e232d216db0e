package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultStatsDays    = 30
)

// Service grants agent discounts and tracks their use.
type Service struct {
	repo       Repository
	courses    CourseCatalog
	catalog    *domdiscount.Catalog
	validHours int
	metrics    Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a discount service. validHours is the default lifetime of an applied discount.
func New(
	repo Repository, courses CourseCatalog, catalog *domdiscount.Catalog,
	validHours int, metrics Metrics, logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		courses:    courses,
		catalog:    catalog,
		validHours: validHours,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Catalog returns the option catalog.
func (s *Service) Catalog() *domdiscount.Catalog { return s.catalog }

// Options lists the catalog options in display order.
func (s *Service) Options() []domdiscount.Option { return s.catalog.Options() }

// Guidance renders the catalog as agent prompt instructions.
func (s *Service) Guidance() string { return s.catalog.PromptGuidance() }

// Apply records the agent's discount decision for a set of courses.
func (s *Service) Apply(ctx context.Context, a domdiscount.Application) (domdiscount.Applied, error) {
	a, opt, err := a.Normalize(s.catalog, s.validHours)
	if err != nil {
		return domdiscount.Applied{}, fmt.Errorf("validate discount: %w", err)
	}

	courses, err := s.courses.GetMany(ctx, a.CourseIDs)
	if err != nil {
		return domdiscount.Applied{}, fmt.Errorf("load courses: %w", err)
	}
	found := make(map[string]bool, len(courses))
	base := decimal.Zero
	for _, c := range courses {
		if !c.IsAvailable() {
			return domdiscount.Applied{}, fmt.Errorf("course %s: %w", c.ID(), domain.ErrCourseUnavailable)
		}
		found[c.ID()] = true
		base = base.Add(c.CurrentPrice())
	}
	for _, id := range a.CourseIDs {
		if !found[id] {
			return domdiscount.Applied{}, fmt.Errorf("course %s: %w", id, domain.ErrNotFound)
		}
	}

	applied := domdiscount.NewApplied(a, opt, base, s.now().UTC())
	if err := s.repo.Create(ctx, applied); err != nil {
		return domdiscount.Applied{}, fmt.Errorf("create discount: %w", err)
	}
	s.metrics.DiscountApplied(string(opt.Type))
	s.logger.Info("Discount applied",
		zap.String("id", applied.ID()),
		zap.String("user_id", a.UserID),
		zap.String("option", string(opt.Type)),
		zap.String("value", a.Value.String()),
		zap.String("amount", applied.DiscountAmount().StringFixed(2)))
	return applied, nil
}

// Get returns an applied discount by ID.
func (s *Service) Get(ctx context.Context, id string) (domdiscount.Applied, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdiscount.Applied{}, fmt.Errorf("get discount: %w", err)
	}
	return a, nil
}

// Usable returns the discount when it belongs to userID and can still be applied.
func (s *Service) Usable(ctx context.Context, id, userID string) (domdiscount.Applied, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return domdiscount.Applied{}, err
	}
	if a.UserID() != userID || !a.Usable(s.now().UTC()) {
		return domdiscount.Applied{}, fmt.Errorf("discount %s: %w", id, domain.ErrDiscountUnavailable)
	}
	return a, nil
}

// ActiveForUser lists the user's unused, unexpired discounts, newest first.
func (s *Service) ActiveForUser(ctx context.Context, userID string) ([]domdiscount.Applied, error) {
	as, err := s.repo.ActiveForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("active discounts: %w", err)
	}
	return as, nil
}

// BestForUser picks the active discount that saves the most on the order lines.
// lines maps course ID to price. It returns nil when no discount covers any line.
func (s *Service) BestForUser(
	ctx context.Context, userID string, lines map[string]decimal.Decimal,
) (*domdiscount.Applied, error) {
	active, err := s.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var (
		best   *domdiscount.Applied
		amount decimal.Decimal
	)
	for i := range active {
		_, a := active[i].AmountOn(lines)
		if a.IsPositive() && (best == nil || a.GreaterThan(amount)) {
			best, amount = &active[i], a
		}
	}
	return best, nil
}

// History lists all discounts of a user, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domdiscount.Applied, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	as, err := s.repo.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("discount history: %w", err)
	}
	return as, nil
}

// EffectivenessStats reports per-option conversion over the last days.
func (s *Service) EffectivenessStats(ctx context.Context, days int) ([]domdiscount.OptionStats, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	stats, err := s.repo.EffectivenessStats(ctx, s.now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("discount stats: %w", err)
	}
	return stats, nil
}

// ExpireStale counts unused discounts past their validity. Rows are kept; expiry is derived from valid_until.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.repo.CountExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire discounts: %w", err)
	}
	if n > 0 {
		s.logger.Info("Discounts expired", zap.Int64("count", n))
	}
	return n, nil
}

// MarkUsed consumes a usable discount for an order.
func (s *Service) MarkUsed(ctx context.Context, id, userID, orderID string) (domdiscount.Applied, error) {
	a, err := s.Usable(ctx, id, userID)
	if err != nil {
		return domdiscount.Applied{}, err
	}
	used, err := a.MarkUsed(orderID, s.now().UTC())
	if err != nil {
		return domdiscount.Applied{}, fmt.Errorf("discount %s: %w", id, err)
	}
	if err := s.repo.SaveUsage(ctx, used); err != nil {
		return domdiscount.Applied{}, fmt.Errorf("mark discount used: %w", err)
	}
	return used, nil
}

// Release detaches the discount consumed by an order. Orders without one are a no-op.
func (s *Service) Release(ctx context.Context, orderID string) error {
	a, err := s.repo.GetByOrder(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get discount by order: %w", err)
	}
	if err := s.repo.SaveUsage(ctx, a.Released()); err != nil {
		return fmt.Errorf("release discount: %w", err)
	}
	s.logger.Info("Discount released", zap.String("id", a.ID()), zap.String("order_id", orderID))
	return nil
}
