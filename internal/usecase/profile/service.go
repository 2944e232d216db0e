package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	"github.com/coursedesk/offerd/internal/usecase/pricing"
)

const (
	maxBatch            = 100
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	counterTTL          = 48 * time.Hour
)

const (
	counterCreated = "created"
	counterUpdated = "updated"
)

// Service manages user profiles.
type Service struct {
	repo   Repository
	tx     TxManager
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// New creates a profile service.
func New(repo Repository, tx TxManager, cache Cache, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

func userKey(id string) string     { return "profile:user:" + id }
func sessionKey(sid string) string { return "profile:session:" + sid }

func (s *Service) counterKey(kind string) string {
	return "profile:counter:" + kind + ":" + s.now().UTC().Format(time.DateOnly)
}

func (s *Service) remember(ctx context.Context, p domprofile.Profile) {
	s.cache.Set(ctx, userKey(p.UserID()), p.State(), s.ttl)
	if sid := p.SessionID(); sid != "" {
		s.cache.Set(ctx, sessionKey(sid), p.UserID(), s.ttl)
	}
}

// Create stores a new profile. A live profile for the same user yields ErrAlreadyExists.
func (s *Service) Create(ctx context.Context, d domprofile.Draft, source string) (domprofile.Profile, error) {
	now := s.now().UTC()
	p, err := domprofile.New(d, now)
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("validate profile: %w", err)
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		ch := domprofile.Change{Fields: p.FilledFields()}
		if err := s.repo.AppendHistory(ctx, domprofile.NewHistory(p, domprofile.ActionCreate, ch, source, now)); err != nil {
			return fmt.Errorf("append profile history: %w", err)
		}
		return nil
	})
	if err != nil {
		return domprofile.Profile{}, err
	}
	s.remember(ctx, p)
	s.cache.Incr(ctx, s.counterKey(counterCreated), counterTTL)
	s.logger.Info("Profile created",
		zap.String("user_id", p.UserID()),
		zap.Float64("completeness", p.Completeness()))
	return p, nil
}

// Get returns a live profile.
func (s *Service) Get(ctx context.Context, userID string) (domprofile.Profile, error) {
	var st domprofile.State
	if s.cache.Get(ctx, userKey(userID), &st) {
		return domprofile.Reconstruct(st), nil
	}
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	s.remember(ctx, p)
	return p, nil
}

// GetBySession returns the profile built in a conversation session.
func (s *Service) GetBySession(ctx context.Context, sessionID string) (domprofile.Profile, error) {
	var userID string
	if s.cache.Get(ctx, sessionKey(sessionID), &userID) {
		p, err := s.Get(ctx, userID)
		if err == nil && p.SessionID() == sessionID {
			return p, nil
		}
	}
	p, err := s.repo.GetBySession(ctx, sessionID)
	if err != nil {
		return domprofile.Profile{}, fmt.Errorf("get profile by session: %w", err)
	}
	s.remember(ctx, p)
	return p, nil
}

// Update applies a partial update and records the changed fields.
// An update that changes nothing returns the profile untouched.
func (s *Service) Update(
	ctx context.Context, userID string, u domprofile.Update, source string,
) (domprofile.Profile, domprofile.Change, error) {
	var (
		updated domprofile.Profile
		change  domprofile.Change
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.repo.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		now := s.now().UTC()
		next, ch, err := cur.Apply(u, now)
		if err != nil {
			return fmt.Errorf("validate profile: %w", err)
		}
		if len(ch.Fields) == 0 {
			updated, change = cur, ch
			return nil
		}
		if err := s.repo.Update(ctx, next); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		if err := s.repo.AppendHistory(ctx, domprofile.NewHistory(next, domprofile.ActionUpdate, ch, source, now)); err != nil {
			return fmt.Errorf("append profile history: %w", err)
		}
		updated, change = next, ch
		return nil
	})
	if err != nil {
		return domprofile.Profile{}, domprofile.Change{}, err
	}
	s.remember(ctx, updated)
	if len(change.Fields) > 0 {
		s.cache.DeletePattern(ctx, pricing.UserQuotes(userID))
		s.cache.Incr(ctx, s.counterKey(counterUpdated), counterTTL)
		s.logger.Info("Profile updated",
			zap.String("user_id", userID),
			zap.Strings("fields", change.Fields),
			zap.Float64("completeness", updated.Completeness()))
	}
	return updated, change, nil
}

// Delete removes a profile: soft by default, permanently with its history when hard is set.
func (s *Service) Delete(ctx context.Context, userID string, hard bool) error {
	var sessionID string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if hard {
			if p, err := s.repo.Get(ctx, userID); err == nil {
				sessionID = p.SessionID()
			}
			if err := s.repo.HardDelete(ctx, userID); err != nil {
				return fmt.Errorf("delete profile: %w", err)
			}
			return nil
		}
		cur, err := s.repo.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		sessionID = cur.SessionID()
		now := s.now().UTC()
		if err := s.repo.SoftDelete(ctx, cur.MarkDeleted(now)); err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		h := domprofile.NewHistory(cur, domprofile.ActionDelete, domprofile.Change{}, "system", now)
		if err := s.repo.AppendHistory(ctx, h); err != nil {
			return fmt.Errorf("append profile history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	keys := []string{userKey(userID)}
	if sessionID != "" {
		keys = append(keys, sessionKey(sessionID))
	}
	s.cache.Delete(ctx, keys...)
	s.cache.DeletePattern(ctx, pricing.UserQuotes(userID))
	s.logger.Info("Profile deleted", zap.String("user_id", userID), zap.Bool("hard", hard))
	return nil
}

// BatchGet returns the live profiles among userIDs in request order.
func (s *Service) BatchGet(ctx context.Context, userIDs []string) ([]domprofile.Profile, error) {
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, domain.Invalid("user_ids", "at least one user id is required")
	}
	if len(ids) > maxBatch {
		return nil, domain.Invalid("user_ids", "at most %d user ids per batch", maxBatch)
	}
	ps, err := s.repo.BatchGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch get profiles: %w", err)
	}
	return ps, nil
}

// ByCriteria lists profiles matching c, most complete first.
func (s *Service) ByCriteria(ctx context.Context, c domprofile.Criteria) ([]domprofile.Profile, error) {
	if c.PriceSensitivity != "" && !c.PriceSensitivity.IsValid() {
		return nil, domain.Invalid("price_sensitivity", "unknown value %q", c.PriceSensitivity)
	}
	if c.BudgetRange != "" && !c.BudgetRange.IsValid() {
		return nil, domain.Invalid("budget_range", "unknown value %q", c.BudgetRange)
	}
	if c.MinCompleteness > 1 {
		return nil, domain.Invalid("min_completeness", "must be between 0 and 1")
	}
	ps, err := s.repo.ByCriteria(ctx, c.Normalize())
	if err != nil {
		return nil, fmt.Errorf("profiles by criteria: %w", err)
	}
	return ps, nil
}

// View is a profile with derived completeness details.
type View struct {
	Profile      domprofile.Profile
	Completeness float64
	Missing      []string
	Confidence   *domprofile.ConfidenceSummary
}

// Response loads a profile with its completeness and confidence summary.
func (s *Service) Response(ctx context.Context, userID string) (View, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return ViewOf(p), nil
}

// ViewOf derives the completeness details of p.
func ViewOf(p domprofile.Profile) View {
	return View{
		Profile:      p,
		Completeness: p.Completeness(),
		Missing:      p.Dimensions().Missing(),
		Confidence:   p.Summary(),
	}
}

// History lists recorded changes of a profile, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domprofile.History, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	hs, err := s.repo.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("profile history: %w", err)
	}
	return hs, nil
}

// Stats summarizes live profiles and today's activity.
type Stats struct {
	domprofile.Stats
	CreatedToday int64 `json:"created_today"`
	UpdatedToday int64 `json:"updated_today"`
}

// Stats aggregates all live profiles.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("profile stats: %w", err)
	}
	return Stats{
		Stats:        st,
		CreatedToday: s.cache.Count(ctx, s.counterKey(counterCreated)),
		UpdatedToday: s.cache.Count(ctx, s.counterKey(counterUpdated)),
	}, nil
}
