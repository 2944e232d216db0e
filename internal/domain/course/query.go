package course

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// SearchQuery filters the course catalog.
type SearchQuery struct {
	Keywords      string
	Category      Category
	Difficulty    Difficulty
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Tags          []string
	MinDuration   *int
	MaxDuration   *int
	OnlyAvailable bool
	Limit         int
	Offset        int
}

// NewSearchQuery returns a query with defaults: available courses only, first page.
func NewSearchQuery() SearchQuery {
	return SearchQuery{OnlyAvailable: true, Limit: defaultLimit}
}

// Normalize validates ranges and clamps paging.
func (q SearchQuery) Normalize() (SearchQuery, error) {
	q.Keywords = strings.TrimSpace(q.Keywords)
	if q.Category != "" && !q.Category.IsValid() {
		return q, domain.Invalid("category", "unknown category %q", q.Category)
	}
	if q.Difficulty != "" && !q.Difficulty.IsValid() {
		return q, domain.Invalid("difficulty", "unknown difficulty %q", q.Difficulty)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MaxPrice.LessThan(*q.MinPrice) {
		return q, domain.Invalid("max_price", "must not be below min_price")
	}
	if q.MinDuration != nil && q.MaxDuration != nil && *q.MaxDuration < *q.MinDuration {
		return q, domain.Invalid("max_duration", "must not be below min_duration")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	tags := normalizeTags(q.Tags)
	sort.Strings(tags)
	q.Tags = tags
	return q, nil
}

// CacheKey returns a stable key fragment for a normalized query.
func (q SearchQuery) CacheKey() string {
	parts := []string{
		"kw=" + strings.ToLower(q.Keywords),
		"cat=" + string(q.Category),
		"dif=" + string(q.Difficulty),
		"min=" + decimalPtr(q.MinPrice),
		"max=" + decimalPtr(q.MaxPrice),
		"tags=" + strings.Join(q.Tags, ","),
		"mind=" + intPtr(q.MinDuration),
		"maxd=" + intPtr(q.MaxDuration),
		fmt.Sprintf("avail=%t", q.OnlyAvailable),
		fmt.Sprintf("l=%d", q.Limit),
		fmt.Sprintf("o=%d", q.Offset),
	}
	return strings.Join(parts, "|")
}

func decimalPtr(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func intPtr(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

// CategoryStats summarizes one category of the catalog.
type CategoryStats struct {
	Category     Category        `json:"category"`
	Count        int             `json:"count"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// PriceRange summarizes catalog prices.
type PriceRange struct {
	Min     decimal.Decimal `json:"min"`
	Max     decimal.Decimal `json:"max"`
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}
