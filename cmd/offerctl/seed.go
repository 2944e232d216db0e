package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/app"
	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

type seedResult struct {
	coursesCreated, coursesSkipped int
	couponsCreated, couponsSkipped int
}

func ptr[T any](v T) *T { return &v }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleCourses() []domcourse.Draft {
	return []domcourse.Draft{
		{
			Name:             "Python Basics",
			Category:         domcourse.CategoryPython,
			OriginalPrice:    money("899"),
			CurrentPrice:     ptr(money("699")),
			Description:      "Python from zero: syntax, data types and thinking like a programmer.",
			DurationHours:    40,
			Difficulty:       domcourse.Beginner,
			Instructor:       "Ms. Zhang",
			Tags:             []string{"python", "programming", "beginner"},
			LearningOutcomes: []string{"write small Python programs", "read and debug code"},
			Rating:           ptr(4.8),
		},
		{
			Name:             "Hands-on Data Analysis",
			Category:         domcourse.CategoryDataAnalysis,
			OriginalPrice:    money("1299"),
			CurrentPrice:     ptr(money("999")),
			Description:      "Analyze real datasets with pandas and numpy and present the results.",
			DurationHours:    60,
			Difficulty:       domcourse.Intermediate,
			Instructor:       "Mr. Li",
			Tags:             []string{"pandas", "numpy", "visualization"},
			Prerequisites:    []string{"Python Basics"},
			LearningOutcomes: []string{"run an analysis end to end", "build charts and reports"},
			Rating:           ptr(4.9),
		},
		{
			Name:             "Introduction to Machine Learning",
			Category:         domcourse.CategoryMachineLearning,
			OriginalPrice:    money("1699"),
			CurrentPrice:     ptr(money("1299")),
			Description:      "Core algorithms and scikit-learn practice on classic problems.",
			DurationHours:    80,
			Difficulty:       domcourse.Advanced,
			Instructor:       "Dr. Wang",
			Tags:             []string{"machine-learning", "scikit-learn", "ai"},
			Prerequisites:    []string{"Python Basics", "Hands-on Data Analysis"},
			LearningOutcomes: []string{"choose a model for a problem", "ship a small ML project"},
			Rating:           ptr(4.7),
		},
	}
}

func sampleCoupons(now time.Time) []domcoupon.Draft {
	return []domcoupon.Draft{
		{
			Code:              "WELCOME100",
			Name:              "New user welcome",
			Type:              domcoupon.FixedAmount,
			Value:             money("100"),
			MinOrderAmount:    money("500"),
			MaxDiscount:       ptr(money("100")),
			ValidFrom:         now,
			ValidTo:           now.AddDate(0, 0, 30),
			UsageLimit:        ptr(1000),
			UsageLimitPerUser: ptr(1),
			Description:       "100 off the first order over 500",
		},
		{
			Code:              "SPRING20",
			Name:              "Spring promotion",
			Type:              domcoupon.Percentage,
			Value:             money("0.2"),
			MinOrderAmount:    money("800"),
			MaxDiscount:       ptr(money("200")),
			ValidFrom:         now,
			ValidTo:           now.AddDate(0, 0, 60),
			UsageLimit:        ptr(500),
			UsageLimitPerUser: ptr(2),
			Description:       "20% off orders over 800, at most 200",
		},
	}
}

func seed(ctx context.Context, a *app.App) (seedResult, error) {
	var res seedResult

	for _, d := range sampleCourses() {
		exists, err := courseExists(ctx, a, d.Name)
		if err != nil {
			return res, err
		}
		if exists {
			res.coursesSkipped++
			continue
		}
		if _, err := a.Courses.Create(ctx, d); err != nil {
			return res, fmt.Errorf("seed course %q: %w", d.Name, err)
		}
		res.coursesCreated++
	}

	for _, d := range sampleCoupons(time.Now().UTC()) {
		_, err := a.Coupons.GetByCode(ctx, d.Code)
		switch {
		case err == nil:
			res.couponsSkipped++
			continue
		case !errors.Is(err, domain.ErrNotFound):
			return res, fmt.Errorf("look up coupon %s: %w", d.Code, err)
		}
		if _, err := a.Coupons.Create(ctx, d); err != nil {
			return res, fmt.Errorf("seed coupon %s: %w", d.Code, err)
		}
		res.couponsCreated++
	}
	return res, nil
}

func courseExists(ctx context.Context, a *app.App, name string) (bool, error) {
	q := domcourse.NewSearchQuery()
	q.Keywords = name
	q.OnlyAvailable = false
	found, err := a.Courses.Search(ctx, q)
	if err != nil {
		return false, fmt.Errorf("look up course %q: %w", name, err)
	}
	for _, c := range found {
		if c.Name() == name {
			return true, nil
		}
	}
	return false, nil
}
