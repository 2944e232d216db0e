package course

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursedesk/offerd/internal/domain"
)

// Category groups courses by subject.
type Category string

// Course categories.
const (
	CategoryPython          Category = "python"
	CategoryDataAnalysis    Category = "data_analysis"
	CategoryMachineLearning Category = "machine_learning"
	CategoryWebDevelopment  Category = "web_development"
	CategoryDatabase        Category = "database"
	CategoryAI              Category = "artificial_intelligence"
	CategoryBusinessSkills  Category = "business_skills"
)

// Categories lists every supported category in display order.
var Categories = []Category{
	CategoryPython, CategoryDataAnalysis, CategoryMachineLearning,
	CategoryWebDevelopment, CategoryDatabase, CategoryAI, CategoryBusinessSkills,
}

// IsValid checks if the category is supported.
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Difficulty is the course level. Values are ordered from easiest to hardest.
type Difficulty string

// Difficulty levels.
const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
	Expert       Difficulty = "expert"
)

// Rank returns 1..4 for known levels and 0 otherwise.
func (d Difficulty) Rank() int {
	switch d {
	case Beginner:
		return 1
	case Intermediate:
		return 2
	case Advanced:
		return 3
	case Expert:
		return 4
	default:
		return 0
	}
}

// IsValid checks if the difficulty is supported.
func (d Difficulty) IsValid() bool { return d.Rank() > 0 }

// Status is the publication state.
type Status string

// Course statuses.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDraft    Status = "draft"
	StatusArchived Status = "archived"
)

// IsValid checks if the status is supported.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDraft, StatusArchived:
		return true
	}
	return false
}

const (
	maxNameLen        = 200
	maxDescriptionLen = 2000
	maxTags           = 10
	minDuration       = 1
	maxDuration       = 1000
)

// State is the full persisted representation of a course.
type State struct {
	ID               string
	Name             string
	Category         Category
	OriginalPrice    decimal.Decimal
	CurrentPrice     decimal.Decimal
	Description      string
	DurationHours    int
	Difficulty       Difficulty
	Tags             []string
	Prerequisites    []string
	LearningOutcomes []string
	Instructor       string
	Rating           *float64
	StudentCount     int
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Course is the sellable course aggregate (immutable value object).
type Course struct {
	s State
}

// Draft holds the input for a new course. CurrentPrice defaults to OriginalPrice.
type Draft struct {
	Name             string
	Category         Category
	OriginalPrice    decimal.Decimal
	CurrentPrice     *decimal.Decimal
	Description      string
	DurationHours    int
	Difficulty       Difficulty
	Tags             []string
	Prerequisites    []string
	LearningOutcomes []string
	Instructor       string
	Rating           *float64
	Status           Status
}

// New validates a draft and creates a course with a fresh ID.
func New(d Draft, now time.Time) (Course, error) {
	current := d.OriginalPrice
	if d.CurrentPrice != nil {
		current = *d.CurrentPrice
	}
	status := d.Status
	if status == "" {
		status = StatusActive
	}
	s := State{
		ID:               NewID(),
		Name:             strings.TrimSpace(d.Name),
		Category:         d.Category,
		OriginalPrice:    domain.Round2(d.OriginalPrice),
		CurrentPrice:     domain.Round2(current),
		Description:      d.Description,
		DurationHours:    d.DurationHours,
		Difficulty:       d.Difficulty,
		Tags:             normalizeTags(d.Tags),
		Prerequisites:    d.Prerequisites,
		LearningOutcomes: d.LearningOutcomes,
		Instructor:       d.Instructor,
		Rating:           d.Rating,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := validate(s); err != nil {
		return Course{}, err
	}
	return Course{s: s}, nil
}

// Reconstruct creates a Course without validation (storage hydration).
func Reconstruct(s State) Course {
	return Course{s: s}
}

// NewID returns a course identifier.
func NewID() string {
	return "course_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func validate(s State) error {
	if s.Name == "" {
		return domain.Invalid("name", "is required")
	}
	if len([]rune(s.Name)) > maxNameLen {
		return domain.Invalid("name", "must be at most %d characters", maxNameLen)
	}
	if !s.Category.IsValid() {
		return domain.Invalid("category", "unknown category %q", s.Category)
	}
	if s.OriginalPrice.IsNegative() {
		return domain.Invalid("original_price", "must not be negative")
	}
	if s.CurrentPrice.IsNegative() {
		return domain.Invalid("current_price", "must not be negative")
	}
	if s.CurrentPrice.GreaterThan(s.OriginalPrice) {
		return domain.Invalid("current_price", "must not exceed original price")
	}
	if len([]rune(s.Description)) > maxDescriptionLen {
		return domain.Invalid("description", "must be at most %d characters", maxDescriptionLen)
	}
	if s.DurationHours < minDuration || s.DurationHours > maxDuration {
		return domain.Invalid("duration_hours", "must be between %d and %d", minDuration, maxDuration)
	}
	if !s.Difficulty.IsValid() {
		return domain.Invalid("difficulty", "unknown difficulty %q", s.Difficulty)
	}
	if len(s.Tags) > maxTags {
		return domain.Invalid("tags", "at most %d tags allowed", maxTags)
	}
	if s.Rating != nil && (*s.Rating < 0 || *s.Rating > 5) {
		return domain.Invalid("rating", "must be between 0 and 5")
	}
	if s.StudentCount < 0 {
		return domain.Invalid("student_count", "must not be negative")
	}
	if !s.Status.IsValid() {
		return domain.Invalid("status", "unknown status %q", s.Status)
	}
	return nil
}

// Update is a partial course change. Nil fields are left untouched.
type Update struct {
	Name             *string
	Category         *Category
	OriginalPrice    *decimal.Decimal
	CurrentPrice     *decimal.Decimal
	Description      *string
	DurationHours    *int
	Difficulty       *Difficulty
	Tags             []string
	Prerequisites    []string
	LearningOutcomes []string
	Instructor       *string
	Rating           *float64
	Status           *Status
}

// Apply returns a copy with the update applied and re-validated.
func (c Course) Apply(u Update, now time.Time) (Course, error) {
	s := c.s
	if u.Name != nil {
		s.Name = strings.TrimSpace(*u.Name)
	}
	if u.Category != nil {
		s.Category = *u.Category
	}
	if u.OriginalPrice != nil {
		s.OriginalPrice = domain.Round2(*u.OriginalPrice)
	}
	if u.CurrentPrice != nil {
		s.CurrentPrice = domain.Round2(*u.CurrentPrice)
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.DurationHours != nil {
		s.DurationHours = *u.DurationHours
	}
	if u.Difficulty != nil {
		s.Difficulty = *u.Difficulty
	}
	if u.Tags != nil {
		s.Tags = normalizeTags(u.Tags)
	}
	if u.Prerequisites != nil {
		s.Prerequisites = u.Prerequisites
	}
	if u.LearningOutcomes != nil {
		s.LearningOutcomes = u.LearningOutcomes
	}
	if u.Instructor != nil {
		s.Instructor = *u.Instructor
	}
	if u.Rating != nil {
		r := *u.Rating
		s.Rating = &r
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	s.UpdatedAt = now
	if err := validate(s); err != nil {
		return Course{}, err
	}
	return Course{s: s}, nil
}

// WithStats returns a copy with rating and/or student count replaced.
func (c Course) WithStats(rating *float64, students *int, now time.Time) (Course, error) {
	s := c.s
	if rating != nil {
		r := *rating
		s.Rating = &r
	}
	if students != nil {
		s.StudentCount = *students
	}
	s.UpdatedAt = now
	if err := validate(s); err != nil {
		return Course{}, err
	}
	return Course{s: s}, nil
}

// State returns a copy of the persisted representation.
func (c Course) State() State { return c.s }

// ID returns the course identifier.
func (c Course) ID() string { return c.s.ID }

// Name returns the course title.
func (c Course) Name() string { return c.s.Name }

// Category returns the course category.
func (c Course) Category() Category { return c.s.Category }

// OriginalPrice returns the list price.
func (c Course) OriginalPrice() decimal.Decimal { return c.s.OriginalPrice }

// CurrentPrice returns the selling price.
func (c Course) CurrentPrice() decimal.Decimal { return c.s.CurrentPrice }

// Difficulty returns the course level.
func (c Course) Difficulty() Difficulty { return c.s.Difficulty }

// DurationHours returns the course length.
func (c Course) DurationHours() int { return c.s.DurationHours }

// Tags returns the course tags.
func (c Course) Tags() []string { return c.s.Tags }

// Rating returns the average rating, if any.
func (c Course) Rating() *float64 { return c.s.Rating }

// StudentCount returns the number of enrolled students.
func (c Course) StudentCount() int { return c.s.StudentCount }

// Status returns the publication state.
func (c Course) Status() Status { return c.s.Status }

// IsAvailable reports whether the course can be sold.
func (c Course) IsAvailable() bool { return c.s.Status == StatusActive }

// DiscountPercentage returns (original-current)/original, zero for free courses.
func (c Course) DiscountPercentage() decimal.Decimal {
	return domain.Ratio(c.s.OriginalPrice.Sub(c.s.CurrentPrice), c.s.OriginalPrice)
}

// RecommendationScore blends rating, popularity and affordability into 0..1.
func (c Course) RecommendationScore() float64 {
	rating := 0.0
	if c.s.Rating != nil {
		rating = *c.s.Rating
	}
	students := float64(c.s.StudentCount) / 1000
	if students > 1 {
		students = 1
	}
	price, _ := c.s.CurrentPrice.Float64()
	affordability := (2000 - price) / 2000
	if affordability < 0 {
		affordability = 0
	}
	score := rating/5*0.4 + students*0.3 + affordability*0.3
	return roundScore(score)
}

func roundScore(v float64) float64 {
	d := decimal.NewFromFloat(v).Round(2)
	f, _ := d.Float64()
	return f
}

// AgentDescription renders the course as plain text for the agent prompt.
func (c Course) AgentDescription() string {
	s := c.s
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s (%s)\n", s.Name, s.ID)
	fmt.Fprintf(&b, "Category: %s | Difficulty: %s | Duration: %d hours\n", s.Category, s.Difficulty, s.DurationHours)
	if s.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", s.Instructor)
	}
	if s.Rating != nil {
		fmt.Fprintf(&b, "Rating: %.1f/5 from %d students\n", *s.Rating, s.StudentCount)
	} else {
		fmt.Fprintf(&b, "Students: %d\n", s.StudentCount)
	}
	if s.CurrentPrice.LessThan(s.OriginalPrice) {
		fmt.Fprintf(&b, "Price: %s (list %s, %s%% off)\n",
			s.CurrentPrice.StringFixed(2), s.OriginalPrice.StringFixed(2),
			c.DiscountPercentage().Mul(decimal.NewFromInt(100)).StringFixed(0))
	} else {
		fmt.Fprintf(&b, "Price: %s\n", s.CurrentPrice.StringFixed(2))
	}
	if s.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}
	if len(s.Prerequisites) > 0 {
		fmt.Fprintf(&b, "Prerequisites: %s\n", strings.Join(s.Prerequisites, ", "))
	}
	if len(s.LearningOutcomes) > 0 {
		fmt.Fprintf(&b, "Outcomes: %s\n", strings.Join(s.LearningOutcomes, "; "))
	}
	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(s.Tags, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
