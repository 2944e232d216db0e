package agent

import (
	"fmt"
	"math"
	"strings"

	domcourse "github.com/coursedesk/offerd/internal/domain/course"
	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
)

const (
	qualityWeight = 0.4
	skillWeight   = 0.2
	budgetWeight  = 0.15
	goalWeight    = 0.25
)

// Match is a course scored against a profile.
type Match struct {
	Course  domcourse.Course
	Score   float64
	Reasons []string
}

// MatchCourse scores c for the profile p. A nil profile scores on course quality alone.
func MatchCourse(c domcourse.Course, p *domprofile.Profile) Match {
	m := Match{Course: c, Score: c.RecommendationScore() * qualityWeight}
	if p == nil {
		m.Reasons = []string{"popular and well rated"}
		m.Score = round2(m.Score)
		return m
	}
	d := p.Dimensions()

	if d.SkillLevel != "" && c.Difficulty().Rank() > 0 {
		switch gap := c.Difficulty().Rank() - d.SkillLevel.Rank(); {
		case gap == 0 || gap == 1:
			m.Score += skillWeight
			m.Reasons = append(m.Reasons, fmt.Sprintf("difficulty fits current level: %s", d.SkillLevel))
		case gap < 0:
			m.Score += skillWeight / 4
		}
	}

	if d.BudgetRange != "" {
		ceiling := d.BudgetRange.Ceiling()
		price, _ := c.CurrentPrice().Float64()
		if ceiling < 0 || price <= float64(ceiling) {
			m.Score += budgetWeight
			m.Reasons = append(m.Reasons, fmt.Sprintf("within budget %s", d.BudgetRange))
		}
	}

	if topic := matchedTopic(c, append(append([]string(nil), d.LearningGoals...), d.PainPoints...)); topic != "" {
		m.Score += goalWeight
		m.Reasons = append(m.Reasons, fmt.Sprintf("matches learning goal: %s", topic))
	}

	if len(m.Reasons) == 0 {
		m.Reasons = []string{"overall course score"}
	}
	m.Score = round2(math.Min(m.Score, 1))
	return m
}

// matchedTopic returns the first goal found in the course name, tags or description.
func matchedTopic(c domcourse.Course, topics []string) string {
	st := c.State()
	haystack := strings.ToLower(st.Name + " " + strings.Join(st.Tags, " ") + " " + st.Description)
	for _, t := range topics {
		if t != "" && strings.Contains(haystack, strings.ToLower(t)) {
			return t
		}
	}
	return ""
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// SellingPoints lists what makes the course attractive.
func SellingPoints(c domcourse.Course) []string {
	var out []string
	if r := c.Rating(); r != nil && *r >= 4.5 {
		out = append(out, fmt.Sprintf("highly rated (%.1f/5)", *r))
	}
	if c.StudentCount() >= 1000 {
		out = append(out, fmt.Sprintf("popular, %d students enrolled", c.StudentCount()))
	}
	if c.CurrentPrice().LessThan(c.OriginalPrice()) {
		out = append(out, fmt.Sprintf("limited offer, saves %s", c.OriginalPrice().Sub(c.CurrentPrice()).StringFixed(2)))
	}
	if in := c.State().Instructor; in != "" {
		out = append(out, "taught by "+in)
	}
	return out
}

// TargetAudience describes who the course is for.
func TargetAudience(c domcourse.Course) []string {
	var out []string
	switch c.Difficulty() {
	case domcourse.Beginner:
		out = append(out, "learners with no programming background")
	case domcourse.Intermediate:
		out = append(out, "learners with some experience who want to go further")
	case domcourse.Advanced, domcourse.Expert:
		out = append(out, "experienced developers")
	}
	if pre := c.State().Prerequisites; len(pre) > 0 {
		out = append(out, "learners familiar with "+strings.Join(pre, ", "))
	}
	return out
}
