package chi

import (
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domcourse "github.com/coursedesk/offerd/internal/domain/course"
)

// CourseResponse is the JSON form of a course.
type CourseResponse struct {
	ID                 string          `json:"course_id"`
	Name               string          `json:"course_name"`
	Category           string          `json:"category"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	CurrentPrice       decimal.Decimal `json:"current_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Description        string          `json:"description,omitempty"`
	DurationHours      int             `json:"duration_hours"`
	Difficulty         string          `json:"difficulty_level"`
	Tags               []string        `json:"tags"`
	Prerequisites      []string        `json:"prerequisites,omitempty"`
	LearningOutcomes   []string        `json:"learning_outcomes,omitempty"`
	Instructor         string          `json:"instructor,omitempty"`
	Rating             *float64        `json:"rating,omitempty"`
	StudentCount       int             `json:"student_count"`
	Status             string          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func courseToResponse(c domcourse.Course) CourseResponse {
	s := c.State()
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return CourseResponse{
		ID:                 s.ID,
		Name:               s.Name,
		Category:           string(s.Category),
		OriginalPrice:      s.OriginalPrice,
		CurrentPrice:       s.CurrentPrice,
		DiscountPercentage: c.DiscountPercentage(),
		Description:        s.Description,
		DurationHours:      s.DurationHours,
		Difficulty:         string(s.Difficulty),
		Tags:               tags,
		Prerequisites:      s.Prerequisites,
		LearningOutcomes:   s.LearningOutcomes,
		Instructor:         s.Instructor,
		Rating:             s.Rating,
		StudentCount:       s.StudentCount,
		Status:             string(s.Status),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// CourseRequest is the body of POST /courses and PATCH /courses/{id}.
type CourseRequest struct {
	Name             *string          `json:"course_name"`
	Category         *string          `json:"category"`
	OriginalPrice    *decimal.Decimal `json:"original_price"`
	CurrentPrice     *decimal.Decimal `json:"current_price"`
	Description      *string          `json:"description"`
	DurationHours    *int             `json:"duration_hours"`
	Difficulty       *string          `json:"difficulty_level"`
	Tags             []string         `json:"tags"`
	Prerequisites    []string         `json:"prerequisites"`
	LearningOutcomes []string         `json:"learning_outcomes"`
	Instructor       *string          `json:"instructor"`
	Rating           *float64         `json:"rating"`
	Status           *string          `json:"status"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (req CourseRequest) draft() domcourse.Draft {
	return domcourse.Draft{
		Name:             deref(req.Name),
		Category:         domcourse.Category(deref(req.Category)),
		OriginalPrice:    deref(req.OriginalPrice),
		CurrentPrice:     req.CurrentPrice,
		Description:      deref(req.Description),
		DurationHours:    deref(req.DurationHours),
		Difficulty:       domcourse.Difficulty(deref(req.Difficulty)),
		Tags:             req.Tags,
		Prerequisites:    req.Prerequisites,
		LearningOutcomes: req.LearningOutcomes,
		Instructor:       deref(req.Instructor),
		Rating:           req.Rating,
		Status:           domcourse.Status(deref(req.Status)),
	}
}

func (req CourseRequest) update() domcourse.Update {
	u := domcourse.Update{
		Name:             req.Name,
		OriginalPrice:    req.OriginalPrice,
		CurrentPrice:     req.CurrentPrice,
		Description:      req.Description,
		DurationHours:    req.DurationHours,
		Tags:             req.Tags,
		Prerequisites:    req.Prerequisites,
		LearningOutcomes: req.LearningOutcomes,
		Instructor:       req.Instructor,
		Rating:           req.Rating,
	}
	if req.Category != nil {
		c := domcourse.Category(*req.Category)
		u.Category = &c
	}
	if req.Difficulty != nil {
		d := domcourse.Difficulty(*req.Difficulty)
		u.Difficulty = &d
	}
	if req.Status != nil {
		st := domcourse.Status(*req.Status)
		u.Status = &st
	}
	return u
}

// SearchCourses handles GET /courses.
func (s *Server) SearchCourses(w http.ResponseWriter, r *http.Request) {
	q := domcourse.NewSearchQuery()
	q.Keywords = r.URL.Query().Get("keywords")
	q.Category = domcourse.Category(r.URL.Query().Get("category"))
	q.Difficulty = domcourse.Difficulty(r.URL.Query().Get("difficulty"))
	q.Tags = queryList(r, "tags")

	var err error
	if q.MinPrice, err = queryDecimal(r, "min_price"); err != nil {
		handleError(w, r, err)
		return
	}
	if q.MaxPrice, err = queryDecimal(r, "max_price"); err != nil {
		handleError(w, r, err)
		return
	}
	for name, dst := range map[string]**int{"min_duration": &q.MinDuration, "max_duration": &q.MaxDuration} {
		if r.URL.Query().Get(name) == "" {
			continue
		}
		v, err := queryInt(r, name, 0)
		if err != nil {
			handleError(w, r, err)
			return
		}
		*dst = &v
	}
	if q.OnlyAvailable, err = queryBool(r, "only_available", true); err != nil {
		handleError(w, r, err)
		return
	}
	if q.Limit, err = queryInt(r, "limit", q.Limit); err != nil {
		handleError(w, r, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		handleError(w, r, err)
		return
	}

	courses, err := s.courses.Search(r.Context(), q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(mapSlice(courses, courseToResponse)))
}

// PopularCourses handles GET /courses/popular.
func (s *Server) PopularCourses(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		handleError(w, r, err)
		return
	}
	courses, err := s.courses.Popular(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(mapSlice(courses, courseToResponse)))
}

// CourseCategories handles GET /courses/categories.
func (s *Server) CourseCategories(w http.ResponseWriter, r *http.Request) {
	stats, err := s.courses.Categories(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(stats))
}

// CoursePriceRange handles GET /courses/price-range.
func (s *Server) CoursePriceRange(w http.ResponseWriter, r *http.Request) {
	pr, err := s.courses.PriceRange(r.Context(), domcourse.Category(r.URL.Query().Get("category")))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

// CreateCourse handles POST /courses.
func (s *Server) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CourseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.courses.Create(r.Context(), req.draft())
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/courses/"+c.ID())
	writeJSON(w, http.StatusCreated, courseToResponse(c))
}

// GetCourse handles GET /courses/{id}.
func (s *Server) GetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.courses.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courseToResponse(c))
}

// UpdateCourse handles PATCH /courses/{id}.
func (s *Server) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req CourseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := s.courses.Update(r.Context(), gochi.URLParam(r, "id"), req.update())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courseToResponse(c))
}

// TextResponse carries agent-facing prose.
type TextResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CourseAgentView handles GET /courses/{id}/agent.
func (s *Server) CourseAgentView(w http.ResponseWriter, r *http.Request) {
	id := gochi.URLParam(r, "id")
	text, err := s.courses.AgentView(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TextResponse{ID: id, Text: text})
}
