package chi

import (
	"net/http"
	"time"

	gochi "github.com/go-chi/chi/v5"

	domprofile "github.com/coursedesk/offerd/internal/domain/profile"
	"github.com/coursedesk/offerd/internal/usecase/profile"
)

// ProfileResponse is the JSON form of a profile with its completeness details.
type ProfileResponse struct {
	UserID        string `json:"user_id"`
	SessionID     string `json:"session_id"`
	ChannelSource string `json:"channel_source"`
	domprofile.Dimensions
	FieldConfidence  map[string]float64            `json:"field_confidence"`
	UpdateCount      int                           `json:"update_count"`
	DataCompleteness float64                       `json:"data_completeness"`
	MissingFields    []string                      `json:"missing_fields"`
	Confidence       *domprofile.ConfidenceSummary `json:"confidence_summary,omitempty"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

func viewToResponse(v profile.View) ProfileResponse {
	s := v.Profile.State()
	conf := s.FieldConfidence
	if conf == nil {
		conf = map[string]float64{}
	}
	missing := v.Missing
	if missing == nil {
		missing = []string{}
	}
	return ProfileResponse{
		UserID:           s.UserID,
		SessionID:        s.SessionID,
		ChannelSource:    s.ChannelSource,
		Dimensions:       s.Dimensions,
		FieldConfidence:  conf,
		UpdateCount:      s.UpdateCount,
		DataCompleteness: v.Completeness,
		MissingFields:    missing,
		Confidence:       v.Confidence,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func profileToResponse(p domprofile.Profile) ProfileResponse {
	return viewToResponse(profile.ViewOf(p))
}

// CreateProfileRequest is the body of POST /profiles.
type CreateProfileRequest struct {
	UserID        string `json:"user_id"`
	SessionID     string `json:"session_id"`
	ChannelSource string `json:"channel_source"`
	domprofile.Dimensions
	FieldConfidence map[string]float64 `json:"field_confidence"`
	Source          string             `json:"source,omitempty"`
}

// ProfileUpdateRequest mirrors domprofile.Update field for field.
type ProfileUpdateRequest struct {
	LearningGoals      []string                       `json:"learning_goals"`
	PainPoints         []string                       `json:"pain_points"`
	MotivationType     *domprofile.MotivationType     `json:"motivation_type"`
	UrgencyLevel       *int                           `json:"urgency_level"`
	BudgetRange        *domprofile.BudgetRange        `json:"budget_range"`
	TimeAvailability   *domprofile.TimeAvailability   `json:"time_availability"`
	LearningDuration   *domprofile.LearningDuration   `json:"learning_duration"`
	SkillLevel         *domprofile.SkillLevel         `json:"current_skill_level"`
	RelatedExperience  []string                       `json:"related_experience"`
	LearningAbility    *domprofile.LearningAbility    `json:"learning_ability"`
	CommunicationStyle *domprofile.CommunicationStyle `json:"communication_style"`
	DecisionPattern    *domprofile.DecisionPattern    `json:"decision_pattern"`
	ResponseSpeed      *domprofile.ResponseSpeed      `json:"response_speed"`
	PriceSensitivity   *domprofile.PriceSensitivity   `json:"price_sensitivity"`
	PaymentPreference  *domprofile.PaymentPreference  `json:"payment_preference"`
	DiscountResponse   *domprofile.DiscountResponse   `json:"discount_response"`
	FieldConfidence    map[string]float64             `json:"field_confidence"`
}

// UpdateProfileRequest is the body of PATCH /profiles/{uid}.
type UpdateProfileRequest struct {
	ProfileUpdateRequest
	Source string `json:"source,omitempty"`
}

// ChangeResponse lists what an update changed.
type ChangeResponse struct {
	ChangedFields []string       `json:"changed_fields"`
	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
}

func changeToResponse(c domprofile.Change) ChangeResponse {
	fields := c.Fields
	if fields == nil {
		fields = []string{}
	}
	return ChangeResponse{ChangedFields: fields, OldValues: c.OldValues, NewValues: c.NewValues}
}

// UpdateProfileResponse is the result of a profile update.
type UpdateProfileResponse struct {
	Profile ProfileResponse `json:"profile"`
	ChangeResponse
}

// BatchProfilesRequest is the body of POST /profiles/batch.
type BatchProfilesRequest struct {
	UserIDs []string `json:"user_ids"`
}

// CreateProfile handles POST /profiles.
func (s *Server) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.profiles.Create(r.Context(), domprofile.Draft{
		UserID:          req.UserID,
		SessionID:       req.SessionID,
		ChannelSource:   req.ChannelSource,
		Dimensions:      req.Dimensions,
		FieldConfidence: req.FieldConfidence,
	}, req.Source)
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/profiles/"+p.UserID())
	writeJSON(w, http.StatusCreated, profileToResponse(p))
}

// GetProfile handles GET /profiles/{uid}.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	v, err := s.profiles.Response(r.Context(), gochi.URLParam(r, "uid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewToResponse(v))
}

// UpdateProfile handles PATCH /profiles/{uid}.
func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, ch, err := s.profiles.Update(r.Context(), gochi.URLParam(r, "uid"),
		domprofile.Update(req.ProfileUpdateRequest), req.Source)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateProfileResponse{
		Profile:        profileToResponse(p),
		ChangeResponse: changeToResponse(ch),
	})
}

// DeleteProfile handles DELETE /profiles/{uid}. ?hard=true removes the row and its history.
func (s *Server) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	hard, err := queryBool(r, "hard", false)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.profiles.Delete(r.Context(), gochi.URLParam(r, "uid"), hard); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProfileBySession handles GET /profiles/session/{sid}.
func (s *Server) ProfileBySession(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.GetBySession(r.Context(), gochi.URLParam(r, "sid"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileToResponse(p))
}

// ProfileHistory handles GET /profiles/{uid}/history.
func (s *Server) ProfileHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		handleError(w, r, err)
		return
	}
	hist, err := s.profiles.History(r.Context(), gochi.URLParam(r, "uid"), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(hist))
}

// ProfileStats handles GET /profiles/stats.
func (s *Server) ProfileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.profiles.Stats(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// BatchProfiles handles POST /profiles/batch. Unknown users are skipped.
func (s *Server) BatchProfiles(w http.ResponseWriter, r *http.Request) {
	var req BatchProfilesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ps, err := s.profiles.BatchGet(r.Context(), req.UserIDs)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOf(mapSlice(ps, profileToResponse)))
}
