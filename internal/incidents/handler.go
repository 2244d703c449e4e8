package incidents

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/pkg/httputil"
)

// CustomerResolver resolves the customer profile for an authenticated user.
type CustomerResolver interface {
	GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error)
}

// Pagination constants.
const (
	DefaultIncidentsLimit = 20
	MaxIncidentsLimit     = 100
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	customers CustomerResolver
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service, customers CustomerResolver) *Handler {
	return &Handler{
		service:   service,
		customers: customers,
		validator: validator.New(),
	}
}

// RegisterCustomerRoutes registers routes available to authenticated customers.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Post("/segments/{segmentID}/incidents", h.ReportIncident)
	r.Get("/incidents", h.ListMyIncidents)
	r.Get("/incidents/{id}", h.GetMyIncident)
	r.Post("/incidents/{id}/satisfaction", h.RateSatisfaction)
}

// RegisterStaffRoutes registers routes that require staff role.
func (h *Handler) RegisterStaffRoutes(r chi.Router) {
	r.Route("/staff/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Get("/stats", h.GetStats)
		r.Get("/{id}", h.GetIncident)
		r.Post("/{id}/transition", h.TransitionIncident)
		r.Post("/{id}/assign", h.AssignIncident)
		r.Patch("/{id}/notes", h.UpdateNotes)
	})
}

// IncidentView is an incident plus its derived SLA fields.
type IncidentView struct {
	*domain.Incident
	ResponseTimeHours float64 `json:"response_time_hours"`
	IsOverdue         bool    `json:"is_overdue"`
}

func (h *Handler) view(i *domain.Incident) *IncidentView {
	return &IncidentView{
		Incident:          i,
		ResponseTimeHours: h.service.ResponseTime(i),
		IsOverdue:         h.service.IsOverdue(i),
	}
}

func (h *Handler) views(incidents []*domain.Incident) []*IncidentView {
	out := make([]*IncidentView, 0, len(incidents))
	for _, i := range incidents {
		out = append(out, h.view(i))
	}
	return out
}

// ReportIncidentRequest represents the request body for reporting an incident.
type ReportIncidentRequest struct {
	Title              string     `json:"title" validate:"required,min=1,max=200"`
	Description        string     `json:"description" validate:"required,min=1"`
	Category           string     `json:"category" validate:"omitempty,oneof=transport accommodation service_quality schedule safety weather health documentation communication other"`
	Severity           string     `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Location           string     `json:"location" validate:"max=200"`
	OccurredAt         *time.Time `json:"occurred_at"`
	AffectedPassengers int        `json:"affected_passengers" validate:"omitempty,min=1"`
	ReporterContact    string     `json:"reporter_contact" validate:"max=100"`
}

// ReportIncident handles POST /segments/{segmentID}/incidents.
func (h *Handler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	var req ReportIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.Report(r.Context(), ReportInput{
		SegmentID:          chi.URLParam(r, "segmentID"),
		Title:              req.Title,
		Description:        req.Description,
		Category:           domain.IncidentCategory(req.Category),
		Severity:           domain.IncidentSeverity(req.Severity),
		Location:           req.Location,
		OccurredAt:         req.OccurredAt,
		AffectedPassengers: req.AffectedPassengers,
		ReporterContact:    req.ReporterContact,
	}, customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, h.view(incident))
}

// ListMyIncidents handles GET /incidents.
func (h *Handler) ListMyIncidents(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	incidents, err := h.service.ListForCustomer(r.Context(), customer.ID, h.parseFilters(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.views(incidents))
}

// GetMyIncident handles GET /incidents/{id}.
func (h *Handler) GetMyIncident(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	incident, err := h.service.GetForCustomer(r.Context(), chi.URLParam(r, "id"), customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.view(incident))
}

// RateSatisfactionRequest represents the request body for rating an incident.
type RateSatisfactionRequest struct {
	Rating int `json:"rating" validate:"required"`
}

// RateSatisfaction handles POST /incidents/{id}/satisfaction.
func (h *Handler) RateSatisfaction(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	var req RateSatisfactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.RateSatisfaction(r.Context(), chi.URLParam(r, "id"), req.Rating, customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.view(incident))
}

// ListIncidents handles GET /staff/incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.service.List(r.Context(), h.parseFilters(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.views(incidents))
}

// GetIncident handles GET /staff/incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.view(incident))
}

// GetStats handles GET /staff/incidents/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, stats)
}

// TransitionIncidentRequest represents the request body for a status transition.
type TransitionIncidentRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

// TransitionIncident handles POST /staff/incidents/{id}/transition.
func (h *Handler) TransitionIncident(w http.ResponseWriter, r *http.Request) {
	var req TransitionIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	incident, err := h.service.Transition(r.Context(), chi.URLParam(r, "id"), domain.IncidentStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.view(incident))
}

// AssignIncidentRequest represents the request body for assigning an incident.
type AssignIncidentRequest struct {
	AssignedTo *string `json:"assigned_to"`
}

// AssignIncident handles POST /staff/incidents/{id}/assign.
func (h *Handler) AssignIncident(w http.ResponseWriter, r *http.Request) {
	var req AssignIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	incident, err := h.service.Assign(r.Context(), chi.URLParam(r, "id"), req.AssignedTo)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.view(incident))
}

// UpdateNotesRequest represents the request body for updating staff notes.
type UpdateNotesRequest struct {
	ResolutionNotes     *string `json:"resolution_notes"`
	InternalNotes       *string `json:"internal_notes"`
	EvidenceDescription *string `json:"evidence_description"`
	RequiresFollowup    *bool   `json:"requires_followup"`
}

// UpdateNotes handles PATCH /staff/incidents/{id}/notes.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	incident, err := h.service.UpdateNotes(r.Context(), chi.URLParam(r, "id"), NotesInput{
		ResolutionNotes:     req.ResolutionNotes,
		InternalNotes:       req.InternalNotes,
		EvidenceDescription: req.EvidenceDescription,
		RequiresFollowup:    req.RequiresFollowup,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, h.view(incident))
}

func (h *Handler) parseFilters(r *http.Request) Filters {
	filters := Filters{Limit: DefaultIncidentsLimit}

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.IncidentStatus(v)
		filters.Status = &status
	}
	if v := r.URL.Query().Get("category"); v != "" {
		category := domain.IncidentCategory(v)
		filters.Category = &category
	}
	if v := r.URL.Query().Get("severity"); v != "" {
		severity := domain.IncidentSeverity(v)
		filters.Severity = &severity
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filters.Limit = min(limit, MaxIncidentsLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	return filters
}

func (h *Handler) requireCustomer(w http.ResponseWriter, r *http.Request) (*domain.Customer, bool) {
	userID := httputil.GetUserID(r.Context())
	customer, err := h.customers.GetCustomerByUserID(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusForbidden, "customer profile required")
		return nil, false
	}
	return customer, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
		{Error: ErrSegmentNotFound, Status: http.StatusNotFound},
		{Error: ErrInvalidTransition, Status: http.StatusConflict},
		{Error: ErrPermissionDenied, Status: http.StatusForbidden},
		{Error: ErrNotResolved, Status: http.StatusPreconditionFailed},
		{Error: ErrAlreadyRated, Status: http.StatusConflict},
		{Error: ErrInvalidArgument, Status: http.StatusBadRequest},
	})
}
