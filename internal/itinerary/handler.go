package itinerary

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/pkg/httputil"
)

// CustomerResolver resolves the customer profile for an authenticated user.
type CustomerResolver interface {
	GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error)
}

// Handler handles HTTP requests for the itinerary module.
type Handler struct {
	service   *Service
	incidents ActiveIncidentCounter
	customers CustomerResolver
	validator *validator.Validate
}

// NewHandler creates a new itinerary handler.
func NewHandler(service *Service, incidents ActiveIncidentCounter, customers CustomerResolver) *Handler {
	return &Handler{
		service:   service,
		incidents: incidents,
		customers: customers,
		validator: validator.New(),
	}
}

// RegisterCustomerRoutes registers routes available to authenticated customers.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/itinerary", h.GetItinerary)
	r.Get("/trips", h.ListMyTrips)
	r.Get("/trips/{id}", h.GetMyTrip)
	r.Get("/segments/{id}", h.GetMySegment)
}

// RegisterStaffRoutes registers routes that require staff role.
func (h *Handler) RegisterStaffRoutes(r chi.Router) {
	r.Route("/staff", func(r chi.Router) {
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/services", h.ListServices)
		r.Post("/services", h.CreateService)
		r.Get("/segments/voucher/{code}", h.GetSegmentByVoucher)
		r.Post("/segments/{id}/status", h.UpdateSegmentStatus)
		r.Post("/segments/check-delayed", h.CheckDelayed)
	})
}

// GetItinerary handles GET /itinerary.
func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	itinerary, err := h.service.GetItinerary(r.Context(), customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, itinerary)
}

// ListMyTrips handles GET /trips.
func (h *Handler) ListMyTrips(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	trips, err := h.service.ListTripsForCustomer(r.Context(), customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, trips)
}

// GetMyTrip handles GET /trips/{id}.
func (h *Handler) GetMyTrip(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetTripForCustomer(r.Context(), chi.URLParam(r, "id"), customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, detail)
}

// GetMySegment handles GET /segments/{id}.
func (h *Handler) GetMySegment(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	segment, err := h.service.GetSegmentForCustomer(r.Context(), chi.URLParam(r, "id"), customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, segment)
}

// GetDashboard handles GET /staff/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context(), h.incidents)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, dashboard)
}

// ListServices handles GET /staff/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	filter := ServiceFilter{}
	if v := r.URL.Query().Get("type"); v != "" {
		serviceType := domain.ServiceType(v)
		filter.Type = &serviceType
	}
	if v := r.URL.Query().Get("location"); v != "" {
		filter.Location = &v
	}

	services, err := h.service.ListServices(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// CreateServiceRequest represents the request body for creating a catalog service.
type CreateServiceRequest struct {
	Name            string   `json:"name" validate:"required,min=1,max=200"`
	Type            string   `json:"type" validate:"required,oneof=flight transfer hotel tour activity"`
	Description     string   `json:"description"`
	Location        string   `json:"location" validate:"max=200"`
	DurationHours   *float64 `json:"duration_hours" validate:"omitempty,gt=0"`
	Includes        string   `json:"includes"`
	Recommendations string   `json:"recommendations"`
}

// CreateService handles POST /staff/services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	service := &domain.TravelService{
		Name:            req.Name,
		Type:            domain.ServiceType(req.Type),
		Description:     req.Description,
		Location:        req.Location,
		DurationHours:   req.DurationHours,
		Includes:        req.Includes,
		Recommendations: req.Recommendations,
	}
	if err := h.service.CreateService(r.Context(), service); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// GetSegmentByVoucher handles GET /staff/segments/voucher/{code}.
func (h *Handler) GetSegmentByVoucher(w http.ResponseWriter, r *http.Request) {
	segment, err := h.service.GetSegmentByVoucher(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, segment)
}

// UpdateSegmentStatusRequest represents the request body for a segment status change.
type UpdateSegmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed pending en_route completed cancelled delayed"`
}

// UpdateSegmentStatus handles POST /staff/segments/{id}/status.
func (h *Handler) UpdateSegmentStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateSegmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	segment, err := h.service.UpdateSegmentStatus(r.Context(), chi.URLParam(r, "id"), domain.SegmentStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, segment)
}

// CheckDelayed handles POST /staff/segments/check-delayed. It runs the
// delayed-service check on demand with the default threshold.
func (h *Handler) CheckDelayed(w http.ResponseWriter, r *http.Request) {
	marked, err := h.service.MarkDelayed(r.Context(), h.service.now(), DefaultCheckerConfig().Threshold)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"marked": len(marked),
	})
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
		{Error: ErrTripNotFound, Status: http.StatusNotFound},
		{Error: ErrSegmentNotFound, Status: http.StatusNotFound},
		{Error: ErrServiceNotFound, Status: http.StatusNotFound},
		{Error: ErrInvalidArgument, Status: http.StatusBadRequest},
	})
}
