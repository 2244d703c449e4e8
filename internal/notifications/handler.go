package notifications

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/pkg/httputil"
)

// CustomerResolver resolves the customer profile for an authenticated user.
type CustomerResolver interface {
	GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error)
}

// Pagination constants.
const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

// Handler handles HTTP requests for the notification feed.
type Handler struct {
	service   *Service
	customers CustomerResolver
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service, customers CustomerResolver) *Handler {
	return &Handler{
		service:   service,
		customers: customers,
	}
}

// RegisterCustomerRoutes registers routes available to authenticated customers.
func (h *Handler) RegisterCustomerRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Get("/unread-count", h.GetUnreadCount)
		r.Post("/{id}/read", h.MarkRead)
		r.Post("/read-all", h.MarkAllRead)
	})
}

// ListNotifications handles GET /notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	limit := DefaultFeedLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = min(parsed, MaxFeedLimit)
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	list, err := h.service.ListForCustomer(r.Context(), customer.ID, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// GetUnreadCount handles GET /notifications/unread-count.
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), customer.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), chi.URLParam(r, "id"), customer.ID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.requireCustomer(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAllRead(r.Context(), customer.ID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
		{Error: ErrNotificationNotFound, Status: http.StatusNotFound},
	})
}
