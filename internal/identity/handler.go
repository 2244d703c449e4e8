package identity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/pkg/httputil"
)

// Handler handles HTTP requests for authentication and profiles.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers unauthenticated auth routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/code/request", h.RequestCode)
		r.Post("/code/verify", h.VerifyCode)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
	})
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Patch("/me/preferences", h.UpdatePreferences)
}

// UserView is the public representation of a user account.
type UserView struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

func userView(user *domain.User) UserView {
	return UserView{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}
}

// SessionResponse is returned on successful authentication.
type SessionResponse struct {
	User   UserView   `json:"user"`
	Tokens *TokenPair `json:"tokens"`
}

// RequestCodeRequest represents the request body for requesting a login code.
type RequestCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=8,max=20"`
}

// RequestCode handles POST /auth/code/request. The response does not
// reveal whether the phone number belongs to a customer.
func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.RequestLoginCode(r.Context(), req.Phone); err != nil && !errors.Is(err, ErrCustomerNotFound) {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// VerifyCodeRequest represents the request body for verifying a login code.
type VerifyCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=8,max=20"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyCode handles POST /auth/code/verify.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, tokens, err := h.service.VerifyLoginCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, SessionResponse{User: userView(user), Tokens: tokens})
}

// LoginRequest represents the request body for staff password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, tokens, err := h.service.LoginStaff(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, SessionResponse{User: userView(user), Tokens: tokens})
}

// RefreshRequest represents the request body for refreshing a session.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	tokens, err := h.service.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.RefreshToken != "" {
		if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// MeResponse is the authenticated account with its customer profile,
// when one exists.
type MeResponse struct {
	User     UserView         `json:"user"`
	Customer *domain.Customer `json:"customer,omitempty"`
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := MeResponse{User: userView(user)}
	if customer, err := h.service.GetCustomerByUserID(r.Context(), userID); err == nil {
		resp.Customer = customer
	}

	httputil.Success(w, http.StatusOK, resp)
}

// UpdatePreferencesRequest represents a partial profile update.
type UpdatePreferencesRequest struct {
	Phone             *string `json:"phone" validate:"omitempty,max=20"`
	EmergencyContact  *string `json:"emergency_contact" validate:"omitempty,max=200"`
	WhatsAppEnabled   *bool   `json:"whatsapp_notifications"`
	WhatsAppReminders *bool   `json:"whatsapp_reminders"`
}

// UpdatePreferences handles PATCH /me/preferences.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	customer, err := h.service.UpdatePreferences(r.Context(), httputil.GetUserID(r.Context()), PreferencesInput{
		Phone:             req.Phone,
		EmergencyContact:  req.EmergencyContact,
		WhatsAppEnabled:   req.WhatsAppEnabled,
		WhatsAppReminders: req.WhatsAppReminders,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, customer)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrUserNotFound, Status: http.StatusNotFound},
		{Error: ErrCustomerNotFound, Status: http.StatusNotFound},
		{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
		{Error: ErrInvalidCode, Status: http.StatusUnauthorized},
		{Error: ErrInvalidToken, Status: http.StatusUnauthorized},
		{Error: ErrTooManyAttempts, Status: http.StatusTooManyRequests},
	})
}
