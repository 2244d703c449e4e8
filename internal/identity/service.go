// Package identity provides authentication and account management:
// passwordless customer login via one-time codes, password login for
// operations staff, and token refresh.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/notifications/whatsapp"
	"golang.org/x/crypto/bcrypt"
)

const (
	loginCodeTTL    = 10 * time.Minute
	maxCodeAttempts = 5
)

// TokenPair holds an access token and its refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticator issues and validates token pairs.
type Authenticator interface {
	GenerateTokens(ctx context.Context, user *domain.User) (*TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
}

// CodeSender delivers a one-time login code to a customer over their
// enabled channels.
type CodeSender interface {
	SendToCustomer(ctx context.Context, customerID, subject, body string) error
}

// Service implements authentication and account operations.
type Service struct {
	repo  Repository
	auth  Authenticator
	codes CodeSender
	now   func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, auth Authenticator, codes CodeSender) *Service {
	return &Service{
		repo:  repo,
		auth:  auth,
		codes: codes,
		now:   time.Now,
	}
}

// RequestLoginCode generates a one-time code for the customer with the
// given phone number and delivers it over their enabled channels. The
// code expires after ten minutes.
func (s *Service) RequestLoginCode(ctx context.Context, phone string) error {
	normalized := whatsapp.NormalizePhone(phone)
	if normalized == "" {
		return ErrCustomerNotFound
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, normalized)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate login code: %w", err)
	}

	loginCode := &domain.LoginCode{
		UserID:    customer.UserID,
		Code:      code,
		ExpiresAt: s.now().Add(loginCodeTTL),
	}
	if err := s.repo.CreateLoginCode(ctx, loginCode); err != nil {
		return fmt.Errorf("store login code: %w", err)
	}

	body := fmt.Sprintf("Tu código de acceso es: %s\nVence en 10 minutos.", code)
	if err := s.codes.SendToCustomer(ctx, customer.ID, "Código de acceso", body); err != nil {
		return fmt.Errorf("deliver login code: %w", err)
	}

	slog.Info("login code issued", "customer_id", customer.ID)
	return nil
}

// VerifyLoginCode exchanges a one-time code for a token pair. A code
// can be used once; after five wrong guesses it is locked out.
func (s *Service) VerifyLoginCode(ctx context.Context, phone, code string) (*domain.User, *TokenPair, error) {
	normalized := whatsapp.NormalizePhone(phone)
	if normalized == "" {
		return nil, nil, ErrInvalidCode
	}

	customer, err := s.repo.GetCustomerByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return nil, nil, ErrInvalidCode
		}
		return nil, nil, err
	}

	loginCode, err := s.repo.GetActiveLoginCode(ctx, customer.UserID, s.now())
	if err != nil {
		return nil, nil, err
	}

	if loginCode.Attempts >= maxCodeAttempts {
		return nil, nil, ErrTooManyAttempts
	}

	if loginCode.Code != code {
		if err := s.repo.IncrementLoginCodeAttempts(ctx, loginCode.ID); err != nil {
			slog.Error("failed to record login code attempt", "error", err)
		}
		return nil, nil, ErrInvalidCode
	}

	if err := s.repo.MarkLoginCodeUsed(ctx, loginCode.ID, s.now()); err != nil {
		return nil, nil, fmt.Errorf("mark login code used: %w", err)
	}

	user, err := s.repo.GetUserByID(ctx, customer.UserID)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.auth.GenerateTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	return user, tokens, nil
}

// LoginStaff authenticates an operations user by email and password.
func (s *Service) LoginStaff(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.Role.IsStaff() {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.auth.GenerateTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	return user, tokens, nil
}

// RefreshTokens exchanges a valid refresh token for a new token pair.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.auth.RefreshTokens(ctx, refreshToken)
}

// Logout revokes the given refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.auth.RevokeRefreshToken(ctx, refreshToken)
}

// GetUserByID retrieves a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// GetCustomerByUserID retrieves the customer profile attached to a user.
func (s *Service) GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	return s.repo.GetCustomerByUserID(ctx, userID)
}

// GetCustomer retrieves a customer profile by customer ID.
func (s *Service) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	return s.repo.GetCustomerByID(ctx, customerID)
}

// PreferencesInput holds a partial update of customer contact details
// and notification preferences. Nil fields are left unchanged.
type PreferencesInput struct {
	Phone             *string
	EmergencyContact  *string
	WhatsAppEnabled   *bool
	WhatsAppReminders *bool
}

// UpdatePreferences applies a partial update to the customer profile
// attached to the given user.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, input PreferencesInput) (*domain.Customer, error) {
	customer, err := s.repo.GetCustomerByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Phone != nil {
		customer.Phone = whatsapp.NormalizePhone(*input.Phone)
	}
	if input.EmergencyContact != nil {
		customer.EmergencyContact = *input.EmergencyContact
	}
	if input.WhatsAppEnabled != nil {
		customer.WhatsAppEnabled = *input.WhatsAppEnabled
	}
	if input.WhatsAppReminders != nil {
		customer.WhatsAppReminders = *input.WhatsAppReminders
	}

	if err := s.repo.UpdateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return customer, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
