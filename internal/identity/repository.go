package identity

import (
	"context"
	"time"

	"github.com/jhenriquezf/clmundo/internal/domain"
)

// Repository defines the data access interface for users, customer
// profiles, sessions, and one-time login codes.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer *domain.Customer) error

	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error

	CreateLoginCode(ctx context.Context, code *domain.LoginCode) error
	GetActiveLoginCode(ctx context.Context, userID string, now time.Time) (*domain.LoginCode, error)
	IncrementLoginCodeAttempts(ctx context.Context, codeID string) error
	MarkLoginCodeUsed(ctx context.Context, codeID string, usedAt time.Time) error
}
