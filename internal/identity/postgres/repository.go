// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/identity"
)

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, full_name, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Password,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// customerColumns joins users for the customer's name and email.
const customerColumns = `
	c.id, c.user_id, u.full_name, u.email, c.phone, c.emergency_contact,
	c.whatsapp_notifications, c.whatsapp_reminders, c.created_at
`

const customerJoins = `
	FROM customers c
	JOIN users u ON u.id = c.user_id
`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var customer domain.Customer
	err := row.Scan(
		&customer.ID,
		&customer.UserID,
		&customer.FullName,
		&customer.Email,
		&customer.Phone,
		&customer.EmergencyContact,
		&customer.WhatsAppEnabled,
		&customer.WhatsAppReminders,
		&customer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerByID retrieves a customer profile by ID.
func (r *Repository) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + customerJoins + ` WHERE c.id = $1`
	return r.getCustomer(ctx, query, id)
}

// GetCustomerByUserID retrieves the customer profile attached to a user.
func (r *Repository) GetCustomerByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + customerJoins + ` WHERE c.user_id = $1`
	return r.getCustomer(ctx, query, userID)
}

// GetCustomerByPhone retrieves a customer profile by normalized phone number.
func (r *Repository) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + customerJoins + ` WHERE c.phone = $1`
	return r.getCustomer(ctx, query, phone)
}

func (r *Repository) getCustomer(ctx context.Context, query string, arg any) (*domain.Customer, error) {
	customer, err := scanCustomer(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

// UpdateCustomer updates the customer's contact details and preferences.
func (r *Repository) UpdateCustomer(ctx context.Context, customer *domain.Customer) error {
	query := `
		UPDATE customers
		SET phone = $2, emergency_contact = $3,
		    whatsapp_notifications = $4, whatsapp_reminders = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		customer.ID,
		customer.Phone,
		customer.EmergencyContact,
		customer.WhatsAppEnabled,
		customer.WhatsAppReminders,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrCustomerNotFound
	}
	return nil
}

// SaveRefreshToken persists a refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, token.Token, token.UserID, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a refresh token.
func (r *Repository) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT token, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1`

	var rt domain.RefreshToken
	err := r.db.QueryRow(ctx, query, token).Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &rt, nil
}

// DeleteRefreshToken removes a refresh token.
func (r *Repository) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteUserRefreshTokens removes all refresh tokens for a user.
func (r *Repository) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return nil
}

// CreateLoginCode persists a one-time login code.
func (r *Repository) CreateLoginCode(ctx context.Context, code *domain.LoginCode) error {
	query := `
		INSERT INTO login_codes (user_id, code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, code.UserID, code.Code, code.ExpiresAt).
		Scan(&code.ID, &code.CreatedAt)
	if err != nil {
		return fmt.Errorf("create login code: %w", err)
	}
	return nil
}

// GetActiveLoginCode retrieves the most recent unused, unexpired login
// code for a user.
func (r *Repository) GetActiveLoginCode(ctx context.Context, userID string, now time.Time) (*domain.LoginCode, error) {
	query := `
		SELECT id, user_id, code, attempts, expires_at, used_at, created_at
		FROM login_codes
		WHERE user_id = $1 AND used_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`

	var lc domain.LoginCode
	err := r.db.QueryRow(ctx, query, userID, now).Scan(
		&lc.ID,
		&lc.UserID,
		&lc.Code,
		&lc.Attempts,
		&lc.ExpiresAt,
		&lc.UsedAt,
		&lc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrInvalidCode
		}
		return nil, fmt.Errorf("get active login code: %w", err)
	}
	return &lc, nil
}

// IncrementLoginCodeAttempts records a failed verification attempt.
func (r *Repository) IncrementLoginCodeAttempts(ctx context.Context, codeID string) error {
	_, err := r.db.Exec(ctx, `UPDATE login_codes SET attempts = attempts + 1 WHERE id = $1`, codeID)
	if err != nil {
		return fmt.Errorf("increment login code attempts: %w", err)
	}
	return nil
}

// MarkLoginCodeUsed consumes a login code.
func (r *Repository) MarkLoginCodeUsed(ctx context.Context, codeID string, usedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE login_codes SET used_at = $2 WHERE id = $1 AND used_at IS NULL`,
		codeID, usedAt)
	if err != nil {
		return fmt.Errorf("mark login code used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrInvalidCode
	}
	return nil
}
