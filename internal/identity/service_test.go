package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users     map[string]*domain.User
	customers map[string]*domain.Customer
	codes     []*domain.LoginCode

	updatedCustomer *domain.Customer
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:     make(map[string]*domain.User),
		customers: make(map[string]*domain.Customer),
	}
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	if c, ok := m.customers[id]; ok {
		return c, nil
	}
	return nil, ErrCustomerNotFound
}

func (m *mockRepository) GetCustomerByUserID(_ context.Context, userID string) (*domain.Customer, error) {
	for _, c := range m.customers {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (m *mockRepository) GetCustomerByPhone(_ context.Context, phone string) (*domain.Customer, error) {
	for _, c := range m.customers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (m *mockRepository) UpdateCustomer(_ context.Context, customer *domain.Customer) error {
	m.updatedCustomer = customer
	return nil
}

func (m *mockRepository) SaveRefreshToken(_ context.Context, _ *domain.RefreshToken) error {
	return nil
}

func (m *mockRepository) GetRefreshToken(_ context.Context, _ string) (*domain.RefreshToken, error) {
	return nil, ErrInvalidToken
}

func (m *mockRepository) DeleteRefreshToken(_ context.Context, _ string) error {
	return nil
}

func (m *mockRepository) DeleteUserRefreshTokens(_ context.Context, _ string) error {
	return nil
}

func (m *mockRepository) CreateLoginCode(_ context.Context, code *domain.LoginCode) error {
	code.ID = "code-1"
	code.CreatedAt = time.Now()
	m.codes = append(m.codes, code)
	return nil
}

func (m *mockRepository) GetActiveLoginCode(_ context.Context, userID string, now time.Time) (*domain.LoginCode, error) {
	for i := len(m.codes) - 1; i >= 0; i-- {
		lc := m.codes[i]
		if lc.UserID == userID && lc.UsedAt == nil && lc.ExpiresAt.After(now) {
			return lc, nil
		}
	}
	return nil, ErrInvalidCode
}

func (m *mockRepository) IncrementLoginCodeAttempts(_ context.Context, codeID string) error {
	for _, lc := range m.codes {
		if lc.ID == codeID {
			lc.Attempts++
		}
	}
	return nil
}

func (m *mockRepository) MarkLoginCodeUsed(_ context.Context, codeID string, usedAt time.Time) error {
	for _, lc := range m.codes {
		if lc.ID == codeID && lc.UsedAt == nil {
			lc.UsedAt = &usedAt
			return nil
		}
	}
	return ErrInvalidCode
}

// mockAuthenticator implements Authenticator for testing.
type mockAuthenticator struct{}

func (m *mockAuthenticator) GenerateTokens(_ context.Context, _ *domain.User) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) RefreshTokens(_ context.Context, _ string) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) RevokeRefreshToken(_ context.Context, _ string) error {
	return nil
}

// mockCodeSender implements CodeSender for testing.
type mockCodeSender struct {
	customerID string
	subject    string
	body       string
	err        error
}

func (m *mockCodeSender) SendToCustomer(_ context.Context, customerID, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.customerID = customerID
	m.subject = subject
	m.body = body
	return nil
}

func serviceFixture() (*Service, *mockRepository, *mockCodeSender) {
	repo := newMockRepository()
	sender := &mockCodeSender{}
	service := NewService(repo, &mockAuthenticator{}, sender)

	repo.users["user-1"] = &domain.User{
		ID:       "user-1",
		Email:    "ana@example.com",
		FullName: "Ana Silva",
		Role:     domain.RoleCustomer,
	}
	repo.customers["customer-1"] = &domain.Customer{
		ID:     "customer-1",
		UserID: "user-1",
		Phone:  "+56912345678",
	}
	return service, repo, sender
}

func TestRequestLoginCode_DeliversCode(t *testing.T) {
	service, repo, sender := serviceFixture()

	err := service.RequestLoginCode(context.Background(), "+56912345678")

	require.NoError(t, err)
	require.Len(t, repo.codes, 1)
	assert.Len(t, repo.codes[0].Code, 6)
	assert.Equal(t, "user-1", repo.codes[0].UserID)
	assert.Equal(t, "customer-1", sender.customerID)
	assert.Contains(t, sender.body, repo.codes[0].Code)
}

func TestRequestLoginCode_NormalizesPhone(t *testing.T) {
	service, repo, _ := serviceFixture()

	err := service.RequestLoginCode(context.Background(), "9 1234 5678")

	require.NoError(t, err)
	require.Len(t, repo.codes, 1)
}

func TestRequestLoginCode_UnknownPhone(t *testing.T) {
	service, repo, sender := serviceFixture()

	err := service.RequestLoginCode(context.Background(), "+56999999999")

	assert.ErrorIs(t, err, ErrCustomerNotFound)
	assert.Empty(t, repo.codes)
	assert.Empty(t, sender.customerID)
}

func TestRequestLoginCode_DeliveryFails(t *testing.T) {
	service, _, sender := serviceFixture()
	sender.err = assert.AnError

	err := service.RequestLoginCode(context.Background(), "+56912345678")

	assert.Error(t, err)
}

func TestVerifyLoginCode_Success(t *testing.T) {
	service, repo, _ := serviceFixture()
	require.NoError(t, service.RequestLoginCode(context.Background(), "+56912345678"))

	user, tokens, err := service.VerifyLoginCode(context.Background(), "+56912345678", repo.codes[0].Code)

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.NotNil(t, repo.codes[0].UsedAt)
}

func TestVerifyLoginCode_SingleUse(t *testing.T) {
	service, repo, _ := serviceFixture()
	require.NoError(t, service.RequestLoginCode(context.Background(), "+56912345678"))
	code := repo.codes[0].Code

	_, _, err := service.VerifyLoginCode(context.Background(), "+56912345678", code)
	require.NoError(t, err)

	_, _, err = service.VerifyLoginCode(context.Background(), "+56912345678", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyLoginCode_WrongCode(t *testing.T) {
	service, repo, _ := serviceFixture()
	require.NoError(t, service.RequestLoginCode(context.Background(), "+56912345678"))

	_, _, err := service.VerifyLoginCode(context.Background(), "+56912345678", "000000")

	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, 1, repo.codes[0].Attempts)
	assert.Nil(t, repo.codes[0].UsedAt)
}

func TestVerifyLoginCode_TooManyAttempts(t *testing.T) {
	service, repo, _ := serviceFixture()
	require.NoError(t, service.RequestLoginCode(context.Background(), "+56912345678"))
	repo.codes[0].Attempts = maxCodeAttempts

	_, _, err := service.VerifyLoginCode(context.Background(), "+56912345678", repo.codes[0].Code)

	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestVerifyLoginCode_Expired(t *testing.T) {
	service, repo, _ := serviceFixture()
	require.NoError(t, service.RequestLoginCode(context.Background(), "+56912345678"))
	repo.codes[0].ExpiresAt = time.Now().Add(-time.Minute)

	_, _, err := service.VerifyLoginCode(context.Background(), "+56912345678", repo.codes[0].Code)

	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyLoginCode_UnknownPhone(t *testing.T) {
	service, _, _ := serviceFixture()

	_, _, err := service.VerifyLoginCode(context.Background(), "+56999999999", "123456")

	assert.ErrorIs(t, err, ErrInvalidCode)
}

func staffUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:       "staff-1",
		Email:    "ops@clmundo.cl",
		Password: string(hash),
		Role:     role,
	}
}

func TestLoginStaff_Success(t *testing.T) {
	service, repo, _ := serviceFixture()
	repo.users["staff-1"] = staffUser(t, domain.RoleStaff)

	user, tokens, err := service.LoginStaff(context.Background(), "ops@clmundo.cl", "secret123")

	require.NoError(t, err)
	assert.Equal(t, "staff-1", user.ID)
	assert.Equal(t, "refresh", tokens.RefreshToken)
}

func TestLoginStaff_WrongPassword(t *testing.T) {
	service, repo, _ := serviceFixture()
	repo.users["staff-1"] = staffUser(t, domain.RoleStaff)

	_, _, err := service.LoginStaff(context.Background(), "ops@clmundo.cl", "wrong")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginStaff_UnknownEmail(t *testing.T) {
	service, _, _ := serviceFixture()

	_, _, err := service.LoginStaff(context.Background(), "ghost@clmundo.cl", "secret123")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginStaff_CustomerRoleRejected(t *testing.T) {
	service, repo, _ := serviceFixture()
	repo.users["staff-1"] = staffUser(t, domain.RoleCustomer)

	_, _, err := service.LoginStaff(context.Background(), "ops@clmundo.cl", "secret123")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdatePreferences_PartialUpdate(t *testing.T) {
	service, repo, _ := serviceFixture()
	repo.customers["customer-1"].WhatsAppEnabled = true

	phone := "9 8765 4321"
	enabled := false
	customer, err := service.UpdatePreferences(context.Background(), "user-1", PreferencesInput{
		Phone:           &phone,
		WhatsAppEnabled: &enabled,
	})

	require.NoError(t, err)
	assert.Equal(t, "+56987654321", customer.Phone)
	assert.False(t, customer.WhatsAppEnabled)
	require.NotNil(t, repo.updatedCustomer)
}

func TestUpdatePreferences_UnknownUser(t *testing.T) {
	service, _, _ := serviceFixture()

	_, err := service.UpdatePreferences(context.Background(), "ghost", PreferencesInput{})

	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
