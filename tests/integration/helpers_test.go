//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jhenriquezf/clmundo/internal/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	staffEmail    = "ops@clmundo.cl"
	adminEmail    = "admin@clmundo.cl"
	staffPassword = "admin123"
)

// seedStaffUsers inserts the staff and admin accounts used across tests.
func seedStaffUsers(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(staffPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}

	for email, role := range map[string]string{staffEmail: "staff", adminEmail: "admin"} {
		_, err := testDB.Exec(ctx,
			`INSERT INTO users (email, full_name, password_hash, role)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (email) DO NOTHING`,
			email, "Operaciones", string(hash), role)
		if err != nil {
			return err
		}
	}
	return nil
}

// testCustomer is a seeded customer with an authenticated client.
type testCustomer struct {
	UserID     string
	CustomerID string
	Phone      string
	Email      string
}

// counter keeps seeded phone numbers unique without collisions across tests.
var phoneCounter = time.Now().UnixNano() % 100000000

// createCustomer seeds a customer account with a unique phone and email.
func createCustomer(t *testing.T, fullName string) *testCustomer {
	t.Helper()
	ctx := context.Background()

	phoneCounter++
	phone := fmt.Sprintf("+569%08d", phoneCounter)
	email := fmt.Sprintf("c-%s@example.com", uuid.NewString()[:8])

	var userID string
	err := testDB.QueryRow(ctx,
		`INSERT INTO users (email, full_name, role) VALUES ($1, $2, 'customer') RETURNING id`,
		email, fullName).Scan(&userID)
	require.NoError(t, err)

	var customerID string
	err = testDB.QueryRow(ctx,
		`INSERT INTO customers (user_id, phone, whatsapp_notifications) VALUES ($1, $2, false) RETURNING id`,
		userID, phone).Scan(&customerID)
	require.NoError(t, err)

	return &testCustomer{
		UserID:     userID,
		CustomerID: customerID,
		Phone:      phone,
		Email:      email,
	}
}

// loginCustomer walks the one-time-code flow and returns an
// authenticated client for the customer.
func loginCustomer(t *testing.T, customer *testCustomer) *testutil.Client {
	t.Helper()
	client := newTestClient(t)

	resp, err := client.POST("/api/v1/auth/code/request", map[string]string{"phone": customer.Phone})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The code goes out over email in tests; read it from storage.
	var code string
	err = testDB.QueryRow(context.Background(),
		`SELECT code FROM login_codes WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		customer.UserID).Scan(&code)
	require.NoError(t, err)

	verifyResp, err := client.POST("/api/v1/auth/code/verify", map[string]string{
		"phone": customer.Phone,
		"code":  code,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, verifyResp.StatusCode)

	var result struct {
		Data struct {
			Tokens struct {
				AccessToken string `json:"access_token"`
			} `json:"tokens"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, verifyResp, &result)
	require.NotEmpty(t, result.Data.Tokens.AccessToken)

	client.Token = result.Data.Tokens.AccessToken
	return client
}

// staffClient returns a client authenticated as operations staff.
func staffClient(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient(t)
	client.LoginAs(t, staffEmail, staffPassword)
	return client
}

// createTrip seeds a trip covering today for the customer.
func createTrip(t *testing.T, customerID string, startOffset, endOffset int) string {
	t.Helper()

	start := time.Now().AddDate(0, 0, startOffset).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, endOffset).Format("2006-01-02")

	var tripID string
	err := testDB.QueryRow(context.Background(),
		`INSERT INTO trips (customer_id, destination, start_date, end_date, status)
		 VALUES ($1, 'San Pedro de Atacama', $2, $3, 'confirmed') RETURNING id`,
		customerID, start, end).Scan(&tripID)
	require.NoError(t, err)
	return tripID
}

// createService seeds a travel service.
func createService(t *testing.T, name, serviceType string) string {
	t.Helper()

	var serviceID string
	err := testDB.QueryRow(context.Background(),
		`INSERT INTO travel_services (name, type, location)
		 VALUES ($1, $2, 'Atacama') RETURNING id`,
		name, serviceType).Scan(&serviceID)
	require.NoError(t, err)
	return serviceID
}

// createSegment seeds a trip segment and returns its ID and voucher code.
func createSegment(t *testing.T, tripID, serviceID string, scheduledAt time.Time, status string) (id, voucher string) {
	t.Helper()

	voucher = "V-" + uuid.NewString()[:13]
	err := testDB.QueryRow(context.Background(),
		`INSERT INTO trip_segments (trip_id, service_id, scheduled_at, voucher_code, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		tripID, serviceID, scheduledAt, voucher, status).Scan(&id)
	require.NoError(t, err)
	return id, voucher
}

// segmentFixture seeds customer + trip + service + segment in one call.
func segmentFixture(t *testing.T, scheduledAt time.Time, status string) (*testCustomer, string) {
	t.Helper()

	customer := createCustomer(t, "Ana Silva")
	tripID := createTrip(t, customer.CustomerID, -1, 3)
	serviceID := createService(t, "Traslado Aeropuerto", "transfer")
	segmentID, _ := createSegment(t, tripID, serviceID, scheduledAt, status)
	return customer, segmentID
}

// reportIncident reports an incident through the API and returns its ID.
func reportIncident(t *testing.T, client *testutil.Client, segmentID string, payload map[string]interface{}) string {
	t.Helper()

	if payload == nil {
		payload = map[string]interface{}{}
	}
	if _, ok := payload["title"]; !ok {
		payload["title"] = "Bus llegó tarde"
	}
	if _, ok := payload["description"]; !ok {
		payload["description"] = "El transfer no llegó a la hora acordada"
	}

	resp, err := client.POST(fmt.Sprintf("/api/v1/segments/%s/incidents", segmentID), payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.NotEmpty(t, result.Data.ID)
	return result.Data.ID
}

// transitionIncident moves an incident to the given status as staff.
func transitionIncident(t *testing.T, client *testutil.Client, incidentID, status string) *http.Response {
	t.Helper()

	resp, err := client.POST(
		fmt.Sprintf("/api/v1/staff/incidents/%s/transition", incidentID),
		map[string]string{"status": status},
	)
	require.NoError(t, err)
	return resp
}

// backdateIncident rewrites reported_at so SLA checks see an old incident.
func backdateIncident(t *testing.T, incidentID string, age time.Duration) {
	t.Helper()

	_, err := testDB.Exec(context.Background(),
		`UPDATE incidents SET reported_at = $2 WHERE id = $1`,
		incidentID, time.Now().Add(-age))
	require.NoError(t, err)
}
