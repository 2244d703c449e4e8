//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jhenriquezf/clmundo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type segmentView struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	ServiceName string  `json:"service_name"`
	ServiceType string  `json:"service_type"`
	VoucherCode string  `json:"voucher_code"`
	ActualAt    *string `json:"actual_at"`
}

func TestGetItinerary_SplitsTodayAndUpcoming(t *testing.T) {
	customer := createCustomer(t, "Ana Silva")
	tripID := createTrip(t, customer.CustomerID, -1, 5)
	serviceID := createService(t, "Tour Valle de la Luna", "tour")

	now := time.Now()
	todaySegment, _ := createSegment(t, tripID, serviceID, now.Add(2*time.Hour), "confirmed")
	tomorrowSegment, _ := createSegment(t, tripID, serviceID, now.Add(26*time.Hour), "pending")

	client := loginCustomer(t, customer)
	resp, err := client.GET("/api/v1/itinerary")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Trip struct {
				ID string `json:"id"`
			} `json:"trip"`
			Today    []segmentView `json:"today"`
			Upcoming []segmentView `json:"upcoming"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	assert.Equal(t, tripID, result.Data.Trip.ID)
	require.Len(t, result.Data.Today, 1)
	assert.Equal(t, todaySegment, result.Data.Today[0].ID)
	require.Len(t, result.Data.Upcoming, 1)
	assert.Equal(t, tomorrowSegment, result.Data.Upcoming[0].ID)
}

func TestGetItinerary_NoActiveTrip(t *testing.T) {
	customer := createCustomer(t, "Ana Silva")
	client := loginCustomer(t, customer)

	resp, err := client.GET("/api/v1/itinerary")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Today    []segmentView `json:"today"`
			Upcoming []segmentView `json:"upcoming"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Empty(t, result.Data.Today)
	assert.Empty(t, result.Data.Upcoming)
}

func TestGetTrip_OwnershipEnforced(t *testing.T) {
	customer := createCustomer(t, "Ana Silva")
	tripID := createTrip(t, customer.CustomerID, 0, 3)

	other := loginCustomer(t, createCustomer(t, "Pedro Rojas"))
	resp, err := other.WithoutValidation().GET("/api/v1/trips/" + tripID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateSegmentStatus_CompletedStampsActualAt(t *testing.T) {
	_, segmentID := segmentFixture(t, time.Now(), "en_route")
	staff := staffClient(t)

	resp, err := staff.POST(fmt.Sprintf("/api/v1/staff/segments/%s/status", segmentID), map[string]string{
		"status": "completed",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data segmentView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "completed", result.Data.Status)
	assert.NotNil(t, result.Data.ActualAt)
}

func TestUpdateSegmentStatus_NotifiesCustomer(t *testing.T) {
	customer, segmentID := segmentFixture(t, time.Now(), "confirmed")
	staff := staffClient(t)

	resp, err := staff.POST(fmt.Sprintf("/api/v1/staff/segments/%s/status", segmentID), map[string]string{
		"status": "en_route",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	client := loginCustomer(t, customer)
	feedResp, err := client.GET("/api/v1/notifications")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, feedResp.StatusCode)

	var feed struct {
		Data []struct {
			Title   string `json:"title"`
			Message string `json:"message"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, feedResp, &feed)
	require.NotEmpty(t, feed.Data)
	assert.Contains(t, feed.Data[0].Title, "en camino")
}

func TestGetSegmentByVoucher(t *testing.T) {
	_, segmentID := segmentFixture(t, time.Now(), "confirmed")
	staff := staffClient(t)

	var voucher string
	err := testDB.QueryRow(context.Background(),
		`SELECT voucher_code FROM trip_segments WHERE id = $1`, segmentID).Scan(&voucher)
	require.NoError(t, err)

	resp, err := staff.GET("/api/v1/staff/segments/voucher/" + voucher)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data segmentView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, segmentID, result.Data.ID)
	assert.Equal(t, voucher, result.Data.VoucherCode)
}

func TestCheckDelayed_MarksLateSegments(t *testing.T) {
	customer, segmentID := segmentFixture(t, time.Now().Add(-30*time.Minute), "confirmed")
	staff := staffClient(t)

	resp, err := staff.POST("/api/v1/staff/segments/check-delayed", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Marked int `json:"marked"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.GreaterOrEqual(t, result.Data.Marked, 1)

	var status string
	err = testDB.QueryRow(context.Background(),
		`SELECT status FROM trip_segments WHERE id = $1`, segmentID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "delayed", status)

	// The customer is told about the delay.
	client := loginCustomer(t, customer)
	feedResp, err := client.GET("/api/v1/notifications")
	require.NoError(t, err)
	var feed struct {
		Data []struct {
			Title string `json:"title"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, feedResp, &feed)
	require.NotEmpty(t, feed.Data)
	assert.Contains(t, feed.Data[0].Title, "atrasado")
}

func TestDashboard(t *testing.T) {
	customer := createCustomer(t, "Ana Silva")
	tripID := createTrip(t, customer.CustomerID, 0, 2)
	flightID := createService(t, "Vuelo SCL-CJC", "flight")
	transferID := createService(t, "Traslado Hotel", "transfer")

	createSegment(t, tripID, flightID, time.Now().Add(time.Hour), "confirmed")
	createSegment(t, tripID, transferID, time.Now().Add(2*time.Hour), "en_route")

	staff := staffClient(t)
	resp, err := staff.GET("/api/v1/staff/dashboard")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Arrivals        []segmentView `json:"arrivals"`
			EnRoute         []segmentView `json:"en_route"`
			ActiveIncidents int           `json:"active_incidents"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.NotEmpty(t, result.Data.Arrivals)
	assert.NotEmpty(t, result.Data.EnRoute)
}

func TestCreateService(t *testing.T) {
	staff := staffClient(t)

	resp, err := staff.POST("/api/v1/staff/services", map[string]interface{}{
		"name":     "Tour Geysers del Tatio",
		"type":     "tour",
		"location": "Atacama",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.NotEmpty(t, result.Data.ID)
	assert.Equal(t, "tour", result.Data.Type)
}
