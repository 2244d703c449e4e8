//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jhenriquezf/clmundo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Read    bool   `json:"read"`
}

func listNotifications(t *testing.T, client *testutil.Client) []notificationView {
	t.Helper()

	resp, err := client.GET("/api/v1/notifications")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data []notificationView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func TestNotificationFeed_ResolutionCreatesEntry(t *testing.T) {
	customer, segmentID := segmentFixture(t, time.Now(), "confirmed")
	customerClient := loginCustomer(t, customer)
	staff := staffClient(t)

	incidentID := reportIncident(t, customerClient, segmentID, nil)
	resp := transitionIncident(t, staff, incidentID, "resolved")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	feed := listNotifications(t, customerClient)
	require.Len(t, feed, 2)
	// Newest first.
	assert.Contains(t, feed[0].Message, "resuelta")
	assert.Contains(t, feed[1].Title, "Incidencia reportada")
}

func TestNotificationFeed_MarkRead(t *testing.T) {
	customer, segmentID := segmentFixture(t, time.Now(), "confirmed")
	customerClient := loginCustomer(t, customer)

	reportIncident(t, customerClient, segmentID, nil)

	feed := listNotifications(t, customerClient)
	require.Len(t, feed, 1)
	require.False(t, feed[0].Read)

	resp, err := customerClient.POST(fmt.Sprintf("/api/v1/notifications/%s/read", feed[0].ID), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	feed = listNotifications(t, customerClient)
	assert.True(t, feed[0].Read)
}

func TestNotificationFeed_MarkReadOwnershipEnforced(t *testing.T) {
	customer, segmentID := segmentFixture(t, time.Now(), "confirmed")
	customerClient := loginCustomer(t, customer)
	reportIncident(t, customerClient, segmentID, nil)

	feed := listNotifications(t, customerClient)
	require.Len(t, feed, 1)

	other := loginCustomer(t, createCustomer(t, "Pedro Rojas"))
	resp, err := other.WithoutValidation().POST(fmt.Sprintf("/api/v1/notifications/%s/read", feed[0].ID), nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Still unread for the owner.
	feed = listNotifications(t, customerClient)
	assert.False(t, feed[0].Read)
}

func TestNotificationFeed_MarkAllRead(t *testing.T) {
	customer, segmentID := segmentFixture(t, time.Now(), "confirmed")
	customerClient := loginCustomer(t, customer)

	reportIncident(t, customerClient, segmentID, nil)
	reportIncident(t, customerClient, segmentID, map[string]interface{}{"title": "Otro problema"})

	resp, err := customerClient.POST("/api/v1/notifications/read-all", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	countResp, err := customerClient.GET("/api/v1/notifications/unread-count")
	require.NoError(t, err)
	var count struct {
		Data struct {
			Unread int `json:"unread"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, countResp, &count)
	assert.Zero(t, count.Data.Unread)
}

func TestOutboundEmail_ResolutionReachesCustomer(t *testing.T) {
	customer, segmentID := segmentFixture(t, time.Now(), "confirmed")
	customerClient := loginCustomer(t, customer)
	staff := staffClient(t)

	incidentID := reportIncident(t, customerClient, segmentID, nil)
	resp := transitionIncident(t, staff, incidentID, "resolved")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Login code email plus the resolution email.
	messages, err := mailpitClient.WaitForRecipient(customer.Email, 2, 10*time.Second)
	require.NoError(t, err)

	var found bool
	for _, msg := range messages {
		if msg.Subject == "Actualización incidencia #"+incidentID {
			found = true
			assert.Contains(t, msg.Snippet, "resuelta")
		}
	}
	assert.True(t, found, "expected a resolution email, got %d messages", len(messages))
}
