package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSender_Defaults(t *testing.T) {
	sender, err := NewSender(Config{URL: "https://hooks.example.com/x"})

	require.NoError(t, err)
	assert.Equal(t, defaultUsername, sender.config.Username)
	assert.Equal(t, defaultTimeout, sender.config.Timeout)
	assert.NotNil(t, sender.httpClient)
}

func TestNewSender_RequiresURL(t *testing.T) {
	_, err := NewSender(Config{})
	assert.Error(t, err)
}

func TestNewSender_CustomConfig(t *testing.T) {
	sender, err := NewSender(Config{
		URL:      "https://hooks.example.com/x",
		Username: "ops-bot",
		IconURL:  "https://example.com/icon.png",
		Timeout:  30 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, "ops-bot", sender.config.Username)
	assert.Equal(t, "https://example.com/icon.png", sender.config.IconURL)
	assert.Equal(t, 30*time.Second, sender.config.Timeout)
}

func TestSender_Alert_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload webhookPayload
		err := json.NewDecoder(r.Body).Decode(&payload)
		require.NoError(t, err)
		assert.Contains(t, payload.Text, "Incidencia vencida")
		assert.Equal(t, defaultUsername, payload.Username)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender, err := NewSender(Config{URL: server.URL})
	require.NoError(t, err)

	err = sender.Alert(context.Background(), "inc-1", "ALERTA: Incidencia vencida #inc-1")
	assert.NoError(t, err)
}

func TestSender_Alert_BadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid payload"))
	}))
	defer server.Close()

	sender, err := NewSender(Config{URL: server.URL})
	require.NoError(t, err)

	err = sender.Alert(context.Background(), "inc-1", "message")

	require.Error(t, err)
	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, http.StatusBadRequest, permErr.Code)
	assert.False(t, permErr.IsRetryable())
}

func TestSender_Alert_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender, err := NewSender(Config{URL: server.URL})
	require.NoError(t, err)

	err = sender.Alert(context.Background(), "inc-1", "message")

	require.Error(t, err)
	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.True(t, retryErr.IsRetryable())
}

func TestSender_Alert_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sender, err := NewSender(Config{URL: server.URL})
	require.NoError(t, err)

	err = sender.Alert(context.Background(), "inc-1", "message")

	require.Error(t, err)
	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.True(t, retryErr.IsRetryable())
}
