// Package whatsapp provides WhatsApp message sending via the Twilio
// REST API.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jhenriquezf/clmundo/internal/notifications"
	"golang.org/x/time/rate"
)

const (
	defaultAPIBaseURL = "https://api.twilio.com"
	defaultTimeout    = 10 * time.Second
	defaultRateLimit  = 1.0
)

// Config holds WhatsApp sender configuration.
type Config struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	FromNumber string // e.g. "whatsapp:+14155238886"
	APIBaseURL string
	RateLimit  float64 // messages per second
	Timeout    time.Duration
}

// Sender implements WhatsApp message sending via Twilio.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new WhatsApp sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.AccountSID == "" {
			return nil, errors.New("whatsapp sender: account SID is required when enabled")
		}
		if config.AuthToken == "" {
			return nil, errors.New("whatsapp sender: auth token is required when enabled")
		}
		if config.FromNumber == "" {
			return nil, errors.New("whatsapp sender: from number is required when enabled")
		}
	}

	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("whatsapp sender configured",
		"enabled", config.Enabled,
		"from_number", config.FromNumber,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() notifications.Channel {
	return notifications.ChannelWhatsApp
}

// Send sends a WhatsApp message to a single phone number. Message.To
// holds the phone number; numbers without a country code default to
// Chile (+56).
func (s *Sender) Send(ctx context.Context, message notifications.Message) error {
	if !s.config.Enabled {
		slog.Warn("whatsapp sender disabled, skipping send")
		return nil
	}

	phone := NormalizePhone(message.To)
	if phone == "" {
		return &PermanentError{Message: "recipient phone is empty"}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body := message.Body
	if message.Subject != "" {
		body = fmt.Sprintf("*%s*\n\n%s", message.Subject, message.Body)
	}

	form := url.Values{}
	form.Set("From", s.config.FromNumber)
	form.Set("To", "whatsapp:"+phone)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		s.config.APIBaseURL, s.config.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp, phone)
}

func (s *Sender) handleResponse(resp *http.Response, phone string) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		slog.Debug("whatsapp message sent", "to", maskPhone(phone))
		return nil

	case resp.StatusCode == http.StatusBadRequest:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("bad request: %s", string(body)),
		}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &PermanentError{
			Code:    resp.StatusCode,
			Message: "invalid credentials",
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: "rate limited",
		}

	case resp.StatusCode >= 500:
		return &RetryableError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server error: %s", string(body)),
		}

	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// NormalizePhone strips formatting characters and prepends the Chilean
// country code when the number has none.
func NormalizePhone(phone string) string {
	var clean strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' || c == '+' {
			clean.WriteRune(c)
		}
	}

	normalized := clean.String()
	if normalized == "" || strings.HasPrefix(normalized, "+") {
		return normalized
	}

	if strings.HasPrefix(normalized, "569") {
		return "+" + normalized
	}
	return "+56" + normalized
}

// maskPhone hides part of the number for logging.
func maskPhone(phone string) string {
	if len(phone) > 6 {
		return phone[:4] + "****" + phone[len(phone)-2:]
	}
	return "****"
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("whatsapp error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("whatsapp error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("whatsapp error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("whatsapp error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
