// Package alerts delivers escalation alerts to the operations team.
package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jhenriquezf/clmundo/internal/notifications"
)

// Channel delivers one escalation alert.
type Channel interface {
	Alert(ctx context.Context, incidentID, message string) error
}

// Fanout delivers each alert over every configured channel. All
// channels are attempted; the first error is returned.
type Fanout []Channel

// Alert sends the alert over all channels.
func (f Fanout) Alert(ctx context.Context, incidentID, message string) error {
	var firstErr error
	for _, ch := range f {
		if err := ch.Alert(ctx, incidentID, message); err != nil {
			slog.Error("alert channel failed",
				"incident_id", incidentID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// EmailSender sends a single email message.
type EmailSender interface {
	Send(ctx context.Context, message notifications.Message) error
}

// EmailChannel delivers alerts to the operations mailbox.
type EmailChannel struct {
	sender EmailSender
	to     string
}

// NewEmailChannel creates an email alert channel.
func NewEmailChannel(sender EmailSender, to string) *EmailChannel {
	return &EmailChannel{sender: sender, to: to}
}

// Alert sends the alert by email.
func (c *EmailChannel) Alert(ctx context.Context, incidentID, message string) error {
	return c.sender.Send(ctx, notifications.Message{
		To:      c.to,
		Subject: fmt.Sprintf("ALERTA: Incidencia vencida #%s", incidentID),
		Body:    message,
	})
}

// LogChannel logs alerts. It is the fallback when no delivery channel
// is configured, so SLA breaches still leave a trace.
type LogChannel struct{}

// Alert logs the alert.
func (LogChannel) Alert(_ context.Context, incidentID, message string) error {
	slog.Warn("escalation alert (no delivery channel configured)",
		"incident_id", incidentID,
		"message", message,
	)
	return nil
}
