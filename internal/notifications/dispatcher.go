package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jhenriquezf/clmundo/internal/domain"
)

// Channel identifies an outbound delivery channel.
type Channel string

// Outbound channels.
const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Message is an outbound message for a single recipient. To holds a
// phone number for WhatsApp and an email address for email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages over one outbound channel.
type Sender interface {
	Type() Channel
	Send(ctx context.Context, message Message) error
}

// CustomerDirectory resolves customer contact details.
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
}

// Dispatcher delivers best-effort outbound messages to customers over
// the channels they have enabled. Delivery is never transactional: the
// in-app notification is the source of truth, outbound copies may fail.
type Dispatcher struct {
	directory CustomerDirectory
	senders   map[Channel]Sender
}

// NewDispatcher creates a new outbound dispatcher.
func NewDispatcher(directory CustomerDirectory, senders ...Sender) *Dispatcher {
	senderMap := make(map[Channel]Sender)
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{
		directory: directory,
		senders:   senderMap,
	}
}

// SendToCustomer delivers a message to the customer over WhatsApp when
// the customer has it enabled, falling back to email. Returns the last
// delivery error; a customer with no reachable channel is not an error.
func (d *Dispatcher) SendToCustomer(ctx context.Context, customerID, subject, body string) error {
	customer, err := d.directory.GetCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("resolve customer contact: %w", err)
	}

	if sender, ok := d.senders[ChannelWhatsApp]; ok && customer.WantsWhatsApp() {
		if err := d.send(ctx, sender, Message{
			To:      customer.Phone,
			Subject: subject,
			Body:    body,
		}); err == nil {
			return nil
		}
		// WhatsApp failed, fall through to email.
	}

	if sender, ok := d.senders[ChannelEmail]; ok && customer.Email != "" {
		return d.send(ctx, sender, Message{
			To:      customer.Email,
			Subject: subject,
			Body:    body,
		})
	}

	slog.Debug("customer has no reachable outbound channel", "customer_id", customerID)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, message Message) error {
	start := time.Now()
	err := sender.Send(ctx, message)
	recordOutboundDuration(string(sender.Type()), time.Since(start))

	if err != nil {
		slog.Error("failed to send outbound message",
			"channel", sender.Type(),
			"error", err,
		)
		recordOutboundSent(string(sender.Type()), "failed")
		return err
	}

	recordOutboundSent(string(sender.Type()), "sent")
	return nil
}
