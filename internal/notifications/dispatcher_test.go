package notifications

import (
	"context"
	"testing"

	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSender implements Sender for testing.
type mockSender struct {
	channel Channel
	sent    []Message
	err     error
}

func (m *mockSender) Type() Channel { return m.channel }

func (m *mockSender) Send(_ context.Context, message Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, message)
	return nil
}

// mockDirectory implements CustomerDirectory for testing.
type mockDirectory struct {
	customers map[string]*domain.Customer
}

func (m *mockDirectory) GetCustomer(_ context.Context, customerID string) (*domain.Customer, error) {
	if c, ok := m.customers[customerID]; ok {
		return c, nil
	}
	return nil, assert.AnError
}

func newDirectory(phone string, whatsappEnabled bool, email string) *mockDirectory {
	return &mockDirectory{customers: map[string]*domain.Customer{
		"customer-1": {
			ID:              "customer-1",
			Phone:           phone,
			WhatsAppEnabled: whatsappEnabled,
			Email:           email,
		},
	}}
}

func TestDispatcher_PrefersWhatsApp(t *testing.T) {
	whatsapp := &mockSender{channel: ChannelWhatsApp}
	email := &mockSender{channel: ChannelEmail}
	d := NewDispatcher(newDirectory("+56912345678", true, "ana@example.com"), whatsapp, email)

	err := d.SendToCustomer(context.Background(), "customer-1", "Actualización", "Tu caso fue resuelto")

	require.NoError(t, err)
	require.Len(t, whatsapp.sent, 1)
	assert.Equal(t, "+56912345678", whatsapp.sent[0].To)
	assert.Empty(t, email.sent)
}

func TestDispatcher_RespectsWhatsAppOptOut(t *testing.T) {
	whatsapp := &mockSender{channel: ChannelWhatsApp}
	email := &mockSender{channel: ChannelEmail}
	d := NewDispatcher(newDirectory("+56912345678", false, "ana@example.com"), whatsapp, email)

	err := d.SendToCustomer(context.Background(), "customer-1", "Actualización", "Tu caso fue resuelto")

	require.NoError(t, err)
	assert.Empty(t, whatsapp.sent)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "ana@example.com", email.sent[0].To)
}

func TestDispatcher_FallsBackToEmail(t *testing.T) {
	whatsapp := &mockSender{channel: ChannelWhatsApp, err: assert.AnError}
	email := &mockSender{channel: ChannelEmail}
	d := NewDispatcher(newDirectory("+56912345678", true, "ana@example.com"), whatsapp, email)

	err := d.SendToCustomer(context.Background(), "customer-1", "Actualización", "Tu caso fue resuelto")

	require.NoError(t, err)
	require.Len(t, email.sent, 1)
}

func TestDispatcher_NoReachableChannel(t *testing.T) {
	d := NewDispatcher(newDirectory("", false, ""))

	err := d.SendToCustomer(context.Background(), "customer-1", "s", "b")

	assert.NoError(t, err)
}

func TestDispatcher_UnknownCustomer(t *testing.T) {
	d := NewDispatcher(&mockDirectory{customers: map[string]*domain.Customer{}})

	err := d.SendToCustomer(context.Background(), "ghost", "s", "b")

	assert.Error(t, err)
}
