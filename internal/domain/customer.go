package domain

import "time"

// Customer is the traveler profile attached to a user account.
type Customer struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	FullName          string    `json:"full_name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone,omitempty"`
	EmergencyContact  string    `json:"emergency_contact,omitempty"`
	WhatsAppEnabled   bool      `json:"whatsapp_notifications"`
	WhatsAppReminders bool      `json:"whatsapp_reminders"`
	CreatedAt         time.Time `json:"created_at"`
}

// WantsWhatsApp reports whether outbound WhatsApp messages may be sent
// to this customer.
func (c *Customer) WantsWhatsApp() bool {
	return c.WhatsAppEnabled && c.Phone != ""
}
