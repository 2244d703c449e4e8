package domain

import "time"

// Notification is an in-app message for a customer. Rows are append-only;
// only the read flag is ever mutated, and only by the owning customer.
type Notification struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}
