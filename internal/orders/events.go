package orders

import (
	"encoding/json"
	"time"
)

const (
	EventCheckoutCompleted  = "CheckoutCompleted"
	EventCheckoutIncomplete = "CheckoutIncomplete"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "reserve-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload per event ----

type CheckoutCompletedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     string     `json:"user_id"`
	Items      []CartLine `json:"items"`
	TotalCents int        `json:"total_cents"`
}

// CheckoutIncompletePayload: jejak audit utk checkout yg macet setelah
// order-write. Janitor/operator pakai ini buat rekonsiliasi.
type CheckoutIncompletePayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Step    string `json:"step"`
	SKU     string `json:"sku"`
	Reason  string `json:"reason"`
}
