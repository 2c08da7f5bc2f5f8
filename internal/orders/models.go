package orders

import "time"

type Product struct {
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	PriceCents int       `json:"price_cents"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Order struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Status     Status    `json:"status"`
	TotalCents int       `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

type OrderItem struct {
	OrderID    string `json:"order_id"`
	SKU        string `json:"sku"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"` // snapshot harga saat checkout
}

type Status string

const (
	// Order ditulis langsung final; tidak ada state machine di sini.
	StatusCompleted Status = "COMPLETED"
)

// CartItem: permintaan reserve dari client.
type CartItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// CartLine: hold yg masih hidup, di-join dgn data produk utk checkout.
type CartLine struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}
