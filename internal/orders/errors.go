package orders

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds yg stabil utk dipetakan handler ke status code.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrEmptyCart       = errors.New("cart is empty")

	// ErrOverRelease: release melebihi qty yg di-hold. Ini sinyal bug
	// (cart dan reservation store desync), jangan pernah di-clamp diam-diam.
	ErrOverRelease = errors.New("release exceeds held quantity")
)

// InvalidItemError: input item dari caller tidak valid (sku kosong / qty <= 0).
type InvalidItemError struct {
	Index int
	SKU   string
	Qty   int
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid item at index %d: sku=%q qty=%d", e.Index, e.SKU, e.Qty)
}

// InsufficientStockError: admission ditolak. Available di sini sudah hasil
// re-check atomik, bukan snapshot awal — penolakan karena race dgn user lain
// sengaja tidak dibedakan dari stok yg memang kurang.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.SKU, e.Requested, e.Available)
}

// Violation: satu pelanggaran validasi checkout utk satu SKU.
type Violation struct {
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// ValidationError mengumpulkan SEMUA pelanggaran, bukan cuma yg pertama.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.SKU, v.Reason))
	}
	return "checkout validation failed: " + strings.Join(parts, "; ")
}

// IncompleteCheckoutError: order sudah tertulis tapi step setelahnya gagal.
// Tidak ada auto-compensation; error ini harus sampai ke operator utk
// rekonsiliasi manual.
type IncompleteCheckoutError struct {
	OrderID string
	Step    string // "reduce_stock" | "release_hold"
	SKU     string
	Cause   error
}

func (e *IncompleteCheckoutError) Error() string {
	return fmt.Sprintf("checkout incomplete: order %s stuck at %s (sku=%s): %v",
		e.OrderID, e.Step, e.SKU, e.Cause)
}

func (e *IncompleteCheckoutError) Unwrap() error { return e.Cause }
