package reserve

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rdysatrio/go-flash-reserve/internal/orders"
)

// HoldStore: kontrak minimal ke reservation store (dipenuhi *holds.Store).
type HoldStore interface {
	Reserve(ctx context.Context, userID, sku string, qty, totalStock int, ttl time.Duration) (int, error)
	Cancel(ctx context.Context, userID, sku string, qty int) (int, error)
	CancelAll(ctx context.Context, userID, sku string) (int, error)
	Held(ctx context.Context, userID, sku string) (int, error)
	Aggregate(ctx context.Context, sku string) (int, error)
	Holds(ctx context.Context, userID string) ([]orders.CartItem, error)
}

type Catalog interface {
	ProductBySKU(ctx context.Context, sku string) (orders.Product, error)
}

type Users interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	Holds   HoldStore
	Catalog Catalog
	Users   Users
	TTL     time.Duration // umur hold
	Log     zerolog.Logger
}

type Availability struct {
	SKU            string `json:"sku"`
	Available      bool   `json:"available"`
	AvailableStock int    `json:"available_stock"`
	TotalStock     int    `json:"total_stock"`
	Reserved       int    `json:"reserved"`
}

// Check: baca-saja, tanpa efek samping. Ada jendela race antara baca ledger
// dan baca agregat — makanya admission sebenarnya di-recheck atomik di dalam
// script Reserve, bukan di sini.
func (s *Service) Check(ctx context.Context, sku string, qty int) (Availability, error) {
	p, err := s.product(ctx, sku)
	if err != nil {
		return Availability{}, err
	}
	agg, err := s.Holds.Aggregate(ctx, sku)
	if err != nil {
		return Availability{}, err
	}

	// Perbandingan pakai selisih mentah: SKU yg over-reserved harus lapor
	// unavailable, bukan wrap positif. Clamp cuma utk angka yg ditampilkan.
	raw := p.Stock - agg
	avail := raw
	if avail < 0 {
		avail = 0
	}
	return Availability{
		SKU:            sku,
		Available:      raw >= qty,
		AvailableStock: avail,
		TotalStock:     p.Stock,
		Reserved:       agg,
	}, nil
}

// Reserve satu SKU. totalStock dioper ke script; script yg memutuskan.
func (s *Service) Reserve(ctx context.Context, userID, sku string, qty int) (int, error) {
	if sku == "" || qty <= 0 {
		return 0, &orders.InvalidItemError{Index: 0, SKU: sku, Qty: qty}
	}
	if err := s.gateUser(ctx, userID); err != nil {
		return 0, err
	}
	p, err := s.product(ctx, sku)
	if err != nil {
		return 0, err
	}
	return s.Holds.Reserve(ctx, userID, sku, qty, p.Stock, s.TTL)
}

// ReserveCart: all-or-nothing lewat reservasi sekuensial + kompensasi.
// Begitu ada item yg gagal, semua yg sudah commit di batch ini di-cancel
// (best-effort); error pemicunya tetap yg dipropagasi. Ini BUKAN commit
// multi-key linearizable — caller lain bisa lihat over-reservation transien
// di SKU yg sedang di-rollback.
func (s *Service) ReserveCart(ctx context.Context, userID string, items []orders.CartItem) ([]orders.CartItem, error) {
	if err := s.gateUser(ctx, userID); err != nil {
		return nil, err
	}

	var committed []orders.CartItem
	for i, it := range items {
		if it.SKU == "" || it.Qty <= 0 {
			s.rollback(ctx, userID, committed)
			return nil, &orders.InvalidItemError{Index: i, SKU: it.SKU, Qty: it.Qty}
		}
		p, err := s.product(ctx, it.SKU)
		if err != nil {
			s.rollback(ctx, userID, committed)
			return nil, err
		}
		if _, err := s.Holds.Reserve(ctx, userID, it.SKU, it.Qty, p.Stock, s.TTL); err != nil {
			s.rollback(ctx, userID, committed)
			return nil, err
		}
		committed = append(committed, it)
	}
	return committed, nil
}

// rollback: cancel qty yg di-reserve batch ini saja (bukan CancelAll —
// user bisa punya hold lama di SKU yg sama). Kegagalan di-log lalu ditelan;
// sisa hold toh bakal expire sendiri via TTL.
func (s *Service) rollback(ctx context.Context, userID string, committed []orders.CartItem) {
	for i := len(committed) - 1; i >= 0; i-- {
		it := committed[i]
		if _, err := s.Holds.Cancel(ctx, userID, it.SKU, it.Qty); err != nil {
			s.Log.Error().Err(err).
				Str("user_id", userID).
				Str("sku", it.SKU).
				Int("qty", it.Qty).
				Msg("rollback cancel failed, hold will expire via TTL")
		}
	}
}

// Cancel: qty <= 0 berarti batalkan semuanya. Hold yg sudah tidak ada
// bukan error — balikan 0.
func (s *Service) Cancel(ctx context.Context, userID, sku string, qty int) (int, error) {
	if sku == "" {
		return 0, &orders.InvalidItemError{Index: 0, SKU: sku, Qty: qty}
	}
	if err := s.gateUser(ctx, userID); err != nil {
		return 0, err
	}
	if qty <= 0 {
		return s.Holds.CancelAll(ctx, userID, sku)
	}
	return s.Holds.Cancel(ctx, userID, sku, qty)
}

// ListHolds: snapshot hold hidup user (tanpa entry expired).
func (s *Service) ListHolds(ctx context.Context, userID string) ([]orders.CartItem, error) {
	if err := s.gateUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.Holds.Holds(ctx, userID)
}

func (s *Service) gateUser(ctx context.Context, userID string) error {
	ok, err := s.Users.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", orders.ErrUserNotFound, userID)
	}
	return nil
}

// product: produk non-aktif diperlakukan sama dgn tidak ada.
func (s *Service) product(ctx context.Context, sku string) (orders.Product, error) {
	p, err := s.Catalog.ProductBySKU(ctx, sku)
	if err != nil {
		return orders.Product{}, err
	}
	if !p.IsActive {
		return orders.Product{}, fmt.Errorf("%w: %s (inactive)", orders.ErrProductNotFound, sku)
	}
	return p, nil
}
