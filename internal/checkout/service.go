package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/rdysatrio/go-flash-reserve/internal/kafka"
	"github.com/rdysatrio/go-flash-reserve/internal/orders"
)

// HoldStore: subset store yg dipakai checkout.
type HoldStore interface {
	Held(ctx context.Context, userID, sku string) (int, error)
	Holds(ctx context.Context, userID string) ([]orders.CartItem, error)
	Release(ctx context.Context, userID, sku string, qty int) error
}

// Ledger: katalog + user + order di Postgres (dipenuhi *orders.Repo).
type Ledger interface {
	ProductBySKU(ctx context.Context, sku string) (orders.Product, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	CreateOrder(ctx context.Context, userID string, lines []orders.CartLine) (orderID string, total int, err error)
	ReduceStock(ctx context.Context, sku string, qty int) error
}

// Publisher: kontrak producer kafka (fire-and-forget, lihat internal/kafka).
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Holds       HoldStore
	Ledger      Ledger
	Completed   Publisher // topic checkout.completed
	Incomplete  Publisher // topic checkout.incomplete
	ServiceName string
	Log         zerolog.Logger
}

type Receipt struct {
	OrderID    string            `json:"order_id"`
	Items      []orders.CartLine `json:"items"`
	TotalCents int               `json:"total_cents"`
}

// Checkout: konversi permanen hold -> order. Urutan disengaja:
// order-write dulu (crash setelahnya masih ninggalin jejak audit),
// lalu decrement ledger, terakhir release hold (crash di antaranya
// ninggalin stok sudah turun + hold basi yg expire sendiri, aman).
// Setelah order tertulis TIDAK ada kompensasi otomatis; kegagalan
// dibungkus IncompleteCheckoutError + event utk rekonsiliasi operator.
func (s *Service) Checkout(ctx context.Context, userID string) (*Receipt, error) {
	ok, err := s.Ledger.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrUserNotFound, userID)
	}

	// 1) cart = hold hidup user
	cart, err := s.Holds.Holds(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, orders.ErrEmptyCart
	}

	// 2) validasi menyeluruh: kumpulkan SEMUA pelanggaran dulu, jangan
	// pernah maju sebagian.
	var (
		lines      []orders.CartLine
		violations []orders.Violation
	)
	for _, it := range cart {
		p, perr := s.Ledger.ProductBySKU(ctx, it.SKU)
		if perr != nil {
			// cuma not-found yg jadi pelanggaran; error backend transien
			// diteruskan apa adanya, bukan disamarkan jadi salah caller
			if errors.Is(perr, orders.ErrProductNotFound) {
				violations = append(violations, orders.Violation{SKU: it.SKU, Reason: "product not found"})
				continue
			}
			return nil, perr
		}
		if !p.IsActive {
			violations = append(violations, orders.Violation{SKU: it.SKU, Reason: "product inactive"})
			continue
		}

		// re-check hold (nangkep yg expire antara baca cart dan sini)
		held, herr := s.Holds.Held(ctx, userID, it.SKU)
		if herr != nil {
			return nil, herr
		}
		if held < it.Qty {
			violations = append(violations, orders.Violation{
				SKU: it.SKU, Reason: fmt.Sprintf("reservation expired: held %d < %d", held, it.Qty),
			})
			continue
		}
		// re-check ledger (nangkep stok yg keburu dikurangi checkout lain)
		if p.Stock < it.Qty {
			violations = append(violations, orders.Violation{
				SKU: it.SKU, Reason: fmt.Sprintf("stock reduced: %d < %d", p.Stock, it.Qty),
			})
			continue
		}

		lines = append(lines, orders.CartLine{
			SKU: it.SKU, Name: p.Name, Qty: it.Qty, PriceCents: p.PriceCents, // snapshot harga
		})
	}
	if len(violations) > 0 {
		return nil, &orders.ValidationError{Violations: violations}
	}

	// 3) tulis order (status COMPLETED) sebelum sentuh stok
	orderID, total, err := s.Ledger.CreateOrder(ctx, userID, lines)
	if err != nil {
		return nil, err
	}

	// 4) decrement permanen per item; guard kedua ada di sisi DB
	for _, l := range lines {
		if err := s.Ledger.ReduceStock(ctx, l.SKU, l.Qty); err != nil {
			return nil, s.incomplete(ctx, orderID, userID, "reduce_stock", l.SKU, err)
		}
	}

	// 5) lepas hold; over-release di sini = bug, bukan kondisi bisnis
	for _, l := range lines {
		if err := s.Holds.Release(ctx, userID, l.SKU, l.Qty); err != nil {
			return nil, s.incomplete(ctx, orderID, userID, "release_hold", l.SKU, err)
		}
	}

	s.publishCompleted(orderID, userID, lines, total)
	return &Receipt{OrderID: orderID, Items: lines, TotalCents: total}, nil
}

// incomplete: bungkus jadi error kind tersendiri + publish jejak audit.
func (s *Service) incomplete(ctx context.Context, orderID, userID, step, sku string, cause error) error {
	e := &orders.IncompleteCheckoutError{OrderID: orderID, Step: step, SKU: sku, Cause: cause}
	s.Log.Error().Err(cause).
		Str("order_id", orderID).
		Str("user_id", userID).
		Str("step", step).
		Str("sku", sku).
		Msg("checkout incomplete, needs manual reconciliation")

	if s.Incomplete != nil {
		ev := s.envelope(orders.EventCheckoutIncomplete, orderID)
		ev.Payload = kafkax.MustMarshal(orders.CheckoutIncompletePayload{
			OrderID: orderID, UserID: userID, Step: step, SKU: sku, Reason: cause.Error(),
		})
		s.Incomplete.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventCheckoutIncomplete)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	return e
}

func (s *Service) publishCompleted(orderID, userID string, lines []orders.CartLine, total int) {
	if s.Completed == nil {
		return
	}
	ev := s.envelope(orders.EventCheckoutCompleted, orderID)
	ev.Payload = kafkax.MustMarshal(orders.CheckoutCompletedPayload{
		OrderID: orderID, UserID: userID, Items: lines, TotalCents: total,
	})
	s.Completed.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventCheckoutCompleted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) envelope(eventType, orderID string) orders.Envelope {
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
	}
}
