package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdysatrio/go-flash-reserve/internal/holds"
	"github.com/rdysatrio/go-flash-reserve/internal/orders"
)

// ---- fakes ----

type fakeLedger struct {
	mu         sync.Mutex
	products   map[string]orders.Product
	users      map[string]bool
	orders     map[string][]orders.CartLine
	reduceErr  map[string]error // paksa ReduceStock gagal per SKU
	productErr error            // paksa ProductBySKU gagal (backend down)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		products:  map[string]orders.Product{},
		users:     map[string]bool{"alice": true},
		orders:    map[string][]orders.CartLine{},
		reduceErr: map[string]error{},
	}
}

func (f *fakeLedger) ProductBySKU(_ context.Context, sku string) (orders.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.productErr != nil {
		return orders.Product{}, f.productErr
	}
	p, ok := f.products[sku]
	if !ok {
		return orders.Product{}, fmt.Errorf("%w: %s", orders.ErrProductNotFound, sku)
	}
	return p, nil
}

func (f *fakeLedger) UserExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeLedger) CreateOrder(_ context.Context, userID string, lines []orders.CartLine) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("order-%d", len(f.orders)+1)
	f.orders[id] = lines
	total := 0
	for _, l := range lines {
		total += l.PriceCents * l.Qty
	}
	return id, total, nil
}

func (f *fakeLedger) ReduceStock(_ context.Context, sku string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reduceErr[sku]; err != nil {
		return err
	}
	p := f.products[sku]
	if p.Stock < qty {
		return &orders.InsufficientStockError{SKU: sku, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	f.products[sku] = p
	return nil
}

type capturePub struct {
	mu   sync.Mutex
	envs []orders.Envelope
}

func (c *capturePub) Publish(_, value []byte, _ ...kafkago.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var env orders.Envelope
	_ = json.Unmarshal(value, &env)
	c.envs = append(c.envs, env)
}

// fakeHoldStore: utk menstage race yg susah ditimbulkan di store beneran.
type fakeHoldStore struct {
	holds      []orders.CartItem
	held       map[string]int
	releaseErr map[string]error
	released   []orders.CartItem
}

func (f *fakeHoldStore) Holds(context.Context, string) ([]orders.CartItem, error) {
	return f.holds, nil
}

func (f *fakeHoldStore) Held(_ context.Context, _, sku string) (int, error) {
	return f.held[sku], nil
}

func (f *fakeHoldStore) Release(_ context.Context, _, sku string, qty int) error {
	if err := f.releaseErr[sku]; err != nil {
		return err
	}
	f.released = append(f.released, orders.CartItem{SKU: sku, Qty: qty})
	return nil
}

func newRealStore(t *testing.T) *holds.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s, err := holds.NewStore(context.Background(), rdb)
	require.NoError(t, err)
	return s
}

func newService(hs HoldStore, ledger Ledger, done, stuck Publisher) *Service {
	return &Service{
		Holds:       hs,
		Ledger:      ledger,
		Completed:   done,
		Incomplete:  stuck,
		ServiceName: "test",
		Log:         zerolog.Nop(),
	}
}

func activeProduct(sku string, stock, price int) orders.Product {
	return orders.Product{SKU: sku, Name: "produk " + sku, Stock: stock, PriceCents: price, IsActive: true}
}

// ---- tests ----

// Checkout sukses: hold habis dikonsumsi, stok turun persis Q, satu order.
func TestCheckoutConsumesHolds(t *testing.T) {
	ctx := context.Background()
	store := newRealStore(t)
	ledger := newFakeLedger()
	ledger.products["FLASH-001"] = activeProduct("FLASH-001", 200, 1500)
	done, stuck := &capturePub{}, &capturePub{}
	svc := newService(store, ledger, done, stuck)

	_, err := store.Reserve(ctx, "alice", "FLASH-001", 2, 200, time.Minute)
	require.NoError(t, err)

	receipt, err := svc.Checkout(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, 2, receipt.Items[0].Qty)
	assert.Equal(t, 3000, receipt.TotalCents)

	// stok ledger turun persis 2
	p, _ := ledger.ProductBySKU(ctx, "FLASH-001")
	assert.Equal(t, 198, p.Stock)

	// hold habis; cart alice kosong
	held, _ := store.Held(ctx, "alice", "FLASH-001")
	assert.Equal(t, 0, held)
	items, _ := store.Holds(ctx, "alice")
	assert.Empty(t, items)

	// persis satu order, satu event completed
	assert.Len(t, ledger.orders, 1)
	require.Len(t, done.envs, 1)
	assert.Equal(t, orders.EventCheckoutCompleted, done.envs[0].EventType)
	assert.Equal(t, receipt.OrderID, done.envs[0].CorrelationID)
	assert.Empty(t, stuck.envs)
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := newService(newRealStore(t), newFakeLedger(), nil, nil)
	_, err := svc.Checkout(context.Background(), "alice")
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
}

func TestCheckoutUnknownUser(t *testing.T) {
	svc := newService(newRealStore(t), newFakeLedger(), nil, nil)
	_, err := svc.Checkout(context.Background(), "mallory")
	assert.ErrorIs(t, err, orders.ErrUserNotFound)
}

// Validasi harus mengumpulkan SEMUA pelanggaran, dan tidak menulis order.
func TestCheckoutValidationCollectsAll(t *testing.T) {
	ledger := newFakeLedger()
	ledger.products["SKU-A"] = activeProduct("SKU-A", 10, 100)
	// SKU-B sengaja tidak ada di ledger
	hs := &fakeHoldStore{
		holds: []orders.CartItem{{SKU: "SKU-A", Qty: 2}, {SKU: "SKU-B", Qty: 1}},
		held:  map[string]int{"SKU-A": 0}, // expire antara baca cart dan recheck
	}
	svc := newService(hs, ledger, nil, nil)

	_, err := svc.Checkout(context.Background(), "alice")
	var ve *orders.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Violations, 2)
	assert.Empty(t, ledger.orders)
}

// Error backend transien dari ledger bukan pelanggaran validasi: harus
// dipropagasi apa adanya, tanpa menulis order.
func TestCheckoutPropagatesLedgerError(t *testing.T) {
	ledger := newFakeLedger()
	ledger.productErr = errors.New("pg: connection refused")
	hs := &fakeHoldStore{
		holds: []orders.CartItem{{SKU: "SKU-A", Qty: 2}},
		held:  map[string]int{"SKU-A": 2},
	}
	svc := newService(hs, ledger, nil, nil)

	_, err := svc.Checkout(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.productErr)

	var ve *orders.ValidationError
	assert.False(t, errors.As(err, &ve))
	assert.Empty(t, ledger.orders)
}

func TestCheckoutStockReducedElsewhere(t *testing.T) {
	ledger := newFakeLedger()
	ledger.products["SKU-A"] = activeProduct("SKU-A", 3, 100) // tinggal 3
	hs := &fakeHoldStore{
		holds: []orders.CartItem{{SKU: "SKU-A", Qty: 5}},
		held:  map[string]int{"SKU-A": 5},
	}
	svc := newService(hs, ledger, nil, nil)

	_, err := svc.Checkout(context.Background(), "alice")
	var ve *orders.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, "SKU-A", ve.Violations[0].SKU)
}

// Gagal setelah order-write: tidak ada kompensasi, error kind khusus +
// event audit.
func TestCheckoutIncompleteOnReduceStock(t *testing.T) {
	ctx := context.Background()
	store := newRealStore(t)
	ledger := newFakeLedger()
	ledger.products["SKU-A"] = activeProduct("SKU-A", 10, 100)
	ledger.reduceErr["SKU-A"] = &orders.InsufficientStockError{SKU: "SKU-A", Requested: 2, Available: 0}
	done, stuck := &capturePub{}, &capturePub{}
	svc := newService(store, ledger, done, stuck)

	_, err := store.Reserve(ctx, "alice", "SKU-A", 2, 10, time.Minute)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, "alice")
	var ice *orders.IncompleteCheckoutError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "reduce_stock", ice.Step)
	assert.Equal(t, "SKU-A", ice.SKU)

	// order SUDAH tertulis (jejak audit), hold belum dilepas
	assert.Len(t, ledger.orders, 1)
	held, _ := store.Held(ctx, "alice", "SKU-A")
	assert.Equal(t, 2, held)

	require.Len(t, stuck.envs, 1)
	assert.Equal(t, orders.EventCheckoutIncomplete, stuck.envs[0].EventType)
	assert.Empty(t, done.envs)
}

func TestCheckoutOverReleaseSurfaces(t *testing.T) {
	ledger := newFakeLedger()
	ledger.products["SKU-A"] = activeProduct("SKU-A", 10, 100)
	stuck := &capturePub{}
	hs := &fakeHoldStore{
		holds:      []orders.CartItem{{SKU: "SKU-A", Qty: 2}},
		held:       map[string]int{"SKU-A": 2},
		releaseErr: map[string]error{"SKU-A": orders.ErrOverRelease},
	}
	svc := newService(hs, ledger, nil, stuck)

	_, err := svc.Checkout(context.Background(), "alice")
	var ice *orders.IncompleteCheckoutError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "release_hold", ice.Step)
	assert.ErrorIs(t, err, orders.ErrOverRelease)
	assert.Len(t, stuck.envs, 1)
}
