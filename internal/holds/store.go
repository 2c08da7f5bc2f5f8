package holds

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rdysatrio/go-flash-reserve/internal/orders"
	"github.com/rdysatrio/go-flash-reserve/internal/redisx"
)

// Store: reservation store di Redis. Satu-satunya jalur yg boleh menaikkan
// jumlah reserved adalah Reserve; Cancel/Release/expiry jalur turunnya.
// Error backend diteruskan apa adanya, tanpa retry — retry setelah mutasi
// parsial bisa double-apply; caller retry operasi utuhnya kalau perlu.
type Store struct {
	rdb *redis.Client
	now func() time.Time

	shaReserve   string
	shaCancel    string
	shaRelease   string
	shaHeld      string
	shaAggregate string
	shaPrune     string
}

// NewStore pre-load semua script (EVALSHA lebih hemat dari EVAL per call).
func NewStore(ctx context.Context, rdb *redis.Client) (*Store, error) {
	s := &Store{rdb: rdb, now: time.Now}
	for _, it := range []struct {
		name string
		src  string
		dst  *string
	}{
		{"reserve", reserveLua, &s.shaReserve},
		{"cancel", cancelLua, &s.shaCancel},
		{"release", releaseLua, &s.shaRelease},
		{"held", heldLua, &s.shaHeld},
		{"aggregate", aggregateLua, &s.shaAggregate},
		{"prune", pruneOnlyLua, &s.shaPrune},
	} {
		sha, err := rdb.ScriptLoad(ctx, it.src).Result()
		if err != nil {
			return nil, fmt.Errorf("load %s script: %w", it.name, err)
		}
		*it.dst = sha
	}
	return s, nil
}

func (s *Store) skuKeys(sku string) []string {
	return []string{
		fmt.Sprintf(redisx.KeyHoldQty, sku),
		fmt.Sprintf(redisx.KeyHoldExp, sku),
	}
}

func (s *Store) keys(userID, sku string) []string {
	return append(s.skuKeys(sku), fmt.Sprintf(redisx.KeyUserSKUs, userID))
}

func (s *Store) nowMilli() int64 { return s.now().UnixMilli() }

// Reserve: admission + increment atomik. totalStock datang dari ledger;
// script re-check `total - agregat >= qty` terhadap state pasca-prune.
// Sukses: balikan total qty yg sekarang dipegang (user, sku) itu.
func (s *Store) Reserve(ctx context.Context, userID, sku string, qty int, totalStock int, ttl time.Duration) (int, error) {
	res, err := s.rdb.EvalSha(ctx, s.shaReserve, s.keys(userID, sku),
		s.nowMilli(), userID, qty, totalStock, ttl.Milliseconds(), sku).Result()
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", sku, err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, fmt.Errorf("reserve %s: unexpected script reply %T", sku, res)
	}
	code, _ := vals[0].(int64)
	n, _ := vals[1].(int64)
	if code == 0 {
		avail := int(n)
		if avail < 0 {
			avail = 0
		}
		return 0, &orders.InsufficientStockError{SKU: sku, Requested: qty, Available: avail}
	}
	return int(n), nil
}

// Cancel qty tertentu; yg dibatalkan min(qty, held). Hold yg sudah
// absen/expire = no-op, balikan 0.
func (s *Store) Cancel(ctx context.Context, userID, sku string, qty int) (int, error) {
	return s.cancel(ctx, userID, sku, qty)
}

// CancelAll batalkan seluruh hold (user, sku).
func (s *Store) CancelAll(ctx context.Context, userID, sku string) (int, error) {
	return s.cancel(ctx, userID, sku, -1)
}

func (s *Store) cancel(ctx context.Context, userID, sku string, qty int) (int, error) {
	n, err := s.rdb.EvalSha(ctx, s.shaCancel, s.keys(userID, sku),
		s.nowMilli(), userID, qty, sku).Int()
	if err != nil {
		return 0, fmt.Errorf("cancel %s: %w", sku, err)
	}
	return n, nil
}

// Release: dipakai checkout saja. qty > held berarti cart dan store desync
// — gagal keras, jangan di-clamp.
func (s *Store) Release(ctx context.Context, userID, sku string, qty int) error {
	n, err := s.rdb.EvalSha(ctx, s.shaRelease, s.keys(userID, sku),
		s.nowMilli(), userID, qty, sku).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", sku, err)
	}
	if n < 0 {
		return fmt.Errorf("%w: user=%s sku=%s qty=%d", orders.ErrOverRelease, userID, sku, qty)
	}
	return nil
}

// Held: qty yg dipegang (user, sku) saat ini; 0 kalau absen/expire.
func (s *Store) Held(ctx context.Context, userID, sku string) (int, error) {
	n, err := s.rdb.EvalSha(ctx, s.shaHeld, s.keys(userID, sku), s.nowMilli(), userID).Int()
	if err != nil {
		return 0, fmt.Errorf("held %s: %w", sku, err)
	}
	return n, nil
}

// Aggregate: total reserved satu SKU, diturunkan dari hold yg masih hidup.
func (s *Store) Aggregate(ctx context.Context, sku string) (int, error) {
	n, err := s.rdb.EvalSha(ctx, s.shaAggregate, s.skuKeys(sku), s.nowMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("aggregate %s: %w", sku, err)
	}
	return n, nil
}

// Holds: snapshot hold hidup milik satu user. Set SKU user bisa mengandung
// sisa dari hold yg expire (prune per-SKU tidak tahu set user lain), jadi
// entry dgn held 0 dibersihkan di sini.
func (s *Store) Holds(ctx context.Context, userID string) ([]orders.CartItem, error) {
	setKey := fmt.Sprintf(redisx.KeyUserSKUs, userID)
	skus, err := s.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("holds %s: %w", userID, err)
	}

	var out []orders.CartItem
	for _, sku := range skus {
		held, err := s.Held(ctx, userID, sku)
		if err != nil {
			return nil, err
		}
		if held == 0 {
			_ = s.rdb.SRem(ctx, setKey, sku).Err()
			continue
		}
		out = append(out, orders.CartItem{SKU: sku, Qty: held})
	}
	return out, nil
}

// PruneSKU: entry point sweep janitor; balikan jumlah hold yg dibuang.
func (s *Store) PruneSKU(ctx context.Context, sku string) (int, error) {
	n, err := s.rdb.EvalSha(ctx, s.shaPrune, s.skuKeys(sku), s.nowMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", sku, err)
	}
	return n, nil
}
