package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Pruner interface {
	PruneSKU(ctx context.Context, sku string) (int, error)
}

type SKULister interface {
	ActiveSKUs(ctx context.Context) ([]string, error)
}

// Sweeper: safety net. Expiry hold sebenarnya sudah ditangani prune di
// setiap operasi store; sweep ini memastikan SKU yg lama tidak disentuh
// siapa pun tetap dibersihkan, jadi agregatnya tidak menahan stok basi.
type Sweeper struct {
	Holds    Pruner
	Catalog  SKULister
	Interval time.Duration
	Log      zerolog.Logger
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	skus, err := s.Catalog.ActiveSKUs(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("list skus")
		return
	}

	var removed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	results := make(chan int, len(skus))
	for _, sku := range skus {
		sku := sku
		g.Go(func() error {
			n, err := s.Holds.PruneSKU(gctx, sku)
			if err != nil {
				// satu SKU gagal jangan hentikan sweep; coba lagi tick depan
				s.Log.Warn().Err(err).Str("sku", sku).Msg("prune failed")
				return nil
			}
			results <- n
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for n := range results {
		removed += int64(n)
	}

	if removed > 0 {
		s.Log.Info().Int64("expired_holds", removed).Int("skus", len(skus)).Msg("sweep done")
	}
}
