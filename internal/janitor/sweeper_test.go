package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakePruner struct {
	mu      sync.Mutex
	removed map[string]int
	failSKU string
	pruned  []string
}

func (f *fakePruner) PruneSKU(_ context.Context, sku string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sku == f.failSKU {
		return 0, errors.New("redis timeout")
	}
	f.pruned = append(f.pruned, sku)
	return f.removed[sku], nil
}

type fakeLister []string

func (f fakeLister) ActiveSKUs(context.Context) ([]string, error) { return f, nil }

func TestSweepPrunesEverySKU(t *testing.T) {
	p := &fakePruner{removed: map[string]int{"A": 2, "B": 0, "C": 1}}
	s := &Sweeper{
		Holds:    p,
		Catalog:  fakeLister{"A", "B", "C"},
		Interval: time.Minute,
		Log:      zerolog.Nop(),
	}

	s.sweep(context.Background())
	assert.ElementsMatch(t, []string{"A", "B", "C"}, p.pruned)
}

// Satu SKU gagal tidak menghentikan sweep SKU lain.
func TestSweepToleratesPruneFailure(t *testing.T) {
	p := &fakePruner{removed: map[string]int{"A": 1, "C": 1}, failSKU: "B"}
	s := &Sweeper{
		Holds:    p,
		Catalog:  fakeLister{"A", "B", "C"},
		Interval: time.Minute,
		Log:      zerolog.Nop(),
	}

	s.sweep(context.Background())
	assert.ElementsMatch(t, []string{"A", "C"}, p.pruned)
}
