package invoice

import (
	"context"
	"fmt"
)

const DefaultPrefix = "ANTIA"

// CounterStore hands out per-year sequence values. Implementations must increment and read
// in a single atomic step so two callers can never observe the same value.
type CounterStore interface {
	IncrementInvoiceCounter(ctx context.Context, year int) (int64, error)
}

type Allocator struct {
	store  CounterStore
	prefix string
}

func NewAllocator(store CounterStore, prefix string) *Allocator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Allocator{store: store, prefix: prefix}
}

// Next returns the next invoice number for year, e.g. ANTIA-2026-0007.
func (a *Allocator) Next(ctx context.Context, year int) (string, error) {
	seq, err := a.store.IncrementInvoiceCounter(ctx, year)
	if err != nil {
		return "", fmt.Errorf("increment invoice counter for %d: %w", year, err)
	}
	return Format(a.prefix, year, seq), nil
}

// Format pads the sequence to four digits; larger sequences print in full.
func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}
