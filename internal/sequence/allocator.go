// Package sequence produces the per-scope, per-day registration sequence
// numbers behind every registration number.
//
// The counter key always pairs the exhibition scope with the date bucket.
// Keying on the date alone would make unrelated exhibitions share a counter
// row, which is exactly how the historical duplicate numbers happened.
package sequence

import (
	"context"
	"fmt"
	"time"

	dErrors "gatepass/pkg/domain-errors"
)

// Store is the storage-native atomic counter. Next must increment and return
// in a single indivisible storage operation; an application-level
// read-then-write races under concurrent calls.
type Store interface {
	Next(ctx context.Context, scopeKey, dateBucket string) (int64, error)
}

// DefaultWidth is the zero-pad width of the printed sequence number.
// "REG-20250115-0001". Sequences past 9999 grow an extra digit.
const DefaultWidth = 4

// Allocator hands out strictly unique sequence numbers per (scope, day).
type Allocator struct {
	store Store
	width int
}

func NewAllocator(store Store, width int) *Allocator {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Allocator{store: store, width: width}
}

// Allocate returns the next sequence number for (scopeKey, dateBucket).
// For N calls on the same pair the returned values are exactly {1..N}.
func (a *Allocator) Allocate(ctx context.Context, scopeKey, dateBucket string) (int64, error) {
	if scopeKey == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "scope key is required")
	}
	if dateBucket == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "date bucket is required")
	}
	seq, err := a.store.Next(ctx, scopeKey, dateBucket)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "sequence counter unavailable")
	}
	if seq <= 0 {
		return 0, dErrors.New(dErrors.CodeInternal, "counter returned non-positive sequence")
	}
	return seq, nil
}

// FormatNumber builds the visible registration number. The scope is not
// embedded in the string; uniqueness rests on the counter key isolation plus
// the registrations table's unique constraint as the final backstop.
func (a *Allocator) FormatNumber(dateBucket string, seq int64) string {
	return fmt.Sprintf("REG-%s-%0*d", dateBucket, a.width, seq)
}

// DateBucket renders a calendar day in the counter/number format (YYYYMMDD).
func DateBucket(t time.Time) string {
	return t.UTC().Format("20060102")
}
