package identity

import (
	"context"
	"fmt"
	"time"
)

// Generator defines the contract for ticket number generators.
type Generator interface {
	Name() string
	Next(ctx context.Context, store CounterStore, now time.Time) (string, error)
}

// CounterStore is the atomic per-year counter behind ticket numbering. Add
// increments the counter for the given year by offset (>= 1) and returns the
// new value. Implementations must make the increment atomic so two concurrent
// creations never observe the same value.
type CounterStore interface {
	Add(ctx context.Context, year int, offset int64) (int64, error)
}

// DefaultPrefix is the ticket number prefix used by NewYearSequence.
const DefaultPrefix = "TCK"

// YearSequence issues numbers formatted TCK-<year>-<NNNN>. The sequence is
// scoped to the calendar year and restarts at 1 each January. Padding is four
// digits; past 9999 the width grows rather than wrapping.
type YearSequence struct {
	prefix string
}

// NewYearSequence creates the year-scoped sequence generator. An empty prefix
// falls back to DefaultPrefix.
func NewYearSequence(prefix string) *YearSequence {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &YearSequence{prefix: prefix}
}

func (g *YearSequence) Name() string { return "YearSequence" }

func (g *YearSequence) Next(ctx context.Context, store CounterStore, now time.Time) (string, error) {
	year := now.UTC().Year()
	c, err := store.Add(ctx, year, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%04d", g.prefix, year, c), nil
}
