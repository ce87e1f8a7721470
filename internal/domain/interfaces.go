package domain

import (
	"context"
	"time"
)

// MarketDataProvider is the upstream source of raw index and sector bars.
//
// Every method may return an empty slice with a nil error to signal that the
// provider has nothing for the query; transport and decoding failures are errors.
type MarketDataProvider interface {
	// IndexDaily returns the full daily history of an index, oldest first
	IndexDaily(ctx context.Context, code string) ([]Bar, error)

	// SectorNames returns the current industry sector universe
	SectorNames(ctx context.Context) ([]string, error)

	// SectorDaily returns the daily bars of a sector within [start, end], oldest first
	SectorDaily(ctx context.Context, name string, start, end time.Time) ([]Bar, error)
}

// Clock returns the current time; injected so tests can pin "today"
type Clock func() time.Time
