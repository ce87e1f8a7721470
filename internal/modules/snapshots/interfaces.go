// Package snapshots serves daily index and sector snapshots through the cache-fill protocol.
package snapshots

import (
	"context"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
)

// Item is one instrument or sector within a snapshot
type Item struct {
	Key  string
	Name string
}

// Observation is what a session found for one item: the bar on the resolved
// trading day and, when available, the bar on the prior trading day
type Observation struct {
	Current domain.Bar
	Prior   *domain.Bar
}

// Kind supplies the data-kind specific parts of the snapshot protocol
type Kind interface {
	// Kind returns the record family this kind reads and writes
	Kind() domain.Kind

	// Begin opens a session for one cache-miss request
	Begin(ctx context.Context) (Session, error)

	// CacheComplete reports whether the records cached for a day are enough to serve it
	CacheComplete(records []domain.DailyRecord) bool

	// Order sorts records into response order in place
	Order(records []domain.DailyRecord)
}

// Session holds whatever upstream state a single request needs
type Session interface {
	// Items returns the instruments or sectors to publish
	Items() []Item

	// Probe reports whether trading data exists for day
	Probe(ctx context.Context, day time.Time) (bool, error)

	// Fetch returns the item's bar on day and, if prior is set, on prior.
	// It returns domain.ErrNoData when the item has no bar on day.
	Fetch(ctx context.Context, item Item, day time.Time, prior *time.Time) (Observation, error)
}

// Backfiller is implemented by kinds that can derive many days of records in bulk
type Backfiller interface {
	Backfill(ctx context.Context, from, to time.Time) ([]domain.DailyRecord, error)
}

// Store is the subset of the cache store the service depends on
type Store interface {
	GetByDate(ctx context.Context, kind domain.Kind, day time.Time) ([]domain.DailyRecord, error)
	PutMany(ctx context.Context, records []domain.DailyRecord) error
	LookupAlias(ctx context.Context, kind domain.Kind, requested time.Time) (time.Time, bool, error)
	PutAlias(ctx context.Context, kind domain.Kind, requested, resolved time.Time) error
}
