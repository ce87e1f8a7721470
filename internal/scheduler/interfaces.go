package scheduler

import (
	"context"
	"time"

	"github.com/aristath/sectorwatch/internal/database"
	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/aristath/sectorwatch/internal/modules/cache"
	"github.com/aristath/sectorwatch/internal/modules/snapshots"
)

// CacheStore is the part of cache.Store the jobs use
type CacheStore interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Counts(ctx context.Context) (cache.Counts, error)
}

// Maintainer compacts the database after a purge; *database.DB implements it
type Maintainer interface {
	WALCheckpoint(mode string) error
	IncrementalVacuum() error
}

// HealthChecker verifies the cache database; *database.DB implements it
type HealthChecker interface {
	IntegrityCheck(ctx context.Context) error
	WALCheckpointStatus(ctx context.Context) (database.WALStatus, error)
}

// SnapshotService is the part of snapshots.Service the jobs use
type SnapshotService interface {
	Kind() domain.Kind
	Today() time.Time
	Snapshot(ctx context.Context, requested time.Time) (*snapshots.Snapshot, error)
	Backfill(ctx context.Context, from, to time.Time) (n int, ok bool, err error)
}
