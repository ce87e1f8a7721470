package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/aristath/sectorwatch/internal/modules/cache"
	"github.com/aristath/sectorwatch/internal/modules/snapshots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService treats weekdays as trading days and records every call
type fakeService struct {
	mu        sync.Mutex
	kind      domain.Kind
	today     time.Time
	bulk      bool
	failOn    map[string]bool
	earliest  time.Time
	requested []string
	backfills int
}

func (f *fakeService) Kind() domain.Kind { return f.kind }

func (f *fakeService) Today() time.Time { return f.today }

func (f *fakeService) Snapshot(ctx context.Context, requested time.Time) (*snapshots.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, domain.FormatDate(requested))

	if f.failOn[domain.FormatDate(requested)] {
		return nil, errors.New("upstream timeout")
	}

	d := requested
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = domain.AddDays(d, -1)
	}
	if !f.earliest.IsZero() && d.Before(f.earliest) {
		return nil, fmt.Errorf("%w: before %s", domain.ErrNoTradingDay, domain.FormatDate(f.earliest))
	}

	return &snapshots.Snapshot{
		Kind:    f.kind,
		Date:    d,
		Records: []domain.DailyRecord{{Kind: f.kind, Key: "x", Date: d}},
		Source:  domain.SourceLive,
	}, nil
}

func (f *fakeService) Backfill(ctx context.Context, from, to time.Time) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.bulk {
		return 0, false, nil
	}
	f.backfills++
	return 42, true, nil
}

type countingStore struct {
	counts cache.Counts
	err    error
}

func (s countingStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s countingStore) Counts(ctx context.Context) (cache.Counts, error) {
	return s.counts, s.err
}

// Sunday 2024-01-07
var preloadToday = day(2024, 1, 7)

func newPreloadJob(store CacheStore, indices, sectors SnapshotService) *PreloadJob {
	return NewPreloadJob(PreloadConfig{
		Store:      store,
		Indices:    indices,
		Sectors:    sectors,
		Threshold:  100,
		IndexDays:  180,
		SectorDays: 5,
		Log:        nopLogger(),
	})
}

func TestPreloadJob_Run(t *testing.T) {
	indices := &fakeService{kind: domain.KindIndex, today: preloadToday, bulk: true}
	sectors := &fakeService{kind: domain.KindSector, today: preloadToday}

	job := newPreloadJob(countingStore{counts: cache.Counts{Index: 10, Sector: 20}}, indices, sectors)
	assert.Equal(t, "preload", job.Name())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, indices.backfills, "indices use the bulk path")
	assert.Empty(t, indices.requested)

	// Each step starts the day before the previously resolved trading day
	assert.Equal(t, []string{"2024-01-07", "2024-01-04", "2024-01-03", "2024-01-02", "2024-01-01"}, sectors.requested)
}

func TestPreloadJob_SkipsPopulatedCache(t *testing.T) {
	indices := &fakeService{kind: domain.KindIndex, today: preloadToday, bulk: true}
	sectors := &fakeService{kind: domain.KindSector, today: preloadToday}

	job := newPreloadJob(countingStore{counts: cache.Counts{Index: 60, Sector: 40, Aliases: 500}}, indices, sectors)
	require.NoError(t, job.Run(context.Background()))

	assert.Zero(t, indices.backfills)
	assert.Empty(t, sectors.requested)
}

func TestPreloadJob_CountFailure(t *testing.T) {
	job := newPreloadJob(countingStore{err: errors.New("no such table")}, nil, nil)
	assert.Error(t, job.Run(context.Background()))
}

func TestPreloadJob_DayFailuresAreSkipped(t *testing.T) {
	sectors := &fakeService{
		kind:   domain.KindSector,
		today:  preloadToday,
		failOn: map[string]bool{"2024-01-04": true},
	}

	job := newPreloadJob(countingStore{}, nil, sectors)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"2024-01-07", "2024-01-04", "2024-01-03", "2024-01-02", "2024-01-01", "2023-12-31"}, sectors.requested)
}

func TestPreloadJob_StopsAtEarliestData(t *testing.T) {
	sectors := &fakeService{kind: domain.KindSector, today: preloadToday, earliest: day(2024, 1, 4)}

	job := newPreloadJob(countingStore{}, nil, sectors)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"2024-01-07", "2024-01-04", "2024-01-03"}, sectors.requested)
}

func TestPreloadJob_WalksBackWithoutBulkPath(t *testing.T) {
	indices := &fakeService{kind: domain.KindIndex, today: preloadToday}

	job := NewPreloadJob(PreloadConfig{
		Store:     countingStore{},
		Indices:   indices,
		Threshold: 100,
		IndexDays: 3,
		Log:       nopLogger(),
	})
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"2024-01-07", "2024-01-04", "2024-01-03"}, indices.requested)
}

func TestPreloadJob_Cancelled(t *testing.T) {
	sectors := &fakeService{kind: domain.KindSector, today: preloadToday}
	job := newPreloadJob(countingStore{}, nil, sectors)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Empty(t, sectors.requested)
}
