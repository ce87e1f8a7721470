package snapshots

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/aristath/sectorwatch/internal/modules/tradingday"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of items fetched in parallel per request
	DefaultConcurrency = 4

	// TodayResolutionTTL bounds how long today's fallback to an earlier
	// trading day is remembered; today may still get data later on
	TodayResolutionTTL = 10 * time.Minute

	// MinCacheCoverage is the share of items a live result needs before it is cached
	MinCacheCoverage = 0.5
)

// Snapshot is one day's records of a kind, along with how they were obtained
type Snapshot struct {
	Kind      domain.Kind
	Requested time.Time
	Date      time.Time
	Records   []domain.DailyRecord
	Source    domain.Source
	Note      string
}

// Service serves snapshots of one kind: cache first, otherwise resolve the
// trading day, fetch every item live and cache the result
type Service struct {
	kind        Kind
	store       Store
	resolver    *tradingday.Resolver
	concurrency int
	log         zerolog.Logger

	mu        sync.Mutex
	lastToday todayResolution
}

// todayResolution remembers where today last resolved, held in memory only
type todayResolution struct {
	day      time.Time
	resolved time.Time
	at       time.Time
}

// NewService creates a snapshot service for kind
func NewService(kind Kind, store Store, resolver *tradingday.Resolver, concurrency int, log zerolog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		kind:        kind,
		store:       store,
		resolver:    resolver,
		concurrency: concurrency,
		log:         log.With().Str("service", "snapshots").Str("kind", string(kind.Kind())).Logger(),
	}
}

// Kind returns the record family served
func (s *Service) Kind() domain.Kind {
	return s.kind.Kind()
}

// Today returns the current market calendar day
func (s *Service) Today() time.Time {
	return s.resolver.Today()
}

// Snapshot returns the records for requested, resolved to the nearest
// trading day on or before it
func (s *Service) Snapshot(ctx context.Context, requested time.Time) (*Snapshot, error) {
	today := s.resolver.Today()
	requested = domain.Day(requested, s.resolver.Location())
	if requested.After(today) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFutureDate, domain.FormatDate(requested))
	}

	if snap := s.fromCache(ctx, requested); snap != nil {
		return snap, nil
	}

	session, err := s.kind.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s session: %w", s.kind.Kind(), err)
	}

	resolved, err := s.resolver.Resolve(ctx, requested, session.Probe)
	if err != nil {
		return nil, err
	}
	if requested.Equal(today) {
		s.rememberToday(today, resolved)
	}
	if !resolved.Equal(requested) {
		if snap := s.fromCacheOn(ctx, requested, resolved); snap != nil {
			s.putAlias(ctx, requested, resolved, today)
			return snap, nil
		}
	}

	var prior *time.Time
	priorDay, err := s.resolver.ResolvePrior(ctx, resolved, session.Probe)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn().Err(err).Str("date", domain.FormatDate(resolved)).Msg("No prior trading day, changes fall back to intraday")
	} else {
		prior = &priorDay
	}

	items := session.Items()
	records, err := s.fetchAll(ctx, session, items, resolved, prior)
	if err != nil {
		return nil, err
	}

	s.kind.Order(records)
	if covered(len(records), len(items)) {
		s.persist(ctx, requested, resolved, today, records)
	} else {
		s.log.Warn().
			Int("records", len(records)).
			Int("items", len(items)).
			Str("date", domain.FormatDate(resolved)).
			Msg("Too many items missing, serving without caching")
	}

	return &Snapshot{
		Kind:      s.kind.Kind(),
		Requested: requested,
		Date:      resolved,
		Records:   records,
		Source:    domain.SourceLive,
		Note:      note(requested, resolved),
	}, nil
}

// fromCache returns a snapshot served from the store, or nil on a miss.
// Store errors count as a miss.
func (s *Service) fromCache(ctx context.Context, requested time.Time) *Snapshot {
	kind := s.kind.Kind()

	if snap := s.fromCacheOn(ctx, requested, requested); snap != nil {
		return snap
	}

	if resolved, ok := s.recallToday(requested); ok {
		return s.fromCacheOn(ctx, requested, resolved)
	}

	resolved, ok, err := s.store.LookupAlias(ctx, kind, requested)
	if err != nil {
		s.log.Warn().Err(err).Str("date", domain.FormatDate(requested)).Msg("Alias lookup failed, fetching live")
		return nil
	}
	if !ok {
		return nil
	}
	return s.fromCacheOn(ctx, requested, resolved)
}

// fromCacheOn serves requested from the rows cached under resolved when they are complete
func (s *Service) fromCacheOn(ctx context.Context, requested, resolved time.Time) *Snapshot {
	records, err := s.store.GetByDate(ctx, s.kind.Kind(), resolved)
	if err != nil {
		s.log.Warn().Err(err).Str("date", domain.FormatDate(resolved)).Msg("Cache read failed, fetching live")
		return nil
	}
	if !s.kind.CacheComplete(records) {
		return nil
	}
	return s.cached(requested, resolved, records)
}

func (s *Service) rememberToday(today, resolved time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastToday = todayResolution{day: today, resolved: resolved, at: s.resolver.Now()}
}

// recallToday returns where requested resolved if it is today and the
// resolution is recent. A same-day resolution is never remembered.
func (s *Service) recallToday(requested time.Time) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.lastToday
	if r.day.IsZero() || !r.day.Equal(requested) || r.resolved.Equal(requested) {
		return time.Time{}, false
	}
	if s.resolver.Now().Sub(r.at) > TodayResolutionTTL {
		return time.Time{}, false
	}
	return r.resolved, true
}

func (s *Service) cached(requested, resolved time.Time, records []domain.DailyRecord) *Snapshot {
	s.kind.Order(records)
	s.log.Debug().
		Str("requested", domain.FormatDate(requested)).
		Str("resolved", domain.FormatDate(resolved)).
		Int("records", len(records)).
		Msg("Cache hit")

	return &Snapshot{
		Kind:      s.kind.Kind(),
		Requested: requested,
		Date:      resolved,
		Records:   records,
		Source:    domain.SourceCache,
		Note:      note(requested, resolved),
	}
}

func (s *Service) fetchAll(ctx context.Context, session Session, items []Item, day time.Time, prior *time.Time) ([]domain.DailyRecord, error) {
	var (
		mu      sync.Mutex
		records = make([]domain.DailyRecord, 0, len(items))
		failed  int
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, item := range items {
		g.Go(func() error {
			rec, err := s.fetchOne(ctx, session, item, day, prior)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return nil
			}
			records = append(records, rec)
			return nil
		})
	}
	// Item failures are counted, not returned, so one item never stops the rest
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d %s items on %s", domain.ErrAllItemsFailed, len(items), s.kind.Kind(), domain.FormatDate(day))
	}

	if failed > 0 {
		s.log.Warn().
			Int("failed", failed).
			Int("succeeded", len(records)).
			Str("date", domain.FormatDate(day)).
			Msg("Some items were skipped")
	}
	return records, nil
}

func (s *Service) fetchOne(ctx context.Context, session Session, item Item, day time.Time, prior *time.Time) (domain.DailyRecord, error) {
	obs, err := session.Fetch(ctx, item, day, prior)
	if err != nil {
		event := s.log.Warn()
		if errors.Is(err, domain.ErrNoData) {
			event = s.log.Debug()
		}
		event.Err(err).Str("item", item.Key).Str("date", domain.FormatDate(day)).Msg("Skipping item")
		return domain.DailyRecord{}, err
	}

	return s.record(item, obs), nil
}

func (s *Service) record(item Item, obs Observation) domain.DailyRecord {
	rec := newRecord(s.kind.Kind(), item, obs)
	if rec.Fallback {
		s.log.Warn().
			Str("item", item.Key).
			Str("date", domain.FormatDate(rec.Date)).
			Float64("change_percent", rec.ChangePercent).
			Msg("No prior close, change computed from the day's open")
	}
	return rec
}

// persist caches the records under the resolved day and, for past requests
// that resolved elsewhere, remembers where they resolved to. Failures are
// logged only.
func (s *Service) persist(ctx context.Context, requested, resolved, today time.Time, records []domain.DailyRecord) {
	if err := s.store.PutMany(ctx, records); err != nil {
		s.log.Error().Err(err).Str("date", domain.FormatDate(resolved)).Msg("Failed to cache records, serving uncached")
		return
	}

	s.putAlias(ctx, requested, resolved, today)
}

// putAlias remembers where a past request resolved to
func (s *Service) putAlias(ctx context.Context, requested, resolved, today time.Time) {
	if resolved.Equal(requested) || !requested.Before(today) {
		return
	}
	if err := s.store.PutAlias(ctx, s.kind.Kind(), requested, resolved); err != nil {
		s.log.Error().Err(err).
			Str("requested", domain.FormatDate(requested)).
			Str("resolved", domain.FormatDate(resolved)).
			Msg("Failed to cache date alias")
	}
}

// Backfill derives and caches records in bulk when the kind supports it.
// ok is false when the kind has no bulk path.
func (s *Service) Backfill(ctx context.Context, from, to time.Time) (n int, ok bool, err error) {
	bf, ok := s.kind.(Backfiller)
	if !ok {
		return 0, false, nil
	}

	records, err := bf.Backfill(ctx, from, to)
	if err != nil {
		return 0, true, err
	}
	if len(records) == 0 {
		return 0, true, nil
	}
	if err := s.store.PutMany(ctx, records); err != nil {
		return 0, true, fmt.Errorf("failed to cache backfilled records: %w", err)
	}
	return len(records), true, nil
}

// covered reports whether n of total items is enough to cache
func covered(n, total int) bool {
	return total == 0 || float64(n) >= MinCacheCoverage*float64(total)
}

func note(requested, resolved time.Time) string {
	if requested.Equal(resolved) {
		return ""
	}
	return fmt.Sprintf("%s is not a trading day or has no data yet, showing data for %s",
		domain.FormatDate(requested), domain.FormatDate(resolved))
}
