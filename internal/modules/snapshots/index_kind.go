package snapshots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
)

// IndexKind serves the fixed set of major indices.
//
// The provider only offers an index's whole history, so a session loads each
// series at most once and answers probes and fetches from memory.
type IndexKind struct {
	provider    domain.MarketDataProvider
	instruments []domain.Instrument
	log         zerolog.Logger
}

// NewIndexKind creates the index kind over instruments (domain.MajorIndices when empty)
func NewIndexKind(provider domain.MarketDataProvider, instruments []domain.Instrument, log zerolog.Logger) *IndexKind {
	if len(instruments) == 0 {
		instruments = domain.MajorIndices
	}
	return &IndexKind{
		provider:    provider,
		instruments: instruments,
		log:         log.With().Str("kind", string(domain.KindIndex)).Logger(),
	}
}

// Kind implements Kind
func (k *IndexKind) Kind() domain.Kind {
	return domain.KindIndex
}

// Begin implements Kind
func (k *IndexKind) Begin(ctx context.Context) (Session, error) {
	return k.newSession(), nil
}

// CacheComplete requires a cached row for every instrument
func (k *IndexKind) CacheComplete(records []domain.DailyRecord) bool {
	if len(records) == 0 {
		return false
	}
	have := make(map[string]bool, len(records))
	for _, rec := range records {
		have[rec.Key] = true
	}
	for _, inst := range k.instruments {
		if !have[inst.Code] {
			return false
		}
	}
	return true
}

// Order sorts records into instrument order
func (k *IndexKind) Order(records []domain.DailyRecord) {
	rank := make(map[string]int, len(k.instruments))
	for i, inst := range k.instruments {
		rank[inst.Code] = i
	}
	sort.SliceStable(records, func(i, j int) bool {
		ri, iok := rank[records[i].Key]
		rj, jok := rank[records[j].Key]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return records[i].Key < records[j].Key
	})
}

// Backfill derives records for every trading day in [from, to] from each
// instrument's full history. Each day's prior close is the preceding bar of
// the same series. Instruments that fail are logged and skipped.
func (k *IndexKind) Backfill(ctx context.Context, from, to time.Time) ([]domain.DailyRecord, error) {
	fromKey, toKey := domain.FormatDate(from), domain.FormatDate(to)

	var records []domain.DailyRecord
	var failed int
	for _, inst := range k.instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := k.provider.IndexDaily(ctx, inst.Code)
		if err != nil {
			failed++
			k.log.Warn().Err(err).Str("code", inst.Code).Msg("Backfill skipped instrument")
			continue
		}

		item := Item{Key: inst.Code, Name: inst.Name}
		for i, bar := range bars {
			key := domain.FormatDate(bar.Date)
			if key < fromKey || key > toKey {
				continue
			}
			obs := Observation{Current: bar}
			if i > 0 {
				prev := bars[i-1]
				obs.Prior = &prev
			}
			records = append(records, newRecord(domain.KindIndex, item, obs))
		}
	}

	if failed == len(k.instruments) {
		return nil, fmt.Errorf("%w: backfill %s..%s", domain.ErrAllItemsFailed, fromKey, toKey)
	}
	return records, nil
}

func (k *IndexKind) newSession() *indexSession {
	s := &indexSession{
		kind:   k,
		series: make(map[string]*seriesEntry, len(k.instruments)),
	}
	for _, inst := range k.instruments {
		s.series[inst.Code] = &seriesEntry{}
	}
	return s
}

type seriesEntry struct {
	once sync.Once
	bars barIndex
	err  error
}

type indexSession struct {
	kind   *IndexKind
	series map[string]*seriesEntry
}

func (s *indexSession) Items() []Item {
	items := make([]Item, 0, len(s.kind.instruments))
	for _, inst := range s.kind.instruments {
		items = append(items, Item{Key: inst.Code, Name: inst.Name})
	}
	return items
}

func (s *indexSession) load(ctx context.Context, code string) (barIndex, error) {
	entry, ok := s.series[code]
	if !ok {
		return nil, fmt.Errorf("unknown instrument %s", code)
	}
	entry.once.Do(func() {
		bars, err := s.kind.provider.IndexDaily(ctx, code)
		if err != nil {
			entry.err = err
			return
		}
		entry.bars = indexBars(bars)
	})
	return entry.bars, entry.err
}

// Probe reports data when any instrument has a bar on day
func (s *indexSession) Probe(ctx context.Context, day time.Time) (bool, error) {
	var errs []error
	for _, inst := range s.kind.instruments {
		bars, err := s.load(ctx, inst.Code)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", inst.Code, err))
			continue
		}
		if _, ok := bars.at(day); ok {
			return true, nil
		}
	}
	if len(errs) == len(s.kind.instruments) {
		return false, errors.Join(errs...)
	}
	return false, nil
}

func (s *indexSession) Fetch(ctx context.Context, item Item, day time.Time, prior *time.Time) (Observation, error) {
	bars, err := s.load(ctx, item.Key)
	if err != nil {
		return Observation{}, err
	}
	obs, ok := bars.observe(day, prior)
	if !ok {
		return Observation{}, fmt.Errorf("%w: %s on %s", domain.ErrNoData, item.Key, domain.FormatDate(day))
	}
	return obs, nil
}
