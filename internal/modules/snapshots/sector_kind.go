package snapshots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
)

// SectorKind serves every industry sector in the provider's current universe.
// The universe is fetched again for each cache miss and may change between requests.
type SectorKind struct {
	provider domain.MarketDataProvider
	log      zerolog.Logger
}

// NewSectorKind creates the sector kind
func NewSectorKind(provider domain.MarketDataProvider, log zerolog.Logger) *SectorKind {
	return &SectorKind{
		provider: provider,
		log:      log.With().Str("kind", string(domain.KindSector)).Logger(),
	}
}

// Kind implements Kind
func (k *SectorKind) Kind() domain.Kind {
	return domain.KindSector
}

// Begin loads the sector universe
func (k *SectorKind) Begin(ctx context.Context) (Session, error) {
	names, err := k.provider.SectorNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sector universe: %w", err)
	}
	if len(names) == 0 {
		return nil, errors.New("sector universe is empty")
	}

	probe := names[0]
	for _, name := range names {
		if name == domain.ReferenceSector {
			probe = name
			break
		}
	}

	k.log.Debug().Int("sectors", len(names)).Str("probe", probe).Msg("Loaded sector universe")
	return &sectorSession{provider: k.provider, names: names, probe: probe}, nil
}

// CacheComplete accepts any cached sector row for the day
func (k *SectorKind) CacheComplete(records []domain.DailyRecord) bool {
	return len(records) > 0
}

// Order sorts by change descending, then by name
func (k *SectorKind) Order(records []domain.DailyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].ChangePercent != records[j].ChangePercent {
			return records[i].ChangePercent > records[j].ChangePercent
		}
		return records[i].Name < records[j].Name
	})
}

type sectorSession struct {
	provider domain.MarketDataProvider
	names    []string
	probe    string
}

func (s *sectorSession) Items() []Item {
	items := make([]Item, 0, len(s.names))
	for _, name := range s.names {
		items = append(items, Item{Key: name, Name: name})
	}
	return items
}

// Probe asks for the reference sector's bar on day
func (s *sectorSession) Probe(ctx context.Context, day time.Time) (bool, error) {
	bars, err := s.provider.SectorDaily(ctx, s.probe, day, day)
	if err != nil {
		return false, err
	}
	_, ok := indexBars(bars).at(day)
	return ok, nil
}

// Fetch asks for the sector's bars from the prior trading day (or day) through day
func (s *sectorSession) Fetch(ctx context.Context, item Item, day time.Time, prior *time.Time) (Observation, error) {
	start := day
	if prior != nil {
		start = *prior
	}

	bars, err := s.provider.SectorDaily(ctx, item.Key, start, day)
	if err != nil {
		return Observation{}, err
	}
	obs, ok := indexBars(bars).observe(day, prior)
	if !ok {
		return Observation{}, fmt.Errorf("%w: %s on %s", domain.ErrNoData, item.Key, domain.FormatDate(day))
	}
	return obs, nil
}
