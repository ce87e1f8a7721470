package snapshots

import (
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/aristath/sectorwatch/pkg/formulas"
)

// newRecord derives the cached record for one observation
func newRecord(kind domain.Kind, item Item, obs Observation) domain.DailyRecord {
	cur := obs.Current

	var priorClose *float64
	if obs.Prior != nil {
		priorClose = domain.Float(obs.Prior.Close)
	}
	change, fallback := formulas.PercentChange(cur.Close, priorClose, domain.Float(cur.Open))

	return domain.DailyRecord{
		Kind:          kind,
		Key:           item.Key,
		Name:          item.Name,
		Date:          cur.Date,
		Open:          domain.Float(cur.Open),
		High:          domain.Float(cur.High),
		Low:           domain.Float(cur.Low),
		Close:         cur.Close,
		Volume:        domain.Float(cur.Volume),
		ChangePercent: change,
		Fallback:      fallback,
	}
}

// barIndex maps calendar days (YYYY-MM-DD) to bars
type barIndex map[string]domain.Bar

func indexBars(bars []domain.Bar) barIndex {
	idx := make(barIndex, len(bars))
	for _, b := range bars {
		idx[domain.FormatDate(b.Date)] = b
	}
	return idx
}

func (idx barIndex) at(day time.Time) (domain.Bar, bool) {
	b, ok := idx[domain.FormatDate(day)]
	return b, ok
}

// observe picks the bar on day and, when prior is set and present, the bar on prior
func (idx barIndex) observe(day time.Time, prior *time.Time) (Observation, bool) {
	cur, ok := idx.at(day)
	if !ok {
		return Observation{}, false
	}
	obs := Observation{Current: cur}
	if prior != nil {
		if p, ok := idx.at(*prior); ok {
			obs.Prior = &p
		}
	}
	return obs, true
}
