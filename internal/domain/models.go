// Package domain provides core domain models and types.
package domain

import "time"

// Kind identifies which family of daily records a value belongs to
type Kind string

const (
	// KindIndex is a market index keyed by its exchange code (e.g. sh000001)
	KindIndex Kind = "index"
	// KindSector is an industry sector keyed by its display name
	KindSector Kind = "sector"
)

// Instrument is a tracked market index
type Instrument struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// MajorIndices is the fixed set of indices published by /api/index, in output order
var MajorIndices = []Instrument{
	{Code: "sh000001", Name: "上证指数"},
	{Code: "sz399001", Name: "深证成指"},
	{Code: "sz399006", Name: "创业板指"},
	{Code: "sh000300", Name: "沪深300"},
}

// ReferenceSector is probed to decide whether sector data exists for a day.
// Banking is in every sector universe the provider has ever published.
const ReferenceSector = "银行"

// Bar is one raw daily OHLCV row as returned by the market-data provider
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DailyRecord is the cached unit for both indices and sectors.
//
// Date is always a resolved trading day. ChangePercent is derived, never raw;
// Fallback is set when it was computed from the day's open instead of the
// prior trading day's close.
type DailyRecord struct {
	Kind          Kind      `json:"kind"`
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	Date          time.Time `json:"date"`
	Open          *float64  `json:"open,omitempty"`
	High          *float64  `json:"high,omitempty"`
	Low           *float64  `json:"low,omitempty"`
	Close         float64   `json:"close"`
	Volume        *float64  `json:"volume,omitempty"`
	ChangePercent float64   `json:"change_percent"`
	Fallback      bool      `json:"fallback"`
}

// Float returns a pointer to v, for the optional OHLCV fields
func Float(v float64) *float64 {
	return &v
}

// Source tells a caller whether a snapshot was served from the cache or fetched live
type Source string

const (
	SourceCache Source = "cache"
	SourceLive  Source = "live"
)
