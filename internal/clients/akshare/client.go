// Package akshare provides a client for akshare data served through an AKTools HTTP bridge.
//
// AKTools exposes every akshare function as GET /api/public/{function} and
// returns the resulting data frame as a JSON array of row objects.
package akshare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "http://127.0.0.1:8080"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	funcIndexDaily     = "stock_zh_index_daily"
	funcSectorSummary  = "stock_board_industry_summary_ths"
	funcSectorIndex    = "stock_board_industry_index_ths"
	sectorDateLayout   = "20060102"
	maxErrorBodyLength = 512
)

// Client implements domain.MarketDataProvider against AKTools
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	loc        *time.Location
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the AKTools base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLocation sets the time zone dates are interpreted in (market time zone)
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		c.loc = loc
	}
}

// NewClient creates a new AKTools client
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		loc:     time.Local,
		log:     log.With().Str("client", "akshare").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// IndexDaily returns the full daily history of an index (e.g. "sh000001"), oldest first
func (c *Client) IndexDaily(ctx context.Context, code string) ([]domain.Bar, error) {
	rows, err := c.call(ctx, funcIndexDaily, url.Values{"symbol": {code}})
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		bar, err := c.parseBar(row, indexColumns)
		if err != nil {
			return nil, fmt.Errorf("%s row %d for %s: %w", funcIndexDaily, i, code, err)
		}
		bars = append(bars, bar)
	}

	sortBars(bars)
	return bars, nil
}

// SectorNames returns the current THS industry sector universe
func (c *Client) SectorNames(ctx context.Context) ([]string, error) {
	rows, err := c.call(ctx, funcSectorSummary, nil)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(getString(row, "板块", ""))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	return names, nil
}

// SectorDaily returns the daily bars of a THS industry sector within [start, end]
func (c *Client) SectorDaily(ctx context.Context, name string, start, end time.Time) ([]domain.Bar, error) {
	params := url.Values{
		"symbol":     {name},
		"start_date": {start.Format(sectorDateLayout)},
		"end_date":   {end.Format(sectorDateLayout)},
	}

	rows, err := c.call(ctx, funcSectorIndex, params)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		bar, err := c.parseBar(row, sectorColumns)
		if err != nil {
			return nil, fmt.Errorf("%s row %d for %s: %w", funcSectorIndex, i, name, err)
		}
		bars = append(bars, bar)
	}

	sortBars(bars)
	return bars, nil
}

func (c *Client) call(ctx context.Context, function string, params url.Values) ([]map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + "/api/public/" + function
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.log.Error().Err(err).Str("function", function).Dur("elapsed", elapsed).Msg("AKTools request failed")
		return nil, fmt.Errorf("failed to execute %s request: %w", function, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		c.log.Warn().
			Str("function", function).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Dur("elapsed", elapsed).
			Msg("AKTools non-OK response")
		return nil, fmt.Errorf("AKTools error: status %d for %s", resp.StatusCode, function)
	}

	var rows []map[string]interface{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", function, err)
	}

	c.log.Debug().
		Str("function", function).
		Str("params", params.Encode()).
		Int("rows", len(rows)).
		Dur("elapsed", elapsed).
		Msg("AKTools call")

	return rows, nil
}

type columns struct {
	date, open, high, low, close, volume string
}

var (
	indexColumns  = columns{date: "date", open: "open", high: "high", low: "low", close: "close", volume: "volume"}
	sectorColumns = columns{date: "日期", open: "开盘价", high: "最高价", low: "最低价", close: "收盘价", volume: "成交量"}
)

func (c *Client) parseBar(row map[string]interface{}, cols columns) (domain.Bar, error) {
	date, err := parseRowDate(getString(row, cols.date, ""), c.loc)
	if err != nil {
		return domain.Bar{}, err
	}

	closeVal := getFloat64(row, cols.close)
	if closeVal == nil {
		return domain.Bar{}, fmt.Errorf("missing close for %s", domain.FormatDate(date))
	}

	return domain.Bar{
		Date:   date,
		Open:   getFloat64OrZero(row, cols.open),
		High:   getFloat64OrZero(row, cols.high),
		Low:    getFloat64OrZero(row, cols.low),
		Close:  *closeVal,
		Volume: getFloat64OrZero(row, cols.volume),
	}, nil
}

// parseRowDate accepts "2024-01-05", "2024-01-05T00:00:00.000" and "20240105"
func parseRowDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 10 && s[4] == '-':
		return time.ParseInLocation(domain.DateLayout, s[:10], loc)
	case len(s) == 8:
		return time.ParseInLocation(sectorDateLayout, s, loc)
	default:
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
}

func sortBars(bars []domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
}

func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case float64:
			return &v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func getFloat64OrZero(m map[string]interface{}, key string) float64 {
	if val := getFloat64(m, key); val != nil {
		return *val
	}
	return 0
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case string:
			return v
		case json.Number:
			return v.String()
		}
	}
	return defaultVal
}

// Ensure Client implements MarketDataProvider
var _ domain.MarketDataProvider = (*Client)(nil)
