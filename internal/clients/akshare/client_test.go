package akshare

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loc = time.FixedZone("CST", 8*3600)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(
		zerolog.New(nil).Level(zerolog.Disabled),
		WithBaseURL(server.URL+"/"),
		WithRateLimit(1000),
		WithTimeout(5*time.Second),
		WithLocation(loc),
	)
}

func TestIndexDaily(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/stock_zh_index_daily", r.URL.Path)
		assert.Equal(t, "sh000001", r.URL.Query().Get("symbol"))

		w.Header().Set("Content-Type", "application/json")
		// Rows deliberately out of order
		_, _ = w.Write([]byte(`[
			{"date":"2024-01-05T00:00:00.000","open":2941.0,"high":2959.0,"low":2919.7,"close":2929.18,"volume":31476200000},
			{"date":"2024-01-04","open":2954.5,"high":2958.6,"low":2944.1,"close":2954.35,"volume":"29133100000"}
		]`))
	})

	bars, err := client.IndexDaily(context.Background(), "sh000001")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "2024-01-04", bars[0].Date.Format("2006-01-02"))
	assert.Equal(t, 2954.35, bars[0].Close)
	assert.Equal(t, 29133100000.0, bars[0].Volume)

	assert.Equal(t, "2024-01-05", bars[1].Date.Format("2006-01-02"))
	assert.Equal(t, 2941.0, bars[1].Open)
	assert.Equal(t, 2929.18, bars[1].Close)
	assert.Equal(t, loc, bars[1].Date.Location())
}

func TestIndexDaily_MissingClose(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"date":"2024-01-05","open":2941.0}]`))
	})

	_, err := client.IndexDaily(context.Background(), "sh000001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing close")
}

func TestSectorNames(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/stock_board_industry_summary_ths", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"序号":1,"板块":"半导体","涨跌幅":3.21},
			{"序号":2,"板块":"银行","涨跌幅":0.52},
			{"序号":3,"板块":" ","涨跌幅":0.1},
			{"序号":4,"板块":"银行","涨跌幅":0.52}
		]`))
	})

	names, err := client.SectorNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"半导体", "银行"}, names)
}

func TestSectorDaily(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/stock_board_industry_index_ths", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "银行", q.Get("symbol"))
		assert.Equal(t, "20240105", q.Get("start_date"))
		assert.Equal(t, "20240105", q.Get("end_date"))

		_, _ = w.Write([]byte(`[
			{"日期":"2024-01-05","开盘价":1021.3,"最高价":1032.8,"最低价":1019.9,"收盘价":1030.55,"成交量":1234567,"成交额":9876543210}
		]`))
	})

	d := time.Date(2024, 1, 5, 0, 0, 0, 0, loc)
	bars, err := client.SectorDaily(context.Background(), "银行", d, d)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1030.55, bars[0].Close)
	assert.Equal(t, 1021.3, bars[0].Open)
}

func TestSectorDaily_EmptyMeansNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	d := time.Date(2024, 1, 6, 0, 0, 0, 0, loc)
	bars, err := client.SectorDaily(context.Background(), "银行", d, d)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestCall_NonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"akshare raised"}`, http.StatusInternalServerError)
	})

	_, err := client.SectorNames(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestCall_InvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.IndexDaily(context.Background(), "sh000001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestCall_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SectorNames(ctx)
	assert.Error(t, err)
}

func TestParseRowDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-01-05", want: "2024-01-05"},
		{in: "2024-01-05T00:00:00.000", want: "2024-01-05"},
		{in: "20240105", want: "2024-01-05"},
		{in: "05/01/2024", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseRowDate(tt.in, loc)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.Format("2006-01-02"))
	}
}
