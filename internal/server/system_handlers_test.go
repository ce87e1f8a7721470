package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/sectorwatch/internal/database"
	"github.com/aristath/sectorwatch/internal/modules/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	counts cache.Counts
	err    error
}

func (s stubCounter) Counts(ctx context.Context) (cache.Counts, error) {
	return s.counts, s.err
}

type stubStatter struct{}

func (stubStatter) GetStats() (*database.Stats, error) {
	return &database.Stats{SizeBytes: 4096, WALSizeBytes: 1024}, nil
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	started := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	h := NewSystemHandlers(
		zerolog.New(nil).Level(zerolog.Disabled),
		stubCounter{counts: cache.Counts{Index: 720, Sector: 2700, Aliases: 12}},
		stubStatter{},
		started,
	)
	h.now = func() time.Time { return started.Add(90 * time.Second) }

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	w := httptest.NewRecorder()
	h.HandleSystemStatus(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, 200, body.Code)
	assert.Equal(t, 720.0, body.Data["index_records"])
	assert.Equal(t, 2700.0, body.Data["sector_records"])
	assert.Equal(t, 12.0, body.Data["alias_records"])
	assert.Equal(t, 90.0, body.Data["uptime_seconds"])
	assert.Equal(t, 4096.0, body.Data["db_size_bytes"])
	assert.Contains(t, body.Data, "cpu_percent")
	assert.GreaterOrEqual(t, body.Data["memory_percent"], 0.0)
}

func TestSystemHandlers_CountFailure(t *testing.T) {
	h := NewSystemHandlers(
		zerolog.New(nil).Level(zerolog.Disabled),
		stubCounter{err: errors.New("database is closed")},
		nil,
		time.Now(),
	)

	w := httptest.NewRecorder()
	h.HandleSystemStatus(w, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database is closed")
}
