package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/sectorwatch/internal/database"
	"github.com/aristath/sectorwatch/internal/modules/cache"
	snapshothandlers "github.com/aristath/sectorwatch/internal/modules/snapshots/handlers"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// CacheCounter reports cached record counts
type CacheCounter interface {
	Counts(ctx context.Context) (cache.Counts, error)
}

// DatabaseStatter reports database file statistics
type DatabaseStatter interface {
	GetStats() (*database.Stats, error)
}

// SystemStatusResponse is the data of GET /api/system/status
type SystemStatusResponse struct {
	cache.Counts
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	DBSizeBytes   int64   `json:"db_size_bytes"`
	WALSizeBytes  int64   `json:"wal_size_bytes"`
}

// SystemHandlers serves process and cache status
type SystemHandlers struct {
	cache     CacheCounter
	db        DatabaseStatter
	startedAt time.Time
	now       func() time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. db may be nil.
func NewSystemHandlers(log zerolog.Logger, counter CacheCounter, db DatabaseStatter, startedAt time.Time) *SystemHandlers {
	return &SystemHandlers{
		cache:     counter,
		db:        db,
		startedAt: startedAt,
		now:       time.Now,
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.cache.Counts(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count cached records")
		snapshothandlers.WriteError(w, http.StatusInternalServerError, "failed to read cache status", h.log)
		return
	}

	status := SystemStatusResponse{
		Counts:        counts,
		UptimeSeconds: int64(h.now().Sub(h.startedAt) / time.Second),
	}
	status.CPUPercent, status.MemoryPercent = h.getSystemStats()

	if h.db != nil {
		if stats, err := h.db.GetStats(); err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database statistics")
		} else {
			status.DBSizeBytes = stats.SizeBytes
			status.WALSizeBytes = stats.WALSizeBytes
		}
	}

	snapshothandlers.WriteJSON(w, http.StatusOK, snapshothandlers.Envelope{
		Code:    http.StatusOK,
		Message: "success",
		Data:    status,
	}, h.log)
}

// getSystemStats returns CPU and RAM usage percentages, 0 when unavailable.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuAvg := 0.0
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}

	return cpuAvg, memStat.UsedPercent
}
