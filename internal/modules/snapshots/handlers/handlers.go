// Package handlers provides HTTP handlers for index and sector snapshots.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/aristath/sectorwatch/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// SnapshotService is what the handlers need from a snapshots.Service
type SnapshotService interface {
	Snapshot(ctx context.Context, requested time.Time) (*snapshots.Snapshot, error)
	Today() time.Time
}

// Envelope is the JSON body of every API response
type Envelope struct {
	Code       int           `json:"code"`
	Message    string        `json:"message"`
	Data       interface{}   `json:"data"`
	DataSource domain.Source `json:"data_source,omitempty"`
	Note       string        `json:"note,omitempty"`
}

// IndexItem is one entry of GET /api/index
type IndexItem struct {
	Name          string   `json:"name"`
	Code          string   `json:"code"`
	Open          *float64 `json:"open"`
	Close         float64  `json:"close"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	Volume        *float64 `json:"volume"`
	ChangePercent float64  `json:"change_percent"`
	Date          string   `json:"date"`
}

// SectorItem is one entry of GET /api/industry. Date is YYYYMMDD.
type SectorItem struct {
	Name          string  `json:"name"`
	ChangePercent float64 `json:"change_percent"`
	Date          string  `json:"date"`
}

// Handler handles snapshot HTTP requests
type Handler struct {
	indices SnapshotService
	sectors SnapshotService
	loc     *time.Location
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(indices, sectors SnapshotService, loc *time.Location, log zerolog.Logger) *Handler {
	return &Handler{
		indices: indices,
		sectors: sectors,
		loc:     loc,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetIndex handles GET /api/index
func (h *Handler) HandleGetIndex(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r, h.indices)
	if !ok {
		return
	}

	items := make([]IndexItem, 0, len(snap.Records))
	for _, rec := range snap.Records {
		items = append(items, IndexItem{
			Name:          rec.Name,
			Code:          rec.Key,
			Open:          rec.Open,
			Close:         rec.Close,
			High:          rec.High,
			Low:           rec.Low,
			Volume:        rec.Volume,
			ChangePercent: rec.ChangePercent,
			Date:          domain.FormatDate(rec.Date),
		})
	}

	h.writeSuccess(w, snap, items)
}

// HandleGetIndustry handles GET /api/industry
func (h *Handler) HandleGetIndustry(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r, h.sectors)
	if !ok {
		return
	}

	items := make([]SectorItem, 0, len(snap.Records))
	for _, rec := range snap.Records {
		items = append(items, SectorItem{
			Name:          rec.Name,
			ChangePercent: rec.ChangePercent,
			Date:          rec.Date.Format(domain.RequestDateLayout),
		})
	}

	h.writeSuccess(w, snap, items)
}

// snapshot parses the optional date parameter and runs the service.
// On failure it has already written the error response.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request, svc SnapshotService) (*snapshots.Snapshot, bool) {
	requested := svc.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := domain.ParseRequestDate(raw, h.loc)
		if err != nil {
			h.writeError(w, err)
			return nil, false
		}
		requested = parsed
	}

	snap, err := svc.Snapshot(r.Context(), requested)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return snap, true
}

func (h *Handler) writeSuccess(w http.ResponseWriter, snap *snapshots.Snapshot, data interface{}) {
	WriteJSON(w, http.StatusOK, Envelope{
		Code:       http.StatusOK,
		Message:    "success",
		Data:       data,
		DataSource: snap.Source,
		Note:       snap.Note,
	}, h.log)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	event := h.log.Warn()
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.Err(err).Int("status", status).Msg("Snapshot request failed")

	WriteError(w, status, message, h.log)
}

// classify maps domain errors to a status and a client-safe message
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidDate):
		return http.StatusBadRequest, domain.ErrInvalidDate.Error()
	case errors.Is(err, domain.ErrFutureDate):
		return http.StatusBadRequest, "date cannot be in the future"
	case errors.Is(err, domain.ErrNoTradingDay):
		return http.StatusNotFound, "no trading data found near the requested date"
	case errors.Is(err, domain.ErrAllItemsFailed):
		return http.StatusInternalServerError, "failed to fetch market data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled or timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteError writes an error envelope with empty data
func WriteError(w http.ResponseWriter, status int, message string, log zerolog.Logger) {
	WriteJSON(w, status, Envelope{
		Code:    status,
		Message: message,
		Data:    []interface{}{},
	}, log)
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, status int, v interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
