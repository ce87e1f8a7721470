// Package cache persists resolved daily index and sector records.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/sectorwatch/internal/database"
	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
)

// Store is the sole owner of cached daily records.
//
// Writes (single, batch, purge, alias) are serialized by the store's own mutex
// so a batch upsert is never interleaved with another writer. Reads take no lock.
type Store struct {
	db      *sql.DB
	loc     *time.Location
	writeMu sync.Mutex
	now     func() time.Time
	log     zerolog.Logger
}

// NewStore creates a store over the migrated cache database
func NewStore(db *sql.DB, loc *time.Location, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		loc: loc,
		now: time.Now,
		log: log.With().Str("component", "cache_store").Logger(),
	}
}

type tableSpec struct {
	table  string
	keyCol string
	upsert string
}

var tables = map[domain.Kind]tableSpec{
	domain.KindIndex: {
		table:  "index_daily",
		keyCol: "code",
		upsert: `
			INSERT INTO index_daily
			(code, name, date, open, high, low, close, volume, change_percent, fallback, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code, date) DO UPDATE SET
				name = excluded.name,
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				volume = excluded.volume,
				change_percent = excluded.change_percent,
				fallback = excluded.fallback,
				updated_at = excluded.updated_at
		`,
	},
	domain.KindSector: {
		table:  "sector_daily",
		keyCol: "name",
		upsert: `
			INSERT INTO sector_daily
			(name, date, open, high, low, close, volume, change_percent, fallback, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name, date) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				volume = excluded.volume,
				change_percent = excluded.change_percent,
				fallback = excluded.fallback,
				updated_at = excluded.updated_at
		`,
	},
}

func specFor(kind domain.Kind) (tableSpec, error) {
	spec, ok := tables[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("unknown record kind %q", kind)
	}
	return spec, nil
}

func (s *Store) selectColumns(kind domain.Kind) string {
	if kind == domain.KindIndex {
		return "code, name, date, open, high, low, close, volume, change_percent, fallback"
	}
	return "name, name, date, open, high, low, close, volume, change_percent, fallback"
}

// Get returns the record for exactly (key, day), or nil when absent
func (s *Store) Get(ctx context.Context, kind domain.Kind, key string, day time.Time) (*domain.DailyRecord, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND date = ?`,
		s.selectColumns(kind), spec.table, spec.keyCol)

	rec, err := s.scanRecord(kind, s.db.QueryRowContext(ctx, query, key, domain.FormatDate(day)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record %s@%s: %w", kind, key, domain.FormatDate(day), err)
	}
	return rec, nil
}

// GetByDate returns every record of kind stored for exactly day.
// Sectors come back ordered by change descending, indices by code.
func (s *Store) GetByDate(ctx context.Context, kind domain.Kind, day time.Time) ([]domain.DailyRecord, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, err
	}

	order := "code"
	if kind == domain.KindSector {
		order = "change_percent DESC, name"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE date = ? ORDER BY %s`,
		s.selectColumns(kind), spec.table, order)

	rows, err := s.db.QueryContext(ctx, query, domain.FormatDate(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records for %s: %w", kind, domain.FormatDate(day), err)
	}
	defer rows.Close()

	var records []domain.DailyRecord
	for rows.Next() {
		rec, err := s.scanRecord(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", kind, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", kind, err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanRecord(kind domain.Kind, row scanner) (*domain.DailyRecord, error) {
	var (
		rec                     domain.DailyRecord
		date                    string
		open, high, low, volume sql.NullFloat64
		fallback                int
	)

	err := row.Scan(&rec.Key, &rec.Name, &date, &open, &high, &low, &rec.Close, &volume, &rec.ChangePercent, &fallback)
	if err != nil {
		return nil, err
	}

	day, err := domain.ParseDate(date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}

	rec.Kind = kind
	rec.Date = day
	rec.Open = nullable(open)
	rec.High = nullable(high)
	rec.Low = nullable(low)
	rec.Volume = nullable(volume)
	rec.Fallback = fallback != 0

	return &rec, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return domain.Float(v.Float64)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func validate(rec domain.DailyRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("record has no key")
	}
	if rec.Date.IsZero() {
		return fmt.Errorf("record %s has no date", rec.Key)
	}
	_, err := specFor(rec.Kind)
	return err
}

func (s *Store) upsertArgs(rec domain.DailyRecord, updatedAt int64) []interface{} {
	date := domain.FormatDate(rec.Date)
	if rec.Kind == domain.KindIndex {
		return []interface{}{
			rec.Key, rec.Name, date,
			nullFloat(rec.Open), nullFloat(rec.High), nullFloat(rec.Low),
			rec.Close, nullFloat(rec.Volume),
			rec.ChangePercent, boolInt(rec.Fallback), updatedAt,
		}
	}
	return []interface{}{
		rec.Key, date,
		nullFloat(rec.Open), nullFloat(rec.High), nullFloat(rec.Low),
		rec.Close, nullFloat(rec.Volume),
		rec.ChangePercent, boolInt(rec.Fallback), updatedAt,
	}
}

// Put upserts a single record keyed by (key, date)
func (s *Store) Put(ctx context.Context, rec domain.DailyRecord) error {
	return s.PutMany(ctx, []domain.DailyRecord{rec})
}

// PutMany upserts records in one transaction; either all are written or none
func (s *Store) PutMany(ctx context.Context, records []domain.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := validate(rec); err != nil {
			return fmt.Errorf("invalid record: %w", err)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	updatedAt := s.now().Unix()

	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		stmts := make(map[domain.Kind]*sql.Stmt)
		defer func() {
			for _, stmt := range stmts {
				stmt.Close()
			}
		}()

		for _, rec := range records {
			stmt, ok := stmts[rec.Kind]
			if !ok {
				var err error
				stmt, err = tx.PrepareContext(ctx, tables[rec.Kind].upsert)
				if err != nil {
					return fmt.Errorf("failed to prepare %s upsert: %w", rec.Kind, err)
				}
				stmts[rec.Kind] = stmt
			}

			if _, err := stmt.ExecContext(ctx, s.upsertArgs(rec, updatedAt)...); err != nil {
				return fmt.Errorf("failed to upsert %s %s@%s: %w", rec.Kind, rec.Key, domain.FormatDate(rec.Date), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().Int("records", len(records)).Msg("Upserted cache records")
	return nil
}

// PutAlias records that requested was served by the trading day resolved
func (s *Store) PutAlias(ctx context.Context, kind domain.Kind, requested, resolved time.Time) error {
	if _, err := specFor(kind); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO date_aliases (kind, requested_date, resolved_date, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, requested_date) DO UPDATE SET
			resolved_date = excluded.resolved_date,
			updated_at = excluded.updated_at
	`, string(kind), domain.FormatDate(requested), domain.FormatDate(resolved), s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store alias %s -> %s: %w",
			domain.FormatDate(requested), domain.FormatDate(resolved), err)
	}
	return nil
}

// LookupAlias returns the trading day previously resolved for requested, if any
func (s *Store) LookupAlias(ctx context.Context, kind domain.Kind, requested time.Time) (time.Time, bool, error) {
	var resolved string
	err := s.db.QueryRowContext(ctx,
		`SELECT resolved_date FROM date_aliases WHERE kind = ? AND requested_date = ?`,
		string(kind), domain.FormatDate(requested),
	).Scan(&resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to look up alias for %s: %w", domain.FormatDate(requested), err)
	}

	day, err := domain.ParseDate(resolved, s.loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid stored alias date %q: %w", resolved, err)
	}
	return day, true, nil
}

// PurgeOlderThan deletes records and aliases dated strictly before cutoff and
// returns the number of rows removed
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffStr := domain.FormatDate(cutoff)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var deleted int64
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		for _, purge := range []struct {
			query string
			args  []interface{}
		}{
			{`DELETE FROM index_daily WHERE date < ?`, []interface{}{cutoffStr}},
			{`DELETE FROM sector_daily WHERE date < ?`, []interface{}{cutoffStr}},
			{`DELETE FROM date_aliases WHERE requested_date < ? OR resolved_date < ?`, []interface{}{cutoffStr, cutoffStr}},
		} {
			res, err := tx.ExecContext(ctx, purge.query, purge.args...)
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Str("cutoff", cutoffStr).Int64("deleted", deleted).Msg("Purged cache records")
	return deleted, nil
}

// Counts holds row totals per cache table
type Counts struct {
	Index   int `json:"index_records"`
	Sector  int `json:"sector_records"`
	Aliases int `json:"alias_records"`
}

// Total returns the number of cached daily records, aliases excluded
func (c Counts) Total() int {
	return c.Index + c.Sector
}

// Counts returns row totals per table
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM index_daily),
			(SELECT COUNT(*) FROM sector_daily),
			(SELECT COUNT(*) FROM date_aliases)
	`).Scan(&c.Index, &c.Sector, &c.Aliases)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count cache records: %w", err)
	}
	return c, nil
}
