// Package tradingday locates the trading day that serves a requested calendar date.
package tradingday

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultMaxBackDays is the backward search bound used for both the requested
// day and the prior trading day. Ten calendar days covers the longest
// mainland exchange closure (Golden Week plus its adjoining weekend).
const DefaultMaxBackDays = 10

// Probe reports whether trading data exists for day
type Probe func(ctx context.Context, day time.Time) (bool, error)

// Resolve walks backward from target, one calendar day at a time, and returns the
// first day for which probe reports data.
//
// Days target, target-1, ..., target-maxBackDays are tried, so a hit on the
// boundary day is still returned. A target after today fails with
// domain.ErrFutureDate before probe is ever called. A probe error counts as
// "no data" for that day; only context cancellation aborts the walk.
func Resolve(ctx context.Context, today, target time.Time, probe Probe, maxBackDays int) (time.Time, error) {
	if target.After(today) {
		return time.Time{}, fmt.Errorf("%w: %s", domain.ErrFutureDate, domain.FormatDate(target))
	}

	day, _, err := walk(ctx, target, probe, maxBackDays)
	return day, err
}

func walk(ctx context.Context, target time.Time, probe Probe, maxBackDays int) (time.Time, []error, error) {
	var probeErrs []error
	for back := 0; back <= maxBackDays; back++ {
		if err := ctx.Err(); err != nil {
			return time.Time{}, probeErrs, err
		}

		day := domain.AddDays(target, -back)
		ok, err := probe(ctx, day)
		if err != nil {
			probeErrs = append(probeErrs, fmt.Errorf("%s: %w", domain.FormatDate(day), err))
			continue
		}
		if ok {
			return day, probeErrs, nil
		}
	}

	return time.Time{}, probeErrs, fmt.Errorf("%w: none within %d days before %s",
		domain.ErrNoTradingDay, maxBackDays, domain.FormatDate(target))
}

// Resolver resolves trading days against the market calendar's notion of "today"
type Resolver struct {
	clock       domain.Clock
	loc         *time.Location
	maxBackDays int
	log         zerolog.Logger
}

// NewResolver creates a resolver bounded to maxBackDays (DefaultMaxBackDays when <= 0)
func NewResolver(clock domain.Clock, loc *time.Location, maxBackDays int, log zerolog.Logger) *Resolver {
	if maxBackDays <= 0 {
		maxBackDays = DefaultMaxBackDays
	}
	return &Resolver{
		clock:       clock,
		loc:         loc,
		maxBackDays: maxBackDays,
		log:         log.With().Str("component", "trading_day_resolver").Logger(),
	}
}

// Now returns the resolver's clock reading
func (r *Resolver) Now() time.Time {
	return r.clock()
}

// Today returns the current calendar day in the market time zone
func (r *Resolver) Today() time.Time {
	return domain.Day(r.clock(), r.loc)
}

// Location returns the market time zone
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// MaxBackDays returns the backward search bound
func (r *Resolver) MaxBackDays() int {
	return r.maxBackDays
}

// Resolve returns the nearest trading day on or before target
func (r *Resolver) Resolve(ctx context.Context, target time.Time, probe Probe) (time.Time, error) {
	today := r.Today()
	target = domain.Day(target, r.loc)
	if target.After(today) {
		return time.Time{}, fmt.Errorf("%w: %s", domain.ErrFutureDate, domain.FormatDate(target))
	}

	day, probeErrs, err := walk(ctx, target, probe, r.maxBackDays)
	r.logProbeErrors(target, probeErrs)
	if err != nil {
		return time.Time{}, err
	}

	if !day.Equal(target) {
		r.log.Debug().
			Str("requested", domain.FormatDate(target)).
			Str("resolved", domain.FormatDate(day)).
			Msg("Requested day has no data, resolved to earlier trading day")
	}
	return day, nil
}

// ResolvePrior returns the trading day strictly before resolved
func (r *Resolver) ResolvePrior(ctx context.Context, resolved time.Time, probe Probe) (time.Time, error) {
	start := domain.AddDays(domain.Day(resolved, r.loc), -1)

	day, probeErrs, err := walk(ctx, start, probe, r.maxBackDays)
	r.logProbeErrors(start, probeErrs)
	if err != nil {
		return time.Time{}, fmt.Errorf("prior trading day of %s: %w", domain.FormatDate(resolved), err)
	}
	return day, nil
}

func (r *Resolver) logProbeErrors(target time.Time, errs []error) {
	for _, err := range errs {
		r.log.Warn().Err(err).Str("target", domain.FormatDate(target)).Msg("Trading day probe failed, treating day as empty")
	}
}
