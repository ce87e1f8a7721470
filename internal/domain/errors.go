package domain

import "errors"

var (
	// ErrInvalidDate is returned for a date that is not YYYYMMDD
	ErrInvalidDate = errors.New("invalid date, expected YYYYMMDD (e.g. 20231009)")
	// ErrFutureDate is returned for a date after today in the market time zone
	ErrFutureDate = errors.New("date is in the future")
	// ErrNoTradingDay is returned when no trading day exists within the search window
	ErrNoTradingDay = errors.New("no trading data near requested date")
	// ErrAllItemsFailed is returned when every instrument or sector of a snapshot failed
	ErrAllItemsFailed = errors.New("failed to fetch data for every item")
	// ErrNoData is returned by a fetch that found no row for the requested day
	ErrNoData = errors.New("no data for requested day")
)
