package engine

import "errors"

var (
	// ErrDataUnavailable means a required input file is missing, unreadable or
	// lacks a required column. Fatal at startup.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrNoDataAvailable means a derived view is empty where a row was expected.
	ErrNoDataAvailable = errors.New("no data available")

	// ErrInvalidSelection means a metric or state outside the selectable set.
	ErrInvalidSelection = errors.New("invalid selection")
)
