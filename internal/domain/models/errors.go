package models

import "errors"

// Sentinel errors shared across packages. Callers match them with errors.Is.
var (
	// ErrUnparsableRecord is returned for a row without any recognizable business-type marker.
	ErrUnparsableRecord = errors.New("unparsable record")
	// ErrMissingColumns means an export lacks the columns needed to classify rows at all.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrInvalidInputOrdering is returned when transactions are not in date order.
	ErrInvalidInputOrdering = errors.New("transactions are not date ordered")
	// ErrPriceUnavailable means every price provider was exhausted.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrNotSupported is returned by a provider that cannot serve a request at all.
	ErrNotSupported = errors.New("not supported")
	// ErrProviderNotConnected is returned by a provider whose session is not initialized.
	ErrProviderNotConnected = errors.New("provider not connected")
	// ErrInvalidPrice is returned for zero, negative or missing prices.
	ErrInvalidPrice = errors.New("invalid price")
)
