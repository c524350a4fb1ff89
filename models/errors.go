package models

import "errors"

var (
	// ErrInvalidParameter is returned when a request is rejected locally,
	// before anything is sent to the exchange.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInsufficientData is returned when there are fewer candles than the
	// long moving-average window.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrAccountNotFound is returned when the profile holds no account for
	// the requested currency.
	ErrAccountNotFound = errors.New("account not found")
)
