package models

import "errors"

// Custom errors
var (
	ErrEmptySeries       = errors.New("price series is empty")
	ErrUnsortedSeries    = errors.New("price series is not sorted by date")
	ErrDuplicateDate     = errors.New("price series has duplicate date")
	ErrInvalidParameters = errors.New("invalid strategy parameters")
	ErrNonPositiveCash   = errors.New("initial cash must be positive")
	ErrNonPositivePrice  = errors.New("close price must be positive")
	ErrNotFound          = errors.New("record not found")
)
