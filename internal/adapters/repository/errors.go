package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrUnknownSheet = errors.New("unknown sheet")
	ErrUnavailable  = errors.New("store unavailable")
)
