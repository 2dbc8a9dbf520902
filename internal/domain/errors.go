package domain

import "errors"

var (
	ErrDividendNotFound  = errors.New("dividend not found")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrMalformedUpstream = errors.New("malformed upstream response")
	ErrEmailTaken        = errors.New("email already registered")
	ErrQueueFull         = errors.New("trade job queue full")
)
