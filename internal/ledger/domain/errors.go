package domain

import "errors"

// Sentinel errors for the ledger core. Mutation paths guarantee that any
// error leaves state exactly as it was before the call.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrAlreadyPaidOut      = errors.New("already paid out")
	ErrEmptyReason         = errors.New("rejection reason is required")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAccountSuspended    = errors.New("account suspended")
	ErrPlanAlreadyActive   = errors.New("plan already has an active investment")
	ErrDuplicate           = errors.New("duplicate entry")
)
