package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when no loyalty account exists for the customer
	ErrAccountNotFound = errors.New("loyalty account not found")

	// ErrInsufficientBalance is returned when a debit exceeds the account balance
	ErrInsufficientBalance = errors.New("insufficient points balance")

	// ErrInvalidAmount is returned when an adjustment or debit amount is not usable
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOrderMismatch is returned when an order does not belong to the customer
	ErrOrderMismatch = errors.New("order does not belong to customer")

	// ErrDuplicateSource is returned when a transaction with the same
	// (account, source_type, source_id) key already exists
	ErrDuplicateSource = errors.New("duplicate transaction source")

	// ErrConcurrencyConflict is returned after bounded retries on lock contention
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry")

	// ErrStorage wraps persistence failures so callers can tell
	// "request invalid" from "please retry"
	ErrStorage = errors.New("storage error")
)
