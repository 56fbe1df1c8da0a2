package services

import "errors"

// Ledger errors, split along the lines the request layer cares about:
// validation and business-rule errors are normal negative outcomes,
// ErrConcurrentConflict and ErrOperationTimedOut are retryable, and anything
// else is an infrastructure failure surfaced as-is.
var (
	// ErrInvalidAmount rejects zero or negative operation amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSelfTransfer rejects transfers where source and destination are the
	// same account.
	ErrSelfTransfer = errors.New("cannot transfer to same account")

	// ErrAccountNotFound means the account number is unknown.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is the expected outcome of a debit or transfer
	// that would take the source balance below zero.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrAccountClosed rejects every mutating operation on a CLOSED account.
	ErrAccountClosed = errors.New("account closed")

	// ErrDuplicateAccount means an account with the same number already exists.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrDuplicateOperation means the caller's idempotency key was already used.
	ErrDuplicateOperation = errors.New("operation already processed")

	// ErrConcurrentConflict is returned after the bounded retry on optimistic
	// lock failures is exhausted. Callers may retry.
	ErrConcurrentConflict = errors.New("concurrent update conflict")

	// ErrOperationTimedOut is returned when the request context expires before
	// commit. Callers may retry; nothing was committed.
	ErrOperationTimedOut = errors.New("operation timed out")

	// ErrAccountSpaceExhausted means the account number generator could not
	// find a free number within its attempt budget.
	ErrAccountSpaceExhausted = errors.New("account number space exhausted")
)
