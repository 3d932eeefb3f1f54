package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
	// ErrInsufficientFunds signals a withdrawal larger than the goal total or
	// the per-(goal,bank) committed amount.
	ErrInsufficientFunds = errors.New("insufficient_funds")
	// ErrAlreadyRepaid signals a repay attempt on a terminal withdrawal.
	ErrAlreadyRepaid = errors.New("already_repaid")
)
