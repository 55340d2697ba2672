// Package jobengineerr holds the sentinel errors for the §7 error taxonomy.
// Callers should wrap these with %w so errors.Is keeps working across tiers.
package jobengineerr

import "errors"

var (
	// ErrInvalidJobID: caller-supplied jobid fails the §6 grammar.
	ErrInvalidJobID = errors.New("invalid jobid")
	// ErrActionNotFound: no handler registered for the requested action.
	ErrActionNotFound = errors.New("action not found")
	// ErrStoreUnreadable: an input/output store could not be read.
	ErrStoreUnreadable = errors.New("store unreadable")
	// ErrLockTimeout: an advisory lock was not released within its deadline.
	ErrLockTimeout = errors.New("lock wait timeout")
	// ErrRecoveryExhausted: a recovered job's attempts reached MAX_ATTEMPTS.
	ErrRecoveryExhausted = errors.New("recovery attempts exhausted")
	// ErrUnknownJob: no record exists for the requested jobid.
	ErrUnknownJob = errors.New("unknown jobid")
)
