package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not compliance verdicts:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: write lost to a concurrent writer
// - ErrExpired: a time-bounded resource has lapsed
// - ErrAlreadyUsed: one-shot resource (follow-up send) already consumed
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing store or service temporarily unreachable
//
// A blocked contact attempt is never one of these; negative verdicts travel as
// values, not errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
