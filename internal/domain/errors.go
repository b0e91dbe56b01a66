package domain

import "fmt"

// GovernorError is the unified error type for the governor.
// Each error has a numeric code and human-readable message.
type GovernorError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *GovernorError) Error() string {
	return fmt.Sprintf("governor error %d: %s", e.Code, e.Message)
}

// NewGovernorError creates a new GovernorError.
func NewGovernorError(code int, msg string) *GovernorError {
	return &GovernorError{Code: code, Message: msg}
}

// WrapGovernorError creates a GovernorError that includes a cause.
func WrapGovernorError(code int, msg string, cause error) *GovernorError {
	return &GovernorError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Routing / snapshot errors (-42010 to -42039) ----

var (
	ErrTierUnknown      = &GovernorError{Code: -42010, Message: "unknown tier"}
	ErrSnapshotInvalid  = &GovernorError{Code: -42011, Message: "routing snapshot validation failed"}
	ErrSnapshotNotFound = &GovernorError{Code: -42012, Message: "routing snapshot not found"}
	ErrDuplicateTier    = &GovernorError{Code: -42013, Message: "duplicate tier in snapshot"}
	ErrSnapshotWrite    = &GovernorError{Code: -42014, Message: "routing snapshot write failed"}
	ErrCatalogEmpty     = &GovernorError{Code: -42015, Message: "model catalog returned no entries"}
)

// ---- Budget / policy errors (-42040 to -42069) ----

var (
	ErrBudgetInputs  = &GovernorError{Code: -42040, Message: "budget inputs validation failed"}
	ErrReasonUnknown = &GovernorError{Code: -42041, Message: "unknown stuck reason"}
	ErrPhaseUnknown  = &GovernorError{Code: -42042, Message: "phase has not been started"}
)

// ---- Proof errors (-42100 to -42129) ----

var (
	ErrProofInvalid = &GovernorError{Code: -42100, Message: "phase proof validation failed"}
	ErrProofWrite   = &GovernorError{Code: -42101, Message: "phase proof write failed"}
)

// ---- Store / run / config errors (-42130 to -42159) ----

var (
	ErrStoreInit      = &GovernorError{Code: -42130, Message: "failed to initialize store"}
	ErrStoreQuery     = &GovernorError{Code: -42131, Message: "store query failed"}
	ErrStoreWrite     = &GovernorError{Code: -42132, Message: "store write failed"}
	ErrConfigInvalid  = &GovernorError{Code: -42133, Message: "invalid configuration"}
	ErrRunNotFound    = &GovernorError{Code: -42134, Message: "run not found"}
	ErrDuplicateRun   = &GovernorError{Code: -42135, Message: "run already exists"}
	ErrDuplicateEvent = &GovernorError{Code: -42136, Message: "duplicate event sequence number"}
	ErrStaleRun       = &GovernorError{Code: -42137, Message: "run state was modified concurrently"}
	ErrBadRecordID    = &GovernorError{Code: -42138, Message: "record id contains unsafe characters"}
)
