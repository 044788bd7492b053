package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and providers return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: session or record does not exist in the store
// - ErrExpired: session passed its TTL and was (or will be) reaped
// - ErrPermissionDenied: the platform refused a device capability (camera, geolocation)
// - ErrTimeout: a bounded device wait elapsed without a result
// - ErrInvalidState: resource in wrong state for the requested operation
// - ErrUnavailable: downstream sink or broker temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrExpired          = errors.New("expired")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTimeout          = errors.New("timeout")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnavailable      = errors.New("unavailable")
)
