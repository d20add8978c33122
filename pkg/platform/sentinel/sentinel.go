package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: no lineage, current version, or as-of version for the key
// - ErrConflict: optimistic concurrency check failed; another writer won
// - ErrStalePolicy: a held policy version is no longer the current one
// - ErrUnavailable: storage or broker temporarily unavailable
//
// For validation errors (bad input, rejected commands), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrStalePolicy = errors.New("stale policy")
	ErrUnavailable = errors.New("unavailable")
)
