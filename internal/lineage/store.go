package lineage

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "solace/pkg/domain"
)

// CreateParams describe the birth of a new lineage.
type CreateParams[T Payload] struct {
	// BusinessKey may be supplied by the caller (e.g. a deterministic policy
	// key). Zero value lets the store allocate one. Creating a key that
	// already has a current version fails with sentinel.ErrConflict.
	BusinessKey uuid.UUID
	Payload     T
	CreatedBy   string
	Reason      string
}

// SupersedeParams describe a close-and-insert mutation of a lineage.
type SupersedeParams[T Payload] struct {
	// Mutate derives the successor payload from the current one. It runs
	// without I/O; an error aborts the supersede and propagates unchanged,
	// so domain state-machine guards surface through here.
	Mutate    func(T) (T, error)
	UpdatedBy string
	Reason    string
}

// Store persists version lineages. Implementations enforce the Record
// invariants; callers never write validity intervals themselves.
//
// Stores return sentinel errors (sentinel.ErrNotFound, sentinel.ErrConflict),
// optionally wrapped; services translate them into coded domain errors.
type Store[T Payload] interface {
	// Create inserts version 1 of a new lineage (is_current, valid_to null).
	Create(ctx context.Context, scope id.HomeID, params CreateParams[T]) (Record[T], error)

	// Supersede reads the current version, applies Mutate, then atomically
	// closes the current row and inserts the successor. A concurrent writer
	// closing the same row first surfaces as sentinel.ErrConflict; the caller
	// may retry the whole sequence with fresh data.
	Supersede(ctx context.Context, scope id.HomeID, businessKey uuid.UUID, params SupersedeParams[T]) (Record[T], error)

	// FindCurrent returns the single open version of the lineage.
	FindCurrent(ctx context.Context, scope id.HomeID, businessKey uuid.UUID) (Record[T], error)

	// FindLineage returns all versions, ascending. Side-effect free and
	// restartable: repeated calls without intervening writes observe
	// identical results.
	FindLineage(ctx context.Context, scope id.HomeID, businessKey uuid.UUID) (Lineage[T], error)

	// FindAsOf returns the version whose [ValidFrom, ValidTo) interval
	// contains the timestamp.
	FindAsOf(ctx context.Context, scope id.HomeID, businessKey uuid.UUID, at time.Time) (Record[T], error)

	// ListCurrent returns the current version of every lineage in scope,
	// ordered by business key.
	ListCurrent(ctx context.Context, scope id.HomeID) ([]Record[T], error)
}
