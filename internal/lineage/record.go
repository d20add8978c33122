// Package lineage implements the temporal versioned-record store used for
// funeral-home-scoped business rules and audit-tracked domain records.
//
// Every mutation of a record is written as a new version row with a validity
// interval (SCD2): the previous row is closed (valid_to set, is_current
// cleared) and the successor inserted in the same atomic unit. A lineage is
// the ordered sequence of all versions sharing one (scope, business key); it
// is strictly linear and never physically deleted.
package lineage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	id "solace/pkg/domain"
)

// Payload is the domain-specific content carried by a version row.
type Payload interface {
	// Kind labels the record family ("policy", "payment", ...) for metrics,
	// audit events, and error context.
	Kind() string
}

// Record is one version row of a lineage.
//
// Invariants (enforced by the Store, not by callers):
//  1. At most one row per (scope, business key) has IsCurrent set.
//  2. Version numbers are contiguous starting at 1.
//  3. For consecutive versions v and v+1, v.ValidTo equals (v+1).ValidFrom.
//  4. A closed row is never mutated again.
type Record[T Payload] struct {
	// ID uniquely identifies this version row. Immutable.
	ID uuid.UUID
	// Scope partitions all uniqueness and currency constraints by funeral home.
	Scope id.HomeID
	// BusinessKey is the stable identifier of the logical entity across its
	// whole version lineage. Never changes.
	BusinessKey uuid.UUID
	// Version is a positive integer, strictly increasing by 1, starting at 1.
	Version int
	// ValidFrom is when this version became effective.
	ValidFrom time.Time
	// ValidTo is when this version ceased being effective; nil while current.
	ValidTo *time.Time
	// IsCurrent is true iff ValidTo is nil. Stored redundantly for queries.
	IsCurrent bool
	// Payload carries the domain fields of this version.
	Payload T
	// CreatedBy and CreatedAt identify who and when produced THIS version.
	// For "who created the entity" use Lineage.CreatedBy / Lineage.CreatedAt.
	CreatedBy string
	CreatedAt time.Time
	// Reason is an optional free-text justification. Some transitions
	// (revocations, refunds, policy supersessions) require it.
	Reason string
}

// Lineage is the full, version-ascending history of one business key.
type Lineage[T Payload] []Record[T]

// Current returns the open version, if any.
func (l Lineage[T]) Current() (Record[T], bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].IsCurrent {
			return l[i], true
		}
	}
	var zero Record[T]
	return zero, false
}

// First returns version 1 of the lineage.
func (l Lineage[T]) First() (Record[T], bool) {
	if len(l) == 0 {
		var zero Record[T]
		return zero, false
	}
	return l[0], true
}

// CreatedBy reports who created the entity, i.e. the author of version 1.
func (l Lineage[T]) CreatedBy() string {
	if first, ok := l.First(); ok {
		return first.CreatedBy
	}
	return ""
}

// CreatedAt reports when the entity was born, i.e. version 1's creation time.
func (l Lineage[T]) CreatedAt() time.Time {
	if first, ok := l.First(); ok {
		return first.CreatedAt
	}
	return time.Time{}
}

// Validate checks the lineage against the store invariants. Both store
// implementations are audited with it in tests, and the lineage-audit CLI
// runs it against production tables.
func (l Lineage[T]) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("lineage is empty")
	}
	currents := 0
	for i, rec := range l {
		if rec.Version != i+1 {
			return fmt.Errorf("version gap: position %d holds version %d", i+1, rec.Version)
		}
		if rec.BusinessKey != l[0].BusinessKey {
			return fmt.Errorf("version %d belongs to business key %s", rec.Version, rec.BusinessKey)
		}
		if rec.IsCurrent {
			currents++
			if rec.ValidTo != nil {
				return fmt.Errorf("version %d is current but has valid_to set", rec.Version)
			}
			if i != len(l)-1 {
				return fmt.Errorf("version %d is current but not the highest version", rec.Version)
			}
		} else if rec.ValidTo == nil {
			return fmt.Errorf("version %d is closed but has no valid_to", rec.Version)
		}
		if i > 0 {
			prev := l[i-1]
			if prev.ValidTo == nil || !prev.ValidTo.Equal(rec.ValidFrom) {
				return fmt.Errorf("temporal gap between versions %d and %d", prev.Version, rec.Version)
			}
		}
	}
	if currents != 1 {
		return fmt.Errorf("lineage has %d current versions, want exactly 1", currents)
	}
	return nil
}
