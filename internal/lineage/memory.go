package lineage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	id "solace/pkg/domain"
	"solace/pkg/platform/sentinel"
	"solace/pkg/requestcontext"
)

// InMemory keeps version rows in an append-only arena indexed by scoped
// business key. It favors clarity over performance and is the test double for
// everything built on Store; it satisfies the same invariants as Postgres and
// is exercised by the same property suite.
type InMemory[T Payload] struct {
	mu      sync.RWMutex
	records []Record[T]
	index   map[scopedKey][]int
}

type scopedKey struct {
	scope    id.HomeID
	business uuid.UUID
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory[T Payload]() *InMemory[T] {
	return &InMemory[T]{index: make(map[scopedKey][]int)}
}

func (s *InMemory[T]) Create(ctx context.Context, scope id.HomeID, params CreateParams[T]) (Record[T], error) {
	var zero Record[T]
	if scope.IsNil() {
		return zero, fmt.Errorf("create: scope is required")
	}

	businessKey := params.BusinessKey
	if businessKey == uuid.Nil {
		businessKey = uuid.New()
	}
	key := scopedKey{scope: scope, business: businessKey}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.index[key]) > 0 {
		return zero, fmt.Errorf("%w: business key %s already has a version lineage", sentinel.ErrConflict, businessKey)
	}

	rec := Record[T]{
		ID:          uuid.New(),
		Scope:       scope,
		BusinessKey: businessKey,
		Version:     1,
		ValidFrom:   now,
		IsCurrent:   true,
		Payload:     params.Payload,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		Reason:      params.Reason,
	}
	s.index[key] = append(s.index[key], len(s.records))
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *InMemory[T]) Supersede(ctx context.Context, scope id.HomeID, businessKey uuid.UUID, params SupersedeParams[T]) (Record[T], error) {
	var zero Record[T]
	if params.Mutate == nil {
		return zero, fmt.Errorf("supersede: mutator is required")
	}

	// Snapshot the current version without holding the write lock so the
	// mutator runs concurrently. The version number is re-checked below;
	// losing the race yields ErrConflict, never a silent overwrite.
	observed, err := s.FindCurrent(ctx, scope, businessKey)
	if err != nil {
		return zero, err
	}

	next, err := params.Mutate(observed.Payload)
	if err != nil {
		return zero, err
	}

	now := requestcontext.Now(ctx)
	key := scopedKey{scope: scope, business: businessKey}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.currentIndexLocked(key)
	if !ok {
		return zero, fmt.Errorf("%w: no current version for business key %s", sentinel.ErrNotFound, businessKey)
	}
	if s.records[idx].Version != observed.Version {
		return zero, fmt.Errorf("%w: version %d superseded by version %d", sentinel.ErrConflict, observed.Version, s.records[idx].Version)
	}

	validTo := now
	s.records[idx].ValidTo = &validTo
	s.records[idx].IsCurrent = false

	rec := Record[T]{
		ID:          uuid.New(),
		Scope:       scope,
		BusinessKey: businessKey,
		Version:     observed.Version + 1,
		ValidFrom:   now,
		IsCurrent:   true,
		Payload:     next,
		CreatedBy:   params.UpdatedBy,
		CreatedAt:   now,
		Reason:      params.Reason,
	}
	s.index[key] = append(s.index[key], len(s.records))
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *InMemory[T]) FindCurrent(_ context.Context, scope id.HomeID, businessKey uuid.UUID) (Record[T], error) {
	var zero Record[T]
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.currentIndexLocked(scopedKey{scope: scope, business: businessKey})
	if !ok {
		return zero, fmt.Errorf("%w: no current version for business key %s", sentinel.ErrNotFound, businessKey)
	}
	return s.records[idx], nil
}

func (s *InMemory[T]) FindLineage(_ context.Context, scope id.HomeID, businessKey uuid.UUID) (Lineage[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := s.index[scopedKey{scope: scope, business: businessKey}]
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: unknown business key %s", sentinel.ErrNotFound, businessKey)
	}
	lineage := make(Lineage[T], 0, len(indices))
	for _, idx := range indices {
		lineage = append(lineage, s.records[idx])
	}
	return lineage, nil
}

func (s *InMemory[T]) FindAsOf(_ context.Context, scope id.HomeID, businessKey uuid.UUID, at time.Time) (Record[T], error) {
	var zero Record[T]
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := s.index[scopedKey{scope: scope, business: businessKey}]
	if len(indices) == 0 {
		return zero, fmt.Errorf("%w: unknown business key %s", sentinel.ErrNotFound, businessKey)
	}
	for _, idx := range indices {
		rec := s.records[idx]
		if at.Before(rec.ValidFrom) {
			continue
		}
		if rec.ValidTo == nil || at.Before(*rec.ValidTo) {
			return rec, nil
		}
	}
	return zero, fmt.Errorf("%w: no version of %s effective at %s", sentinel.ErrNotFound, businessKey, at.Format(time.RFC3339Nano))
}

func (s *InMemory[T]) ListCurrent(_ context.Context, scope id.HomeID) ([]Record[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var current []Record[T]
	for key, indices := range s.index {
		if key.scope != scope || len(indices) == 0 {
			continue
		}
		last := s.records[indices[len(indices)-1]]
		if last.IsCurrent {
			current = append(current, last)
		}
	}
	sort.Slice(current, func(i, j int) bool {
		return bytes.Compare(current[i].BusinessKey[:], current[j].BusinessKey[:]) < 0
	})
	return current, nil
}

// currentIndexLocked returns the arena index of the open version. The open
// version is always the last appended row of its lineage.
func (s *InMemory[T]) currentIndexLocked(key scopedKey) (int, bool) {
	indices := s.index[key]
	if len(indices) == 0 {
		return 0, false
	}
	idx := indices[len(indices)-1]
	if !s.records[idx].IsCurrent {
		return 0, false
	}
	return idx, true
}
