// Package storetest is the conformance suite for lineage.Store
// implementations. The in-memory and postgres stores must satisfy the same
// invariants, so both run this exact suite; implementation-specific behavior
// stays in the implementation's own test file.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"solace/internal/lineage"
	id "solace/pkg/domain"
	"solace/pkg/platform/sentinel"
	"solace/pkg/requestcontext"
)

// Note is the payload used by the conformance suite.
type Note struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

func (Note) Kind() string { return "note" }

// Factory returns a fresh, empty store per test.
type Factory func(t *testing.T) lineage.Store[Note]

// Suite exercises every Store operation and the store invariants: single
// current version, contiguous versions, temporal contiguity, restartable
// reads, and optimistic-concurrency conflict signaling.
type Suite struct {
	suite.Suite
	NewStore Factory

	store lineage.Store[Note]
	scope id.HomeID
	ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.store = s.NewStore(s.T())
	s.scope = id.HomeID(uuid.New())
	s.ctx = requestcontext.WithActor(context.Background(), "staff:test")
}

// at pins the request clock; timestamps are truncated to microseconds so
// values survive a TIMESTAMPTZ round trip unchanged.
func (s *Suite) at(t time.Time) context.Context {
	return requestcontext.WithTime(s.ctx, t.UTC().Truncate(time.Microsecond))
}

func (s *Suite) create(text string) lineage.Record[Note] {
	rec, err := s.store.Create(s.ctx, s.scope, lineage.CreateParams[Note]{
		Payload:   Note{Text: text, Status: "open"},
		CreatedBy: "staff:author",
	})
	s.Require().NoError(err)
	return rec
}

func (s *Suite) TestCreateRoundTrip() {
	rec := s.create("first call with family")

	s.Equal(1, rec.Version)
	s.True(rec.IsCurrent)
	s.Nil(rec.ValidTo)
	s.NotEqual(uuid.Nil, rec.ID)
	s.NotEqual(uuid.Nil, rec.BusinessKey)

	found, err := s.store.FindCurrent(s.ctx, s.scope, rec.BusinessKey)
	s.Require().NoError(err)
	s.Equal(rec.ID, found.ID)
	s.Equal(rec.Version, found.Version)
	s.Equal(rec.Payload, found.Payload)
	s.Equal(rec.CreatedBy, found.CreatedBy)
	s.True(found.ValidFrom.Equal(rec.ValidFrom))
}

func (s *Suite) TestCreateWithCallerSuppliedKey() {
	key := uuid.New()
	rec, err := s.store.Create(s.ctx, s.scope, lineage.CreateParams[Note]{
		BusinessKey: key,
		Payload:     Note{Text: "pinned key", Status: "open"},
		CreatedBy:   "staff:author",
	})
	s.Require().NoError(err)
	s.Equal(key, rec.BusinessKey)

	_, err = s.store.Create(s.ctx, s.scope, lineage.CreateParams[Note]{
		BusinessKey: key,
		Payload:     Note{Text: "duplicate", Status: "open"},
		CreatedBy:   "staff:other",
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *Suite) TestSupersedeLifecycle() {
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(1 * time.Hour)
	t3 := t1.Add(2 * time.Hour)

	rec, err := s.store.Create(s.at(t1), s.scope, lineage.CreateParams[Note]{
		Payload:   Note{Text: "v1", Status: "open"},
		CreatedBy: "staff:author",
	})
	s.Require().NoError(err)

	v2, err := s.store.Supersede(s.at(t2), s.scope, rec.BusinessKey, lineage.SupersedeParams[Note]{
		Mutate:    func(n Note) (Note, error) { n.Text = "v2"; return n, nil },
		UpdatedBy: "staff:editor",
	})
	s.Require().NoError(err)
	s.Equal(2, v2.Version)
	s.Equal("v2", v2.Payload.Text)
	s.Equal("staff:editor", v2.CreatedBy)

	v3, err := s.store.Supersede(s.at(t3), s.scope, rec.BusinessKey, lineage.SupersedeParams[Note]{
		Mutate:    func(n Note) (Note, error) { n.Status = "closed"; return n, nil },
		UpdatedBy: "staff:editor",
		Reason:    "family requested closure",
	})
	s.Require().NoError(err)
	s.Equal(3, v3.Version)
	s.Equal("v2", v3.Payload.Text, "unchanged fields carry forward")
	s.Equal("closed", v3.Payload.Status)
	s.Equal("family requested closure", v3.Reason)

	hist, err := s.store.FindLineage(s.ctx, s.scope, rec.BusinessKey)
	s.Require().NoError(err)
	s.Require().Len(hist, 3)
	s.Require().NoError(hist.Validate())

	// Temporal contiguity: each close stamp equals the successor's open stamp.
	s.Require().NotNil(hist[0].ValidTo)
	s.True(hist[0].ValidTo.Equal(hist[1].ValidFrom))
	s.Require().NotNil(hist[1].ValidTo)
	s.True(hist[1].ValidTo.Equal(hist[2].ValidFrom))

	// Lineage-level vs. version-level audit fields stay distinguishable.
	s.Equal("staff:author", hist.CreatedBy())
	s.Equal("staff:editor", hist[2].CreatedBy)
}

func (s *Suite) TestSupersedeWithoutCurrentVersion() {
	_, err := s.store.Supersede(s.ctx, s.scope, uuid.New(), lineage.SupersedeParams[Note]{
		Mutate:    func(n Note) (Note, error) { return n, nil },
		UpdatedBy: "staff:editor",
	})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestSupersedeMutatorErrorAborts() {
	rec := s.create("guarded")
	boom := errors.New("transition refused")

	_, err := s.store.Supersede(s.ctx, s.scope, rec.BusinessKey, lineage.SupersedeParams[Note]{
		Mutate:    func(Note) (Note, error) { return Note{}, boom },
		UpdatedBy: "staff:editor",
	})
	s.Require().ErrorIs(err, boom)

	// The failed supersede left no partial state behind.
	hist, err := s.store.FindLineage(s.ctx, s.scope, rec.BusinessKey)
	s.Require().NoError(err)
	s.Len(hist, 1)
	s.Require().NoError(hist.Validate())
}

func (s *Suite) TestFindAsOf() {
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(1 * time.Hour)
	t3 := t1.Add(2 * time.Hour)

	rec, err := s.store.Create(s.at(t1), s.scope, lineage.CreateParams[Note]{
		Payload:   Note{Text: "v1", Status: "open"},
		CreatedBy: "staff:author",
	})
	s.Require().NoError(err)
	for i, at := range []time.Time{t2, t3} {
		version := i + 2
		_, err = s.store.Supersede(s.at(at), s.scope, rec.BusinessKey, lineage.SupersedeParams[Note]{
			Mutate:    func(n Note) (Note, error) { n.Text = "v" + string(rune('0'+version)); return n, nil },
			UpdatedBy: "staff:editor",
		})
		s.Require().NoError(err)
	}

	s.Run("timestamp inside a closed interval returns that version exactly", func() {
		got, err := s.store.FindAsOf(s.ctx, s.scope, rec.BusinessKey, t2.Add(30*time.Minute))
		s.Require().NoError(err)
		s.Equal(2, got.Version)
	})

	s.Run("boundary timestamp belongs to the newer version", func() {
		got, err := s.store.FindAsOf(s.ctx, s.scope, rec.BusinessKey, t2)
		s.Require().NoError(err)
		s.Equal(2, got.Version)
	})

	s.Run("timestamp after the last supersede returns the current version", func() {
		got, err := s.store.FindAsOf(s.ctx, s.scope, rec.BusinessKey, t3.Add(24*time.Hour))
		s.Require().NoError(err)
		s.Equal(3, got.Version)
		s.True(got.IsCurrent)
	})

	s.Run("timestamp before the lineage's birth is not found", func() {
		_, err := s.store.FindAsOf(s.ctx, s.scope, rec.BusinessKey, t1.Add(-time.Minute))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown business key is not found", func() {
		_, err := s.store.FindAsOf(s.ctx, s.scope, uuid.New(), t2)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *Suite) TestFindLineageIsRestartable() {
	rec := s.create("stable read")
	_, err := s.store.Supersede(s.ctx, s.scope, rec.BusinessKey, lineage.SupersedeParams[Note]{
		Mutate:    func(n Note) (Note, error) { n.Status = "closed"; return n, nil },
		UpdatedBy: "staff:editor",
	})
	s.Require().NoError(err)

	first, err := s.store.FindLineage(s.ctx, s.scope, rec.BusinessKey)
	s.Require().NoError(err)
	second, err := s.store.FindLineage(s.ctx, s.scope, rec.BusinessKey)
	s.Require().NoError(err)

	s.Require().Len(second, len(first))
	for i := range first {
		s.Equal(first[i].ID, second[i].ID)
		s.Equal(first[i].Version, second[i].Version)
		s.Equal(first[i].Payload, second[i].Payload)
	}
}

func (s *Suite) TestFindLineageUnknownKey() {
	_, err := s.store.FindLineage(s.ctx, s.scope, uuid.New())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestListCurrentIsScoped() {
	recA := s.create("a")
	recB := s.create("b")
	_, err := s.store.Supersede(s.ctx, s.scope, recB.BusinessKey, lineage.SupersedeParams[Note]{
		Mutate:    func(n Note) (Note, error) { n.Status = "closed"; return n, nil },
		UpdatedBy: "staff:editor",
	})
	s.Require().NoError(err)

	otherScope := id.HomeID(uuid.New())
	_, err = s.store.Create(s.ctx, otherScope, lineage.CreateParams[Note]{
		Payload:   Note{Text: "other home", Status: "open"},
		CreatedBy: "staff:other",
	})
	s.Require().NoError(err)

	current, err := s.store.ListCurrent(s.ctx, s.scope)
	s.Require().NoError(err)
	s.Require().Len(current, 2)
	for _, rec := range current {
		s.True(rec.IsCurrent)
		s.Equal(s.scope, rec.Scope)
	}
	// One lineage still on version 1, the superseded one on version 2.
	versions := map[uuid.UUID]int{recA.BusinessKey: 1, recB.BusinessKey: 2}
	for _, rec := range current {
		s.Equal(versions[rec.BusinessKey], rec.Version)
	}
}

func (s *Suite) TestListCurrentEmptyScope() {
	current, err := s.store.ListCurrent(s.ctx, id.HomeID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(current)
}

// TestConcurrentSupersedeSameVersion forces two writers to observe the same
// current version: both mutators block on a barrier before either write
// commits. Exactly one wins; the loser gets ErrConflict, never silent loss.
func (s *Suite) TestConcurrentSupersedeSameVersion() {
	rec := s.create("contested")

	var barrier sync.WaitGroup
	barrier.Add(2)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(tag string) {
			_, err := s.store.Supersede(s.ctx, s.scope, rec.BusinessKey, lineage.SupersedeParams[Note]{
				Mutate: func(n Note) (Note, error) {
					barrier.Done()
					barrier.Wait()
					n.Text = tag
					return n, nil
				},
				UpdatedBy: "staff:" + tag,
			})
			results <- err
		}("writer-" + string(rune('a'+i)))
	}

	var conflicts, successes int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			successes++
		case errors.Is(err, sentinel.ErrConflict):
			conflicts++
		default:
			s.Require().NoError(err)
		}
	}
	s.Equal(1, successes, "exactly one writer wins")
	s.Equal(1, conflicts, "the loser is told, not silently dropped")

	hist, err := s.store.FindLineage(s.ctx, s.scope, rec.BusinessKey)
	s.Require().NoError(err)
	s.Require().NoError(hist.Validate())
	current, ok := hist.Current()
	s.Require().True(ok)
	s.Equal(2, current.Version)
}

// TestConcurrentCreateSameKey races many creators of one business key.
func (s *Suite) TestConcurrentCreateSameKey() {
	key := uuid.New()
	const writers = 10

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Create(s.ctx, s.scope, lineage.CreateParams[Note]{
				BusinessKey: key,
				Payload:     Note{Text: "racer", Status: "open"},
				CreatedBy:   "staff:racer",
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one create should succeed")
	s.Equal(int32(writers-1), conflicts.Load())

	hist, err := s.store.FindLineage(s.ctx, s.scope, key)
	s.Require().NoError(err)
	s.Len(hist, 1)
	s.Require().NoError(hist.Validate())
}

// TestManyWritersSettle lets writers race freely (no barrier): after all calls
// settle, the lineage is valid and exactly the winners advanced the version.
func (s *Suite) TestManyWritersSettle() {
	rec := s.create("busy lineage")
	const writers = 8

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Supersede(s.ctx, s.scope, rec.BusinessKey, lineage.SupersedeParams[Note]{
				Mutate:    func(n Note) (Note, error) { return n, nil },
				UpdatedBy: "staff:writer",
			})
			if err == nil {
				successes.Add(1)
			} else if !errors.Is(err, sentinel.ErrConflict) {
				panic(err)
			}
		}()
	}
	wg.Wait()

	hist, err := s.store.FindLineage(s.ctx, s.scope, rec.BusinessKey)
	s.Require().NoError(err)
	s.Require().NoError(hist.Validate())
	current, ok := hist.Current()
	s.Require().True(ok)
	s.Equal(1+int(successes.Load()), current.Version)
}
