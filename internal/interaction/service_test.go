package interaction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"solace/internal/lineage"
	"solace/internal/policy"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
	"solace/pkg/platform/audit"
	"solace/pkg/platform/sentinel"
	"solace/pkg/requestcontext"
)

// conflictingStore injects supersede conflicts before delegating.
type conflictingStore struct {
	lineage.Store[Interaction]
	conflicts int
}

func (c *conflictingStore) Supersede(ctx context.Context, scope id.HomeID, key uuid.UUID, params lineage.SupersedeParams[Interaction]) (lineage.Record[Interaction], error) {
	if c.conflicts > 0 {
		c.conflicts--
		return lineage.Record[Interaction]{}, sentinel.ErrConflict
	}
	return c.Store.Supersede(ctx, scope, key, params)
}

type ServiceSuite struct {
	suite.Suite

	interactions *lineage.InMemory[Interaction]
	policies     *lineage.InMemory[policy.Document]
	admin        *policy.Admin
	publisher    *audit.InMemoryPublisher
	service      *Service
	scope        id.HomeID
	actor        string
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.interactions = lineage.NewInMemory[Interaction]()
	s.policies = lineage.NewInMemory[policy.Document]()
	s.admin = policy.NewAdmin(s.policies)
	s.publisher = audit.NewInMemoryPublisher()
	s.service = NewService(s.interactions, policy.NewResolver(s.policies),
		WithAuditEmitter(audit.NewEmitter(s.publisher, nil)),
	)
	s.scope = id.HomeID(uuid.New())
	s.actor = "staff:" + uuid.NewString()

	doc, err := policy.NewInteractionDocument(defaultRules())
	s.Require().NoError(err)
	_, err = s.admin.Configure(s.ctx(), policy.ConfigureParams{Scope: s.scope, Document: doc})
	s.Require().NoError(err)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithActor(context.Background(), s.actor)
}

func (s *ServiceSuite) logParams() LogParams {
	return LogParams{
		CaseID:   id.CaseID(uuid.New()),
		StaffID:  id.StaffID(uuid.New()),
		Type:     "call",
		Notes:    "initial arrangement call",
		Duration: 20 * time.Minute,
	}
}

func (s *ServiceSuite) TestLog() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())

	s.Require().NoError(err)
	s.Equal(1, rec.Version)
	s.Equal(StatusOpen, rec.Payload.Status)
	s.Equal(1, rec.Payload.PolicyVersion)
	s.Equal(s.actor, rec.CreatedBy)

	events := s.publisher.Events()
	s.Require().Len(events, 1)
	s.Equal("interaction.logged", events[0].Action)
}

func (s *ServiceSuite) TestLogRejectedByPolicy() {
	params := s.logParams()
	params.Duration = 10 * time.Second

	_, err := s.service.Log(s.ctx(), s.scope, params)

	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("duration", dErrors.FieldOf(err))

	current, storeErr := s.interactions.ListCurrent(s.ctx(), s.scope)
	s.Require().NoError(storeErr)
	s.Empty(current)
}

func (s *ServiceSuite) TestLogWithoutPolicyFails() {
	otherScope := id.HomeID(uuid.New())
	_, err := s.service.Log(s.ctx(), otherScope, s.logParams())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCompleteLifecycle() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())
	s.Require().NoError(err)

	done, err := s.service.Complete(s.ctx(), s.scope, rec.BusinessKey)

	s.Require().NoError(err)
	s.Equal(2, done.Version)
	s.Equal(StatusCompleted, done.Payload.Status)

	_, err = s.service.Complete(s.ctx(), s.scope, rec.BusinessKey)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestAmendNotes() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())
	s.Require().NoError(err)

	amended, err := s.service.AmendNotes(s.ctx(), s.scope, rec.BusinessKey, "family requested graveside service")

	s.Require().NoError(err)
	s.Equal("family requested graveside service", amended.Payload.Notes)
	// Untouched fields carry forward.
	s.Equal(rec.Payload.Type, amended.Payload.Type)
	s.Equal(rec.Payload.Duration, amended.Payload.Duration)
}

func (s *ServiceSuite) TestAmendNotesRevalidates() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())
	s.Require().NoError(err)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.service.AmendNotes(s.ctx(), s.scope, rec.BusinessKey, string(long))

	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	current, storeErr := s.interactions.FindCurrent(s.ctx(), s.scope, rec.BusinessKey)
	s.Require().NoError(storeErr)
	s.Equal(1, current.Version)
}

func (s *ServiceSuite) TestCancelRecordsReason() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())
	s.Require().NoError(err)

	cancelled, err := s.service.Cancel(s.ctx(), s.scope, rec.BusinessKey, "logged against the wrong case")

	s.Require().NoError(err)
	s.Equal(StatusCancelled, cancelled.Payload.Status)
	s.Equal("logged against the wrong case", cancelled.Reason)
}

func (s *ServiceSuite) TestSupersedeConflictRetriesOnce() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())
	s.Require().NoError(err)

	store := &conflictingStore{Store: s.interactions, conflicts: 1}
	svc := NewService(store, policy.NewResolver(s.policies))

	done, err := svc.Complete(s.ctx(), s.scope, rec.BusinessKey)

	s.Require().NoError(err)
	s.Equal(StatusCompleted, done.Payload.Status)
}

func (s *ServiceSuite) TestPersistentConflictSurfaces() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())
	s.Require().NoError(err)

	store := &conflictingStore{Store: s.interactions, conflicts: 2}
	svc := NewService(store, policy.NewResolver(s.policies))

	_, err = svc.Complete(s.ctx(), s.scope, rec.BusinessKey)

	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestHistory() {
	rec, err := s.service.Log(s.ctx(), s.scope, s.logParams())
	s.Require().NoError(err)
	_, err = s.service.AmendNotes(s.ctx(), s.scope, rec.BusinessKey, "updated")
	s.Require().NoError(err)
	_, err = s.service.Complete(s.ctx(), s.scope, rec.BusinessKey)
	s.Require().NoError(err)

	history, err := s.service.History(s.ctx(), s.scope, rec.BusinessKey)

	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.NoError(history.Validate())
	s.Equal(StatusOpen, history[0].Payload.Status)
	s.Equal(StatusCompleted, history[2].Payload.Status)
}
