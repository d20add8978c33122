package syncprofile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"solace/internal/lineage"
	"solace/internal/policy"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
	"solace/pkg/requestcontext"
)

func defaultRules() policy.SyncRules {
	return policy.SyncRules{
		EnabledProviders: []string{"google", "outlook"},
		MinWindowDays:    7,
		MaxWindowDays:    365,
		OnConflict:       policy.SyncManualReview,
	}
}

func TestEvaluate(t *testing.T) {
	base := Profile{Provider: "google", WindowDays: 30}

	t.Run("valid profile accepted", func(t *testing.T) {
		assert.Equal(t, policy.OutcomeAccepted, Evaluate(defaultRules(), base).Outcome)
	})

	t.Run("provider matches regardless of case and padding", func(t *testing.T) {
		doc, err := policy.NewSyncDocument(policy.SyncRules{
			EnabledProviders: []string{"Google", " Outlook "},
			MinWindowDays:    7,
			MaxWindowDays:    365,
			OnConflict:       policy.SyncManualReview,
		})
		assert.NoError(t, err)

		p := base
		p.Provider = "Google"
		assert.Equal(t, policy.OutcomeAccepted, Evaluate(*doc.Sync, p).Outcome)

		p.Provider = "  OUTLOOK "
		assert.Equal(t, policy.OutcomeAccepted, Evaluate(*doc.Sync, p).Outcome)
	})

	t.Run("disabled provider rejected", func(t *testing.T) {
		p := base
		p.Provider = "exchange"
		decision := Evaluate(defaultRules(), p)
		assert.True(t, decision.IsRejected())
		assert.Equal(t, "provider", decision.Violation.Field)
	})

	t.Run("window below minimum rejected", func(t *testing.T) {
		p := base
		p.WindowDays = 3
		assert.True(t, Evaluate(defaultRules(), p).IsRejected())
	})

	t.Run("window above maximum rejected", func(t *testing.T) {
		p := base
		p.WindowDays = 400
		assert.True(t, Evaluate(defaultRules(), p).IsRejected())
	})

	t.Run("window at bounds accepted", func(t *testing.T) {
		p := base
		p.WindowDays = 7
		assert.Equal(t, policy.OutcomeAccepted, Evaluate(defaultRules(), p).Outcome)
		p.WindowDays = 365
		assert.Equal(t, policy.OutcomeAccepted, Evaluate(defaultRules(), p).Outcome)
	})
}

type ServiceSuite struct {
	suite.Suite

	profiles *lineage.InMemory[Profile]
	policies *lineage.InMemory[policy.Document]
	admin    *policy.Admin
	service  *Service
	scope    id.HomeID
	staffID  id.StaffID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.profiles = lineage.NewInMemory[Profile]()
	s.policies = lineage.NewInMemory[policy.Document]()
	s.admin = policy.NewAdmin(s.policies)
	s.service = NewService(s.profiles, policy.NewResolver(s.policies))
	s.scope = id.HomeID(uuid.New())
	s.staffID = id.StaffID(uuid.New())

	doc, err := policy.NewSyncDocument(defaultRules())
	s.Require().NoError(err)
	_, err = s.admin.Configure(s.ctx(), policy.ConfigureParams{Scope: s.scope, Document: doc})
	s.Require().NoError(err)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithActor(context.Background(), "staff:"+uuid.NewString())
}

func (s *ServiceSuite) enable() lineage.Record[Profile] {
	rec, err := s.service.Enable(s.ctx(), s.scope, EnableParams{
		StaffID:    s.staffID,
		Provider:   "google",
		WindowDays: 30,
	})
	s.Require().NoError(err)
	return rec
}

func (s *ServiceSuite) TestEnable() {
	rec := s.enable()

	s.Equal(1, rec.Version)
	s.Equal(StatusEnabled, rec.Payload.Status)
	s.Equal(1, rec.Payload.PolicyVersion)
}

func (s *ServiceSuite) TestEnableRejectedProvider() {
	_, err := s.service.Enable(s.ctx(), s.scope, EnableParams{
		StaffID:    s.staffID,
		Provider:   "exchange",
		WindowDays: 30,
	})

	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("provider", dErrors.FieldOf(err))
}

func (s *ServiceSuite) TestReconfigure() {
	rec := s.enable()

	next, err := s.service.Reconfigure(s.ctx(), s.scope, rec.BusinessKey, ReconfigureParams{
		Provider:   "outlook",
		WindowDays: 90,
	})

	s.Require().NoError(err)
	s.Equal(2, next.Version)
	s.Equal("outlook", next.Payload.Provider)
	s.Equal(90, next.Payload.WindowDays)
	s.Equal(s.staffID, next.Payload.StaffID)
}

func (s *ServiceSuite) TestReconfigureRevalidates() {
	rec := s.enable()

	_, err := s.service.Reconfigure(s.ctx(), s.scope, rec.BusinessKey, ReconfigureParams{
		Provider:   "google",
		WindowDays: 1_000,
	})

	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	current, storeErr := s.profiles.FindCurrent(s.ctx(), s.scope, rec.BusinessKey)
	s.Require().NoError(storeErr)
	s.Equal(1, current.Version)
}

func (s *ServiceSuite) TestReconfigureTracksPolicyVersion() {
	rec := s.enable()

	rules := defaultRules()
	rules.MaxWindowDays = 180
	doc, err := policy.NewSyncDocument(rules)
	s.Require().NoError(err)
	_, err = s.admin.Configure(s.ctx(), policy.ConfigureParams{Scope: s.scope, Document: doc, Reason: "shorten windows"})
	s.Require().NoError(err)

	next, err := s.service.Reconfigure(s.ctx(), s.scope, rec.BusinessKey, ReconfigureParams{
		Provider:   "google",
		WindowDays: 90,
	})
	s.Require().NoError(err)
	s.Equal(2, next.Payload.PolicyVersion)
}

func (s *ServiceSuite) TestDisable() {
	rec := s.enable()

	disabled, err := s.service.Disable(s.ctx(), s.scope, rec.BusinessKey, "staff member left")

	s.Require().NoError(err)
	s.Equal(StatusDisabled, disabled.Payload.Status)
	s.Equal("staff member left", disabled.Reason)

	// Disabled profiles accept no further writes.
	_, err = s.service.Reconfigure(s.ctx(), s.scope, rec.BusinessKey, ReconfigureParams{Provider: "google", WindowDays: 30})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = s.service.Disable(s.ctx(), s.scope, rec.BusinessKey, "again")
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestUnknownProfileNotFound() {
	_, err := s.service.Get(s.ctx(), s.scope, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
