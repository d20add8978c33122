package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"solace/internal/policy"
)

func int64Ptr(v int64) *int64 { return &v }

func allMethodsRules() policy.PaymentRules {
	return policy.PaymentRules{
		EnabledMethods:         []policy.PaymentMethod{policy.MethodCash, policy.MethodCard, policy.MethodCheck, policy.MethodACH},
		ApprovalThresholdCents: 500,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		rules   func() policy.PaymentRules
		payment Payment
		outcome policy.Outcome
		field   string
	}{
		{
			name:    "amount at threshold accepted",
			rules:   allMethodsRules,
			payment: Payment{AmountCents: 500, Method: policy.MethodCard},
			outcome: policy.OutcomeAccepted,
		},
		{
			name:    "amount below threshold accepted",
			rules:   allMethodsRules,
			payment: Payment{AmountCents: 250, Method: policy.MethodCard},
			outcome: policy.OutcomeAccepted,
		},
		{
			name:    "amount above threshold escalated",
			rules:   allMethodsRules,
			payment: Payment{AmountCents: 750, Method: policy.MethodCard},
			outcome: policy.OutcomeAcceptedPendingApproval,
		},
		{
			name: "check escalated when all checks require approval",
			rules: func() policy.PaymentRules {
				r := allMethodsRules()
				r.RequireApprovalForAllChecks = true
				return r
			},
			payment: Payment{AmountCents: 100, Method: policy.MethodCheck},
			outcome: policy.OutcomeAcceptedPendingApproval,
		},
		{
			name: "ach escalated when all ach require approval",
			rules: func() policy.PaymentRules {
				r := allMethodsRules()
				r.RequireApprovalForAllACH = true
				return r
			},
			payment: Payment{AmountCents: 100, Method: policy.MethodACH},
			outcome: policy.OutcomeAcceptedPendingApproval,
		},
		{
			name: "any single trigger suffices",
			rules: func() policy.PaymentRules {
				r := allMethodsRules()
				r.RequireApprovalForAllChecks = true
				return r
			},
			payment: Payment{AmountCents: 9_999, Method: policy.MethodCard},
			outcome: policy.OutcomeAcceptedPendingApproval,
		},
		{
			name: "disabled method rejected",
			rules: func() policy.PaymentRules {
				r := allMethodsRules()
				r.EnabledMethods = []policy.PaymentMethod{policy.MethodCash}
				return r
			},
			payment: Payment{AmountCents: 100, Method: policy.MethodCard},
			outcome: policy.OutcomeRejected,
			field:   "method",
		},
		{
			name:    "non-positive amount rejected",
			rules:   allMethodsRules,
			payment: Payment{AmountCents: 0, Method: policy.MethodCash},
			outcome: policy.OutcomeRejected,
			field:   "amount_cents",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Evaluate(tt.rules(), tt.payment)
			assert.Equal(t, tt.outcome, decision.Outcome)
			if tt.field != "" {
				assert.Equal(t, tt.field, decision.Violation.Field)
			}
		})
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	rules := allMethodsRules()
	p := Payment{AmountCents: 750, Method: policy.MethodCard}

	first := Evaluate(rules, p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate(rules, p))
	}
}

func TestEvaluateRefund(t *testing.T) {
	paid := Payment{AmountCents: 10_000, Method: policy.MethodCard, Status: StatusSucceeded}

	t.Run("within cap accepted", func(t *testing.T) {
		rules := allMethodsRules()
		rules.MaxRefundCents = int64Ptr(5_000)
		assert.Equal(t, policy.OutcomeAccepted, EvaluateRefund(rules, paid, 5_000).Outcome)
	})

	t.Run("nil cap means unbounded", func(t *testing.T) {
		assert.Equal(t, policy.OutcomeAccepted, EvaluateRefund(allMethodsRules(), paid, 10_000).Outcome)
	})

	t.Run("zero cap forbids refunds", func(t *testing.T) {
		rules := allMethodsRules()
		rules.MaxRefundCents = int64Ptr(0)
		assert.Equal(t, policy.OutcomeRejected, EvaluateRefund(rules, paid, 1).Outcome)
	})

	t.Run("above cap rejected", func(t *testing.T) {
		rules := allMethodsRules()
		rules.MaxRefundCents = int64Ptr(5_000)
		assert.Equal(t, policy.OutcomeRejected, EvaluateRefund(rules, paid, 5_001).Outcome)
	})

	t.Run("above original amount rejected", func(t *testing.T) {
		assert.Equal(t, policy.OutcomeRejected, EvaluateRefund(allMethodsRules(), paid, 10_001).Outcome)
	})

	t.Run("non-positive rejected", func(t *testing.T) {
		assert.Equal(t, policy.OutcomeRejected, EvaluateRefund(allMethodsRules(), paid, 0).Outcome)
	})
}
