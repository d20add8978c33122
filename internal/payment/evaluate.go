package payment

import (
	"fmt"

	"solace/internal/policy"
)

// Evaluate decides whether a payment may be recorded under the rules. Pure:
// no I/O, no clock, fully determined by its inputs.
//
// Approval triggers combine with OR semantics: amount above the threshold,
// a check when all checks require approval, or an ACH transfer when all ACH
// transfers require approval, each independently escalate the payment.
func Evaluate(rules policy.PaymentRules, p Payment) policy.Decision {
	if p.AmountCents <= 0 {
		return policy.Rejected("amount_cents", "payment amount must be positive")
	}
	if !rules.MethodEnabled(p.Method) {
		return policy.Rejected("method", fmt.Sprintf("payment method %s is not enabled for this funeral home", p.Method))
	}

	switch {
	case p.AmountCents > rules.ApprovalThresholdCents:
		return policy.PendingApproval(fmt.Sprintf("amount %d exceeds approval threshold %d", p.AmountCents, rules.ApprovalThresholdCents))
	case rules.RequireApprovalForAllChecks && p.Method == policy.MethodCheck:
		return policy.PendingApproval("all check payments require approval")
	case rules.RequireApprovalForAllACH && p.Method == policy.MethodACH:
		return policy.PendingApproval("all ach payments require approval")
	}
	return policy.Accepted()
}

// EvaluateRefund decides whether amountCents may be refunded from the payment
// under the rules. Pure.
func EvaluateRefund(rules policy.PaymentRules, p Payment, amountCents int64) policy.Decision {
	if amountCents <= 0 {
		return policy.Rejected("amount_cents", "refund amount must be positive")
	}
	if amountCents > p.AmountCents {
		return policy.Rejected("amount_cents", fmt.Sprintf("refund %d exceeds the original payment amount %d", amountCents, p.AmountCents))
	}
	if rules.MaxRefundCents != nil && amountCents > *rules.MaxRefundCents {
		return policy.Rejected("amount_cents", fmt.Sprintf("refund %d exceeds the policy cap %d", amountCents, *rules.MaxRefundCents))
	}
	return policy.Accepted()
}
