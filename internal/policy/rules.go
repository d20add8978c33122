package policy

import (
	"strings"
	"time"

	dErrors "solace/pkg/domain-errors"
)

// MergeStrategy decides which value wins when both contacts carry a field.
type MergeStrategy string

const (
	// MergeSurvivorWins keeps the surviving contact's value; blanks are
	// filled from the duplicate.
	MergeSurvivorWins MergeStrategy = "survivor_wins"
	// MergeNewestWins prefers the value from the more recently updated record.
	MergeNewestWins MergeStrategy = "newest_wins"
	// MergeMostComplete prefers the value from the record with more populated fields.
	MergeMostComplete MergeStrategy = "most_complete"
)

var validMergeStrategies = map[MergeStrategy]bool{
	MergeSurvivorWins: true,
	MergeNewestWins:   true,
	MergeMostComplete: true,
}

// MergeRules parameterize the contact-merge validator.
type MergeRules struct {
	// FieldPrecedence picks the winning value for fields both records carry.
	FieldPrecedence MergeStrategy `json:"field_precedence"`
	// RequireReason escalates merges without a justification to rejection.
	RequireReason bool `json:"require_reason"`
	// RetentionDays is how long the merged-away record's lineage stays
	// queryable in list views before archival jobs hide it.
	RetentionDays int `json:"retention_days"`
}

func (r MergeRules) Validate() error {
	if !validMergeStrategies[r.FieldPrecedence] {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown merge field precedence: %s", r.FieldPrecedence)
	}
	if r.RetentionDays < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "merge retention days must not be negative")
	}
	return nil
}

// InteractionRules parameterize the interaction validator.
type InteractionRules struct {
	// AllowedTypes is the closed set of loggable interaction types.
	AllowedTypes []string `json:"allowed_types"`
	// MaxNoteLength bounds interaction notes; nil means unbounded, which is
	// distinct from a bound of 0 (notes forbidden).
	MaxNoteLength *int `json:"max_note_length,omitempty"`
	// MinDuration / MaxDuration bound the recorded duration; nil means unbounded.
	MinDuration *time.Duration `json:"min_duration,omitempty"`
	MaxDuration *time.Duration `json:"max_duration,omitempty"`
}

func (r InteractionRules) Validate() error {
	if len(r.AllowedTypes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "interaction policy requires at least one allowed type")
	}
	if r.MaxNoteLength != nil && *r.MaxNoteLength < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max note length must not be negative")
	}
	if r.MinDuration != nil && *r.MinDuration < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "min duration must not be negative")
	}
	if r.MinDuration != nil && r.MaxDuration != nil && *r.MaxDuration < *r.MinDuration {
		return dErrors.New(dErrors.CodeInvalidInput, "max duration must not be below min duration")
	}
	return nil
}

// TypeAllowed reports whether the interaction type is on the allow-list.
// The stored list is normalized at document construction, so the candidate
// is normalized the same way before the membership check.
func (r InteractionRules) TypeAllowed(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, allowed := range r.AllowedTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// PaymentMethod is a payment instrument accepted by a funeral home.
type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodCard  PaymentMethod = "card"
	MethodCheck PaymentMethod = "check"
	MethodACH   PaymentMethod = "ach"
)

var validPaymentMethods = map[PaymentMethod]bool{
	MethodCash:  true,
	MethodCard:  true,
	MethodCheck: true,
	MethodACH:   true,
}

// ParsePaymentMethod constructs a PaymentMethod from external input.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !validPaymentMethods[m] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment method: %s", s)
	}
	return m, nil
}

// PaymentRules parameterize the payment validator.
//
// The approval triggers combine with OR semantics: any single configured
// trigger escalates the command to approval-required.
type PaymentRules struct {
	// EnabledMethods is the allow-list of accepted payment methods.
	EnabledMethods []PaymentMethod `json:"enabled_methods"`
	// ApprovalThresholdCents escalates amounts strictly above it.
	ApprovalThresholdCents int64 `json:"approval_threshold_cents"`
	// RequireApprovalForAllChecks escalates every check payment.
	RequireApprovalForAllChecks bool `json:"require_approval_for_all_checks"`
	// RequireApprovalForAllACH escalates every ACH payment.
	RequireApprovalForAllACH bool `json:"require_approval_for_all_ach"`
	// MaxRefundCents caps a single refund; nil means unbounded, which is
	// distinct from a cap of 0 (refunds forbidden).
	MaxRefundCents *int64 `json:"max_refund_cents,omitempty"`
}

func (r PaymentRules) Validate() error {
	if len(r.EnabledMethods) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "payment policy requires at least one enabled method")
	}
	for _, m := range r.EnabledMethods {
		if !validPaymentMethods[m] {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment method: %s", m)
		}
	}
	if r.ApprovalThresholdCents < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "approval threshold must not be negative")
	}
	if r.MaxRefundCents != nil && *r.MaxRefundCents < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max refund must not be negative")
	}
	return nil
}

// MethodEnabled reports whether the method is on the allow-list.
func (r PaymentRules) MethodEnabled(m PaymentMethod) bool {
	for _, enabled := range r.EnabledMethods {
		if enabled == m {
			return true
		}
	}
	return false
}

// SyncConflictStrategy decides which side wins when a synced event changed in
// both the provider and the platform.
type SyncConflictStrategy string

const (
	SyncProviderWins SyncConflictStrategy = "provider_wins"
	SyncPlatformWins SyncConflictStrategy = "platform_wins"
	SyncManualReview SyncConflictStrategy = "manual_review"
)

var validSyncConflictStrategies = map[SyncConflictStrategy]bool{
	SyncProviderWins: true,
	SyncPlatformWins: true,
	SyncManualReview: true,
}

// SyncRules parameterize the email/calendar sync validator.
type SyncRules struct {
	// EnabledProviders is the allow-list of sync providers ("google",
	// "outlook", ...).
	EnabledProviders []string `json:"enabled_providers"`
	// MinWindowDays / MaxWindowDays bound how far back a profile may sync.
	MinWindowDays int `json:"min_window_days"`
	MaxWindowDays int `json:"max_window_days"`
	// OnConflict picks the winning side for two-way edits.
	OnConflict SyncConflictStrategy `json:"on_conflict"`
}

func (r SyncRules) Validate() error {
	if len(r.EnabledProviders) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "sync policy requires at least one enabled provider")
	}
	if r.MinWindowDays < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "min sync window must not be negative")
	}
	if r.MaxWindowDays < r.MinWindowDays {
		return dErrors.New(dErrors.CodeInvalidInput, "max sync window must not be below min sync window")
	}
	if !validSyncConflictStrategies[r.OnConflict] {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown sync conflict strategy: %s", r.OnConflict)
	}
	return nil
}

// ProviderEnabled reports whether the provider is on the allow-list.
// The stored list is normalized at document construction, so the candidate
// is normalized the same way before the membership check.
func (r SyncRules) ProviderEnabled(provider string) bool {
	provider = strings.ToLower(strings.TrimSpace(provider))
	for _, enabled := range r.EnabledProviders {
		if enabled == provider {
			return true
		}
	}
	return false
}
