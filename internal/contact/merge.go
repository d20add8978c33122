package contact

import (
	"solace/internal/policy"
)

// EvaluateMerge decides whether a merge may proceed under the rules. Pure.
func EvaluateMerge(rules policy.MergeRules, reason string) policy.Decision {
	if rules.RequireReason && reason == "" {
		return policy.Rejected("reason", "this funeral home requires a reason for contact merges")
	}
	return policy.Accepted()
}

// mergeFields combines the duplicate's fields into the survivor per the
// precedence strategy. Pure; survivorNewer reports whether the survivor's
// current version is the more recently written of the two.
func mergeFields(strategy policy.MergeStrategy, survivor, duplicate Contact, survivorNewer bool) Contact {
	survivorPreferred := true
	switch strategy {
	case policy.MergeNewestWins:
		survivorPreferred = survivorNewer
	case policy.MergeMostComplete:
		// Ties keep the survivor's values.
		survivorPreferred = survivor.populatedFields() >= duplicate.populatedFields()
	}

	merged := survivor
	merged.FirstName = pick(survivor.FirstName, duplicate.FirstName, survivorPreferred)
	merged.LastName = pick(survivor.LastName, duplicate.LastName, survivorPreferred)
	merged.Email = pick(survivor.Email, duplicate.Email, survivorPreferred)
	merged.Phone = pick(survivor.Phone, duplicate.Phone, survivorPreferred)
	return merged
}

// pick returns the preferred value, falling back to the other when the
// preferred side is blank.
func pick(survivorVal, duplicateVal string, survivorPreferred bool) string {
	preferred, fallback := survivorVal, duplicateVal
	if !survivorPreferred {
		preferred, fallback = duplicateVal, survivorVal
	}
	if preferred != "" {
		return preferred
	}
	return fallback
}
