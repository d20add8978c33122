package interaction

import (
	"fmt"

	"solace/internal/policy"
)

// Evaluate decides whether an interaction may be logged under the rules.
// Pure: no I/O, no clock, fully determined by its inputs.
func Evaluate(rules policy.InteractionRules, in Interaction) policy.Decision {
	if !rules.TypeAllowed(in.Type) {
		return policy.Rejected("type", fmt.Sprintf("interaction type %q is not allowed for this funeral home", in.Type))
	}

	// A nil bound is unbounded; a zero bound forbids notes entirely.
	if rules.MaxNoteLength != nil && len(in.Notes) > *rules.MaxNoteLength {
		return policy.Rejected("notes", fmt.Sprintf("notes exceed the %d character limit", *rules.MaxNoteLength))
	}

	if in.Duration < 0 {
		return policy.Rejected("duration", "duration must not be negative")
	}
	if rules.MinDuration != nil && in.Duration < *rules.MinDuration {
		return policy.Rejected("duration", fmt.Sprintf("duration %s is below the %s minimum", in.Duration, *rules.MinDuration))
	}
	if rules.MaxDuration != nil && in.Duration > *rules.MaxDuration {
		return policy.Rejected("duration", fmt.Sprintf("duration %s exceeds the %s maximum", in.Duration, *rules.MaxDuration))
	}

	return policy.Accepted()
}
