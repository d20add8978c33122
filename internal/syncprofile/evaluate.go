package syncprofile

import (
	"fmt"

	"solace/internal/policy"
)

// Evaluate decides whether a profile configuration is acceptable under the
// rules. Pure.
func Evaluate(rules policy.SyncRules, p Profile) policy.Decision {
	if !rules.ProviderEnabled(p.Provider) {
		return policy.Rejected("provider", fmt.Sprintf("sync provider %q is not enabled for this funeral home", p.Provider))
	}
	if p.WindowDays < rules.MinWindowDays {
		return policy.Rejected("window_days", fmt.Sprintf("sync window %d days is below the %d day minimum", p.WindowDays, rules.MinWindowDays))
	}
	if p.WindowDays > rules.MaxWindowDays {
		return policy.Rejected("window_days", fmt.Sprintf("sync window %d days exceeds the %d day maximum", p.WindowDays, rules.MaxWindowDays))
	}
	return policy.Accepted()
}
