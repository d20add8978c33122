// Package policy implements the funeral-home-scoped rule documents and their
// resolution. A policy is an ordinary versioned record whose payload is a
// structured rule document; exactly one current policy exists per
// (funeral home, policy domain).
package policy

import (
	dErrors "solace/pkg/domain-errors"
)

// Domain names the area of the business a policy document governs.
type Domain string

const (
	// DomainContactMerge governs how duplicate CRM contacts are merged.
	DomainContactMerge Domain = "contact_merge"
	// DomainInteraction governs logged staff/family interactions.
	DomainInteraction Domain = "interaction"
	// DomainPayment governs payment recording and approval escalation.
	DomainPayment Domain = "payment"
	// DomainSync governs email/calendar synchronization profiles.
	DomainSync Domain = "sync"
)

// validDomains is the single source of truth for supported policy domains.
var validDomains = map[Domain]bool{
	DomainContactMerge: true,
	DomainInteraction:  true,
	DomainPayment:      true,
	DomainSync:         true,
}

// ParseDomain constructs a Domain from external input, enforcing the allowlist.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if !validDomains[d] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy domain: %s", s)
	}
	return d, nil
}

func (d Domain) String() string { return string(d) }
