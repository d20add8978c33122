package policy

import (
	dErrors "solace/pkg/domain-errors"
	platformstrings "solace/pkg/platform/strings"
)

// Document is the payload of a policy version. It carries exactly one
// per-domain rules struct, matching its Domain tag. Documents are constructed
// through the New*Document constructors, which validate the rules up front;
// there is no merging of loose defaults at evaluation sites.
type Document struct {
	Domain      Domain            `json:"domain"`
	Merge       *MergeRules       `json:"merge,omitempty"`
	Interaction *InteractionRules `json:"interaction,omitempty"`
	Payment     *PaymentRules     `json:"payment,omitempty"`
	Sync        *SyncRules        `json:"sync,omitempty"`
}

func (Document) Kind() string { return "policy" }

// NewMergeDocument builds a validated contact-merge policy document.
func NewMergeDocument(rules MergeRules) (Document, error) {
	doc := Document{Domain: DomainContactMerge, Merge: &rules}
	return doc, doc.Validate()
}

// NewInteractionDocument builds a validated interaction policy document.
// The allowed-type list is trimmed, lowercased, and deduplicated.
func NewInteractionDocument(rules InteractionRules) (Document, error) {
	rules.AllowedTypes = platformstrings.DedupeAndTrimLower(rules.AllowedTypes)
	doc := Document{Domain: DomainInteraction, Interaction: &rules}
	return doc, doc.Validate()
}

// NewPaymentDocument builds a validated payment policy document.
func NewPaymentDocument(rules PaymentRules) (Document, error) {
	doc := Document{Domain: DomainPayment, Payment: &rules}
	return doc, doc.Validate()
}

// NewSyncDocument builds a validated sync policy document. The provider list
// is trimmed, lowercased, and deduplicated.
func NewSyncDocument(rules SyncRules) (Document, error) {
	rules.EnabledProviders = platformstrings.DedupeAndTrimLower(rules.EnabledProviders)
	doc := Document{Domain: DomainSync, Sync: &rules}
	return doc, doc.Validate()
}

// Validate checks the document's shape and delegates to the rules struct.
// Invariant: exactly one rules struct is set and it matches Domain.
func (d Document) Validate() error {
	if !validDomains[d.Domain] {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy domain: %s", d.Domain)
	}

	set := 0
	for _, present := range []bool{d.Merge != nil, d.Interaction != nil, d.Payment != nil, d.Sync != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "policy document must carry exactly one rules section, has %d", set)
	}

	switch d.Domain {
	case DomainContactMerge:
		if d.Merge == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "contact_merge policy requires merge rules")
		}
		return d.Merge.Validate()
	case DomainInteraction:
		if d.Interaction == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "interaction policy requires interaction rules")
		}
		return d.Interaction.Validate()
	case DomainPayment:
		if d.Payment == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "payment policy requires payment rules")
		}
		return d.Payment.Validate()
	case DomainSync:
		if d.Sync == nil {
			return dErrors.New(dErrors.CodeInvalidInput, "sync policy requires sync rules")
		}
		return d.Sync.Validate()
	}
	return nil
}
