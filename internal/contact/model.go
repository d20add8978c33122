// Package contact manages funeral-home contact records and their
// policy-governed de-duplication merges as version lineages.
package contact

import (
	"github.com/google/uuid"
)

// Table is the version table contacts persist to.
const Table = "contact_versions"

// Status is the contact lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	// StatusMerged marks a duplicate that was folded into another contact.
	// Merged records keep their full lineage but accept no further writes.
	StatusMerged Status = "merged"
)

// Contact is the payload of a contact version row.
type Contact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Status    Status `json:"status"`
	// MergedIntoKey points at the surviving contact's business key once the
	// record has been merged away.
	MergedIntoKey uuid.UUID `json:"merged_into_key,omitempty"`
}

func (Contact) Kind() string { return "contact" }

// populatedFields counts the non-blank mergeable fields, for the
// most_complete precedence strategy.
func (c Contact) populatedFields() int {
	n := 0
	for _, v := range []string{c.FirstName, c.LastName, c.Email, c.Phone} {
		if v != "" {
			n++
		}
	}
	return n
}
