// Package domain defines typed identifiers shared across the platform.
//
// IDs are distinct uuid-backed types so a CaseID can never be passed where a
// HomeID is expected. Construct via the Parse helpers at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "solace/pkg/domain-errors"
)

// HomeID identifies a funeral home. It is the scope key: all uniqueness and
// "current version" constraints are partitioned by it.
type HomeID uuid.UUID

// CaseID identifies a funeral case (the at-need or pre-need file).
type CaseID uuid.UUID

// ContactID identifies a CRM contact.
type ContactID uuid.UUID

// StaffID identifies a staff member.
type StaffID uuid.UUID

// DriverID identifies a removal/transport driver.
type DriverID uuid.UUID

func (id HomeID) String() string    { return uuid.UUID(id).String() }
func (id CaseID) String() string    { return uuid.UUID(id).String() }
func (id ContactID) String() string { return uuid.UUID(id).String() }
func (id StaffID) String() string   { return uuid.UUID(id).String() }
func (id DriverID) String() string  { return uuid.UUID(id).String() }

func (id HomeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ContactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StaffID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DriverID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// IDs serialize as canonical UUID strings in JSON payloads and caches.

func (id HomeID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id CaseID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ContactID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id StaffID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id DriverID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *HomeID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = HomeID(u)
	return nil
}

func (id *CaseID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = CaseID(u)
	return nil
}

func (id *ContactID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ContactID(u)
	return nil
}

func (id *StaffID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = StaffID(u)
	return nil
}

func (id *DriverID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = DriverID(u)
	return nil
}

// parseUUID enforces the shared ID invariant: valid, non-empty, non-nil.
func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", kind)
	}
	return u, nil
}

func ParseHomeID(s string) (HomeID, error) {
	u, err := parseUUID("home id", s)
	return HomeID(u), err
}

func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID("case id", s)
	return CaseID(u), err
}

func ParseContactID(s string) (ContactID, error) {
	u, err := parseUUID("contact id", s)
	return ContactID(u), err
}

func ParseStaffID(s string) (StaffID, error) {
	u, err := parseUUID("staff id", s)
	return StaffID(u), err
}

func ParseDriverID(s string) (DriverID, error) {
	u, err := parseUUID("driver id", s)
	return DriverID(u), err
}
