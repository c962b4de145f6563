// Package domain defines typed identifiers and shared enums for the
// membership core. Typed IDs prevent cross-assignment between entity
// kinds at compile time; Parse functions enforce validity at trust
// boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "cairn/pkg/domain-errors"
)

// Typed entity identifiers. Construct via the Parse functions when the
// value crosses a trust boundary; direct casting bypasses validation.
type (
	PersonID    uuid.UUID
	RoleID      uuid.UUID
	GroupID     uuid.UUID
	HouseholdID uuid.UUID
)

func (id PersonID) String() string    { return uuid.UUID(id).String() }
func (id RoleID) String() string      { return uuid.UUID(id).String() }
func (id GroupID) String() string     { return uuid.UUID(id).String() }
func (id HouseholdID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the nil UUID.
func (id PersonID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RoleID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id HouseholdID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling renders IDs in canonical UUID form. Defined types do
// not inherit uuid.UUID's methods, so serialized configs would fall
// back to raw byte arrays without these.
func (id PersonID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id RoleID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id GroupID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id HouseholdID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PersonID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "person id must be a valid UUID")
	}
	*id = PersonID(u)
	return nil
}

func (id *RoleID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "role id must be a valid UUID")
	}
	*id = RoleID(u)
	return nil
}

func (id *GroupID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "group id must be a valid UUID")
	}
	*id = GroupID(u)
	return nil
}

func (id *HouseholdID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "household id must be a valid UUID")
	}
	*id = HouseholdID(u)
	return nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParsePersonID constructs a PersonID from external input.
func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return PersonID{}, err
	}
	return PersonID(u), nil
}

// ParseRoleID constructs a RoleID from external input.
func ParseRoleID(s string) (RoleID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RoleID{}, err
	}
	return RoleID(u), nil
}

// ParseGroupID constructs a GroupID from external input.
func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return GroupID{}, err
	}
	return GroupID(u), nil
}

// ParseHouseholdID constructs a HouseholdID from external input.
func ParseHouseholdID(s string) (HouseholdID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return HouseholdID{}, err
	}
	return HouseholdID(u), nil
}
