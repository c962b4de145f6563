package models

import (
	"time"

	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
)

// Role is one assignment of one person to one role kind inside one
// section group.
//
// Invariants:
//   - Kind and FeeCategory are valid enum values
//   - FeeCategory is immutable once set
//   - a role is never physically destroyed except pending-applicant
//     roles replaced by an active role on conversion
//
// # Effective End
//
// Three independent end markers exist (soft deletion, archiving, planned
// end). All "is this role still valid" questions go through EndOn, which
// collapses them into one derived date, so ActiveOn stays a single
// testable predicate rather than three ad hoc column checks.
type Role struct {
	ID          id.RoleID
	PersonID    id.PersonID
	GroupID     id.GroupID
	Kind        id.RoleKind
	FeeCategory id.FeeCategory

	// CreatedAt is the start of validity.
	CreatedAt     time.Time
	SoftDeletedAt *time.Time
	ArchivedAt    *time.Time
	PlannedEndOn  *time.Time

	// Terminated marks a role whose end has been formally requested.
	// Distinct from deletion: the role stays valid until PlannedEndOn.
	Terminated        bool
	TerminationReason string

	// ConvertTo/ConvertOn are set only on RoleKindFuture placeholders.
	ConvertTo id.RoleKind
	ConvertOn *time.Time
}

// NewRole constructs a role starting at createdAt.
func NewRole(roleID id.RoleID, personID id.PersonID, groupID id.GroupID, kind id.RoleKind, category id.FeeCategory, createdAt time.Time) (*Role, error) {
	if personID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role requires a person")
	}
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role kind %q", kind)
	}
	if kind != id.RoleKindFuture && groupID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role requires a section group")
	}
	if !category.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidFeeCategory, "unknown fee category %q", category)
	}
	return &Role{
		ID:          roleID,
		PersonID:    personID,
		GroupID:     groupID,
		Kind:        kind,
		FeeCategory: category,
		CreatedAt:   createdAt,
	}, nil
}

// NewFutureRole constructs a placeholder that reads as a role of kind
// convertTo on and after convertOn, scoped to convertOn's calendar year.
func NewFutureRole(roleID id.RoleID, personID id.PersonID, groupID id.GroupID, convertTo id.RoleKind, category id.FeeCategory, convertOn, createdAt time.Time) (*Role, error) {
	if !convertTo.Membership() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "future role cannot convert to %q", convertTo)
	}
	r, err := NewRole(roleID, personID, groupID, id.RoleKindFuture, category, createdAt)
	if err != nil {
		return nil, err
	}
	on := DateOf(convertOn)
	r.ConvertTo = convertTo
	r.ConvertOn = &on
	return r, nil
}

// StartOn is the calendar date the role's validity begins.
func (r *Role) StartOn() time.Time {
	return DateOf(r.CreatedAt)
}

// EndOn returns the earliest of the three end markers. ok is false when
// none is set (the role runs indefinitely).
func (r *Role) EndOn() (end time.Time, ok bool) {
	for _, marker := range []*time.Time{r.SoftDeletedAt, r.ArchivedAt, r.PlannedEndOn} {
		if marker == nil {
			continue
		}
		d := DateOf(*marker)
		if !ok || d.Before(end) {
			end, ok = d, true
		}
	}
	return end, ok
}

// Period returns the role's validity as a period value.
func (r *Role) Period() ValidityPeriod {
	if end, ok := r.EndOn(); ok {
		return ValidityPeriod{Start: r.StartOn(), End: &end}
	}
	return OpenPeriod(r.StartOn())
}

// ActiveOn reports whether the role is valid on the given date.
//
// A role is active on D iff it was created by the end of D, its planned
// end has not passed, and neither deletion nor archiving took effect
// before the start of D.
func (r *Role) ActiveOn(d time.Time) bool {
	if r.CreatedAt.After(EndOfDay(d)) {
		return false
	}
	day := DateOf(d)
	if r.PlannedEndOn != nil && DateOf(*r.PlannedEndOn).Before(day) {
		return false
	}
	if r.SoftDeletedAt != nil && r.SoftDeletedAt.Before(StartOfDay(d)) {
		return false
	}
	if r.ArchivedAt != nil && r.ArchivedAt.Before(StartOfDay(d)) {
		return false
	}
	return true
}

// Deleted reports whether the role has been soft-deleted or archived.
func (r *Role) Deleted() bool {
	return r.SoftDeletedAt != nil || r.ArchivedAt != nil
}

// HomeSection reports whether the role represents a home-section
// membership. Honorary and benefited memberships count: they occupy the
// person's single home-section slot.
func (r *Role) HomeSection() bool {
	switch r.Kind {
	case id.RoleKindHomeMember, id.RoleKindHonoraryMember, id.RoleKindBenefitedMember:
		return true
	}
	return false
}

// CanProlong checks whether a renewal payment may push the role's end
// date forward.
func (r *Role) CanProlong() error {
	if !r.Kind.Prolongable() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "role kind %q cannot be prolonged", r.Kind)
	}
	if r.Deleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "deleted role cannot be prolonged")
	}
	return nil
}

// ApplyProlongation extends the planned end to at least until. An end
// date already past until is left alone (max, not overwrite).
func (r *Role) ApplyProlongation(until time.Time) {
	until = DateOf(until)
	if r.PlannedEndOn != nil && DateOf(*r.PlannedEndOn).After(until) {
		return
	}
	r.PlannedEndOn = &until
	r.Terminated = false
	r.TerminationReason = ""
}

// Prolong validates and applies a prolongation in one call.
func (r *Role) Prolong(until time.Time) error {
	if err := r.CanProlong(); err != nil {
		return err
	}
	r.ApplyProlongation(until)
	return nil
}

// CanTerminate checks whether the role's end may be formally requested.
func (r *Role) CanTerminate() error {
	if r.Terminated {
		return dErrors.New(dErrors.CodeInvariantViolation, "role is already terminated")
	}
	if r.Deleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "deleted role cannot be terminated")
	}
	return nil
}

// ApplyTermination marks the role terminated with a cutoff date.
func (r *Role) ApplyTermination(reason string, endOn time.Time) {
	cutoff := DateOf(endOn)
	r.Terminated = true
	r.TerminationReason = reason
	r.PlannedEndOn = &cutoff
}

// Terminate validates and applies a termination in one call.
func (r *Role) Terminate(reason string, endOn time.Time) error {
	if err := r.CanTerminate(); err != nil {
		return err
	}
	r.ApplyTermination(reason, endOn)
	return nil
}

// SoftDelete removes the role immediately, keeping it for history.
func (r *Role) SoftDelete(at time.Time) {
	t := at
	r.SoftDeletedAt = &t
}

// Materialize resolves a future placeholder into the role it reads as
// on the given date: kind ConvertTo, valid within ConvertOn's calendar
// year. Returns nil when the date is before the conversion date or the
// role is not a placeholder.
func (r *Role) Materialize(d time.Time) *Role {
	if r.Kind != id.RoleKindFuture || r.ConvertOn == nil {
		return nil
	}
	if DateOf(d).Before(*r.ConvertOn) {
		return nil
	}
	end := YearEnd(r.ConvertOn.Year())
	m := *r
	m.Kind = r.ConvertTo
	m.CreatedAt = *r.ConvertOn
	m.PlannedEndOn = &end
	m.ConvertTo = ""
	m.ConvertOn = nil
	return &m
}

// Clone returns a deep copy, detaching all pointer-typed date markers.
func (r *Role) Clone() *Role {
	c := *r
	c.SoftDeletedAt = cloneTime(r.SoftDeletedAt)
	c.ArchivedAt = cloneTime(r.ArchivedAt)
	c.PlannedEndOn = cloneTime(r.PlannedEndOn)
	c.ConvertOn = cloneTime(r.ConvertOn)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
