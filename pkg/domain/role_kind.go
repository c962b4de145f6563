package domain

import dErrors "cairn/pkg/domain-errors"

// RoleKind is the tagged variant for every role a person can hold in a
// section group. Behavior that used to hang off an open-ended class
// hierarchy dispatches on this enum with exhaustive switches instead.
type RoleKind string

const (
	// RoleKindHomeMember is the primary section membership (Stammsektion).
	// At most one is active per person at a time.
	RoleKindHomeMember RoleKind = "home_member"
	// RoleKindAdditionalMember is a secondary section membership
	// (Zusatzsektion) held alongside the home section.
	RoleKindAdditionalMember RoleKind = "additional_member"
	// RoleKindPendingHomeApplicant is an unpaid/unapproved application for
	// a home-section membership (Neuanmeldung).
	RoleKindPendingHomeApplicant RoleKind = "pending_home_applicant"
	// RoleKindPendingAdditionalApplicant is an unpaid application for an
	// additional-section membership.
	RoleKindPendingAdditionalApplicant RoleKind = "pending_additional_applicant"
	// RoleKindHonoraryMember is a national honorary membership, exempt
	// from annual fees.
	RoleKindHonoraryMember RoleKind = "honorary_member"
	// RoleKindBenefitedMember is a section-level benefited membership,
	// exempt by section policy.
	RoleKindBenefitedMember RoleKind = "benefited_member"
	// RoleKindReadOnlyMember has access to member content but carries no
	// section membership and generates no fees.
	RoleKindReadOnlyMember RoleKind = "read_only_member"
	// RoleKindFuture is a placeholder carrying no section assignment of
	// its own; on/after its conversion date it is read as a role of the
	// target kind scoped to that calendar year.
	RoleKindFuture RoleKind = "future"
)

var validRoleKinds = map[RoleKind]bool{
	RoleKindHomeMember:                 true,
	RoleKindAdditionalMember:           true,
	RoleKindPendingHomeApplicant:       true,
	RoleKindPendingAdditionalApplicant: true,
	RoleKindHonoraryMember:             true,
	RoleKindBenefitedMember:            true,
	RoleKindReadOnlyMember:             true,
	RoleKindFuture:                     true,
}

// ParseRoleKind constructs a RoleKind from external input.
func ParseRoleKind(s string) (RoleKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role kind cannot be empty")
	}
	k := RoleKind(s)
	if !k.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role kind %q", s)
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k RoleKind) IsValid() bool {
	return validRoleKinds[k]
}

// Membership reports whether the kind represents an actual section
// membership (as opposed to a pending application or placeholder).
func (k RoleKind) Membership() bool {
	switch k {
	case RoleKindHomeMember, RoleKindAdditionalMember, RoleKindHonoraryMember, RoleKindBenefitedMember:
		return true
	}
	return false
}

// Pending reports whether the kind represents an unconverted application.
func (k RoleKind) Pending() bool {
	return k == RoleKindPendingHomeApplicant || k == RoleKindPendingAdditionalApplicant
}

// Prolongable reports whether a renewal payment pushes the role's end
// date forward. Pending applications and placeholders are converted,
// not prolonged.
func (k RoleKind) Prolongable() bool {
	switch k {
	case RoleKindHomeMember, RoleKindAdditionalMember, RoleKindHonoraryMember, RoleKindBenefitedMember:
		return true
	}
	return false
}
