package models

import (
	"time"

	id "cairn/pkg/domain"
)

// Member is the snapshot of one person the fee engine prices. Built by
// the caller from the membership state and directory data; the engine
// itself reads no stored state.
type Member struct {
	PersonID        id.PersonID
	FeeCategory     id.FeeCategory
	ReferenceDate   time.Time
	Age             int
	MembershipYears float64

	LivesAbroad        bool
	MagazineSubscribed bool
	// SACHonorary marks a national honorary member, exempt from every
	// annual fee.
	SACHonorary bool
}

// Membership is one section relationship of the member being priced.
type Membership struct {
	GroupID id.GroupID
	// Main marks the home-section membership. National positions and
	// entry fees attach only to the main membership.
	Main bool

	// Section-level member flags, evaluated against the section's
	// exemption toggles.
	SectionHonorary  bool
	SectionBenefited bool
}

// MainMembership returns the membership flagged main, or nil.
func MainMembership(memberships []Membership) *Membership {
	for i := range memberships {
		if memberships[i].Main {
			return &memberships[i]
		}
	}
	return nil
}
