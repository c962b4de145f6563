package models

import (
	"sort"
	"time"

	id "cairn/pkg/domain"
)

// MembershipState is the derived (never persisted) view over one
// person's roles for a reference date.
type MembershipState struct {
	PersonID      id.PersonID
	ReferenceDate time.Time

	// Home is the home-section role the classification is based on:
	// the active one if present, otherwise the most recently ended one.
	Home *Role
	// Additional holds every additional-section role active on the
	// reference date.
	Additional []*Role
	// PendingHome is an unconverted home-section application, if any.
	PendingHome *Role
	// PendingAdditional holds unconverted additional-section
	// applications, one per section group.
	PendingAdditional []*Role
	// Future is an unconverted placeholder whose conversion date lies
	// after the reference date, if any.
	Future *Role

	active bool
}

// Active reports whether a home-section role is active on the
// reference date.
func (s *MembershipState) Active() bool {
	return s.active
}

// Anytime distinguishes "never a member" from "currently not a member":
// true when a membership is active, was active and lapsed, or is
// scheduled to become active.
func (s *MembershipState) Anytime() bool {
	return s.active || s.Home != nil || s.Future != nil
}

// Terminated reports whether the home-section role's end has been
// formally requested.
func (s *MembershipState) Terminated() bool {
	return s.Home != nil && s.Home.Terminated
}

// MembershipYears is the fractional count of consecutive years the
// person has held a home-section membership up to the reference date.
// Gaps in coverage reset the count: only the contiguous stretch
// containing the reference date is measured.
func (s *MembershipState) MembershipYears(roles []*Role) float64 {
	periods := coveragePeriods(roles, s.ReferenceDate)
	merged := mergePeriods(periods)
	for _, p := range merged {
		if p.Covers(s.ReferenceDate) {
			return p.DurationYears(s.ReferenceDate)
		}
	}
	return 0
}

// DeriveState classifies a person's roles for the reference date.
// Pure: roles are read, never mutated.
func DeriveState(personID id.PersonID, roles []*Role, referenceDate time.Time) *MembershipState {
	state := &MembershipState{
		PersonID:      personID,
		ReferenceDate: DateOf(referenceDate),
	}

	var lapsed *Role
	for _, r := range roles {
		if r.PersonID != personID {
			continue
		}
		switch {
		case r.Kind == id.RoleKindFuture:
			if m := r.Materialize(referenceDate); m != nil {
				// Placeholder already reads as a real role.
				if m.HomeSection() && m.ActiveOn(referenceDate) {
					state.Home = m
					state.active = true
				}
				continue
			}
			if !r.Deleted() {
				state.Future = r
			}
		case r.Kind == id.RoleKindPendingHomeApplicant:
			if !r.Deleted() {
				state.PendingHome = r
			}
		case r.Kind == id.RoleKindPendingAdditionalApplicant:
			if !r.Deleted() {
				state.PendingAdditional = append(state.PendingAdditional, r)
			}
		case r.HomeSection():
			if r.ActiveOn(referenceDate) {
				state.Home = r
				state.active = true
				continue
			}
			if end, ok := r.EndOn(); ok && end.Before(DateOf(referenceDate)) {
				if lapsed == nil || laterEnd(r, lapsed) {
					lapsed = r
				}
			}
		case r.Kind == id.RoleKindAdditionalMember:
			if r.ActiveOn(referenceDate) {
				state.Additional = append(state.Additional, r)
			}
		}
	}

	if state.Home == nil {
		state.Home = lapsed
	}
	sortRoles(state.Additional)
	sortRoles(state.PendingAdditional)
	return state
}

// ExpiredHomeRole finds the home-section role a late renewal should
// resurrect: among non-deleted home-section roles whose end falls
// within or after the start of year, excluding still-terminated roles,
// the one with the latest end date.
//
// Tie-break on equal end dates is by role ID, lexicographically last.
// The secondary order is arbitrary but deterministic.
func ExpiredHomeRole(personID id.PersonID, roles []*Role, year int) *Role {
	yearStart := YearStart(year)
	var best *Role
	for _, r := range roles {
		if r.PersonID != personID || !r.HomeSection() || r.Deleted() || r.Terminated {
			continue
		}
		end, ok := r.EndOn()
		if !ok || end.Before(yearStart) {
			continue
		}
		if best == nil || laterEnd(r, best) {
			best = r
		}
	}
	return best
}

// laterEnd orders roles by end date, then role ID. Open-ended roles
// sort after everything.
func laterEnd(a, b *Role) bool {
	aEnd, aOK := a.EndOn()
	bEnd, bOK := b.EndOn()
	switch {
	case !aOK && !bOK:
		return a.ID.String() > b.ID.String()
	case !aOK:
		return true
	case !bOK:
		return false
	case aEnd.Equal(bEnd):
		return a.ID.String() > b.ID.String()
	default:
		return aEnd.After(bEnd)
	}
}

func sortRoles(roles []*Role) {
	sort.Slice(roles, func(i, j int) bool {
		return roles[i].ID.String() < roles[j].ID.String()
	})
}

// coveragePeriods collects the validity periods of every home-section
// role, materializing placeholders that already converted.
func coveragePeriods(roles []*Role, referenceDate time.Time) []ValidityPeriod {
	var periods []ValidityPeriod
	for _, r := range roles {
		role := r
		if r.Kind == id.RoleKindFuture {
			role = r.Materialize(referenceDate)
			if role == nil {
				continue
			}
		}
		if !role.HomeSection() {
			continue
		}
		periods = append(periods, role.Period())
	}
	return periods
}

// mergePeriods joins overlapping or adjacent (next-day) periods into
// contiguous coverage stretches, ordered by start.
func mergePeriods(periods []ValidityPeriod) []ValidityPeriod {
	if len(periods) == 0 {
		return nil
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Start.Before(periods[j].Start)
	})

	merged := []ValidityPeriod{periods[0]}
	for _, p := range periods[1:] {
		last := &merged[len(merged)-1]
		if last.End == nil {
			break
		}
		if !p.Start.After(last.End.AddDate(0, 0, 1)) {
			if p.End == nil {
				last.End = nil
			} else if p.End.After(*last.End) {
				e := *p.End
				last.End = &e
			}
			continue
		}
		merged = append(merged, p)
	}
	return merged
}
