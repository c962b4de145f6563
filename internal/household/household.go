// Package household maps people to the households they share and
// classifies dependents for family fan-out.
package household

import (
	"context"
	"time"

	id "cairn/pkg/domain"
)

// Person is one member of a household as the directory sees them.
type Person struct {
	ID           id.PersonID
	HouseholdKey string
	MainPerson   bool
	BirthDate    time.Time
	ConfirmedAt  *time.Time
}

// Household groups people sharing a household key.
//
// Invariant: at most one member has MainPerson set. The main person's
// home-section role drives the fee category and validity window of
// every dependent.
type Household struct {
	Key     string
	Members []*Person
}

// Directory resolves household relationships. Implementations live in
// the store subpackage; the transition service only consumes this
// interface.
type Directory interface {
	// FindPerson returns directory data for one person.
	// Returns sentinel.ErrNotFound when the person is unknown.
	FindPerson(ctx context.Context, personID id.PersonID) (*Person, error)
	// HouseholdOf returns the household a person belongs to, or nil
	// when the person lives alone (no household key).
	HouseholdOf(ctx context.Context, personID id.PersonID) (*Household, error)
	// MarkConfirmed stamps the person's confirmation time if unset.
	MarkConfirmed(ctx context.Context, personID id.PersonID, at time.Time) error
}

// AgeBracket classifies a household member for fan-out purposes.
type AgeBracket int

const (
	BracketPreSchoolChild AgeBracket = iota
	BracketYouth
	BracketAdult
)

// Age bracket boundaries in completed years.
const (
	preSchoolBelow = 6
	adultFrom      = 22
)

// BracketAt classifies a person by completed years of age on the
// reference date.
func BracketAt(birthDate, referenceDate time.Time) AgeBracket {
	age := AgeAt(birthDate, referenceDate)
	switch {
	case age < preSchoolBelow:
		return BracketPreSchoolChild
	case age < adultFrom:
		return BracketYouth
	default:
		return BracketAdult
	}
}

// AcquiresRole reports whether a dependent in this bracket receives a
// mirrored role during family fan-out. Pre-school children are covered
// by the family membership without a role of their own.
func (b AgeBracket) AcquiresRole() bool {
	return b != BracketPreSchoolChild
}

// AgeAt returns completed years of age on the reference date.
func AgeAt(birthDate, referenceDate time.Time) int {
	years := referenceDate.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(years, 0, 0)
	if anniversary.After(referenceDate) {
		years--
	}
	return years
}

// Dependents returns every member of the household other than the main
// person. Order follows the directory's member order.
func (h *Household) Dependents() []*Person {
	if h == nil {
		return nil
	}
	var out []*Person
	for _, m := range h.Members {
		if !m.MainPerson {
			out = append(out, m)
		}
	}
	return out
}

// Main returns the household's main person, or nil if none is flagged.
func (h *Household) Main() *Person {
	if h == nil {
		return nil
	}
	for _, m := range h.Members {
		if m.MainPerson {
			return m
		}
	}
	return nil
}
