package service

import (
	"github.com/shopspring/decimal"

	id "cairn/pkg/domain"
)

// Overrides carries administrator-supplied amounts per position type.
// National positions are keyed by name; section positions additionally
// by section, with the name-only amount as fallback.
type Overrides struct {
	byName    map[string]decimal.Decimal
	bySection map[sectionKey]decimal.Decimal
}

type sectionKey struct {
	name    string
	groupID id.GroupID
}

func NewOverrides() *Overrides {
	return &Overrides{
		byName:    make(map[string]decimal.Decimal),
		bySection: make(map[sectionKey]decimal.Decimal),
	}
}

// Set supplies a manual amount for a national position.
func (o *Overrides) Set(name string, amount decimal.Decimal) *Overrides {
	o.byName[name] = amount
	return o
}

// SetSection supplies a manual amount for one section's position.
func (o *Overrides) SetSection(name string, groupID id.GroupID, amount decimal.Decimal) *Overrides {
	o.bySection[sectionKey{name: name, groupID: groupID}] = amount
	return o
}

// Amount resolves the manual amount for a position, falling back to
// zero when none was supplied for an otherwise-active position.
func (o *Overrides) Amount(name string, groupID id.GroupID) decimal.Decimal {
	if !groupID.IsZero() {
		if amount, ok := o.bySection[sectionKey{name: name, groupID: groupID}]; ok {
			return amount
		}
	}
	if amount, ok := o.byName[name]; ok {
		return amount
	}
	return decimal.Zero
}
