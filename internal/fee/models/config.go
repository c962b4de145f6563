package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
)

// Rates maps a fee category to its annual amount. The family-dependent
// category is covered by the family-main rate and usually absent.
type Rates map[id.FeeCategory]decimal.Decimal

// For resolves the rate for a category.
//
// Errors: CodeInvalidFeeCategory when the category is unknown to the
// schedule; upstream data corruption, never defaulted.
func (r Rates) For(category id.FeeCategory) (decimal.Decimal, error) {
	if !category.IsValid() {
		return decimal.Zero, dErrors.Newf(dErrors.CodeInvalidFeeCategory, "unknown fee category %q", category)
	}
	amount, ok := r[category]
	if !ok {
		return decimal.Zero, dErrors.Newf(dErrors.CodeInvalidFeeCategory, "no rate configured for fee category %q", category)
	}
	return amount, nil
}

// DiscountEntry grants a percentage discount from a cutoff date within
// the membership year onward.
type DiscountEntry struct {
	CutoffMonth time.Month `json:"cutoff_month"`
	CutoffDay   int        `json:"cutoff_day"`
	Percent     int        `json:"percent"`
}

// DiscountSchedule holds up to three discount entries. The entry with
// the latest cutoff still on or before the reference date wins.
type DiscountSchedule []DiscountEntry

// Factor returns the multiplicative discount factor for a reference
// date: (100 - percent) / 100, always in (0, 1]. With no qualifying
// entry the factor is 1.
func (s DiscountSchedule) Factor(referenceDate time.Time) decimal.Decimal {
	percent := 0
	var (
		bestCutoff time.Time
		found      bool
	)
	for _, e := range s {
		cutoff := time.Date(referenceDate.Year(), e.CutoffMonth, e.CutoffDay, 0, 0, 0, 0, time.UTC)
		if cutoff.After(DateOnly(referenceDate)) {
			continue
		}
		// A zero-percent entry still anchors the selection: it can
		// deliberately switch an earlier discount off.
		if !found || cutoff.After(bestCutoff) {
			percent = e.Percent
			bestCutoff = cutoff
			found = true
		}
	}
	return decimal.NewFromInt(int64(100 - percent)).Div(decimal.NewFromInt(100))
}

// NationalConfig is the national-level fee table valid from a given year.
type NationalConfig struct {
	ValidFrom int `json:"valid_from"`

	BaseFees          Rates `json:"base_fees"`
	HutSolidarityFees Rates `json:"hut_solidarity_fees"`
	MagazineFees      Rates `json:"magazine_fees"`
	EntryFees         Rates `json:"entry_fees"`

	MagazinePostageAbroad decimal.Decimal `json:"magazine_postage_abroad"`
	ServiceFee            decimal.Decimal `json:"service_fee"`

	Discounts DiscountSchedule `json:"discounts"`
}

// ReductionRule lowers the section fee for long-standing or senior
// members. A zero threshold means that criterion is not configured; if
// only one is configured, only that one must be met.
type ReductionRule struct {
	MinMembershipYears int             `json:"min_membership_years"`
	MinAge             int             `json:"min_age"`
	Amount             decimal.Decimal `json:"amount"`
}

// Applies reports whether the rule grants a reduction for the given
// tenure and age.
func (r ReductionRule) Applies(membershipYears float64, age int) bool {
	if r.MinMembershipYears == 0 && r.MinAge == 0 {
		return false
	}
	if r.MinMembershipYears > 0 && membershipYears < float64(r.MinMembershipYears) {
		return false
	}
	if r.MinAge > 0 && age < r.MinAge {
		return false
	}
	return true
}

// SectionConfig is one section's fee table valid from a given year.
type SectionConfig struct {
	GroupID   id.GroupID `json:"group_id"`
	ValidFrom int        `json:"valid_from"`

	SectionFees Rates `json:"section_fees"`
	EntryFees   Rates `json:"entry_fees"`

	BulletinPostageAbroad decimal.Decimal `json:"bulletin_postage_abroad"`

	// Exemption toggles: whether the section waives its fee for
	// honorary and benefited members.
	ExemptionForHonorary  bool `json:"exemption_for_honorary"`
	ExemptionForBenefited bool `json:"exemption_for_benefited"`

	Reduction ReductionRule `json:"reduction"`
}

// DateOnly truncates an instant to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
