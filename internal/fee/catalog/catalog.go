// Package catalog declares which fee positions exist and when each is
// active. The catalogs produce position specs; the fee service prices
// them (or substitutes manual amounts) into invoice lines.
package catalog

import (
	"github.com/shopspring/decimal"

	feemodels "cairn/internal/fee/models"
	id "cairn/pkg/domain"
)

// Position names, also the keys manual overrides are looked up by.
const (
	NameBaseFee               = "base_fee"
	NameHutSolidarityFee      = "hut_solidarity_fee"
	NameMagazineFee           = "magazine_fee"
	NameMagazinePostageAbroad = "magazine_postage_abroad"
	NameNationalEntryFee      = "national_entry_fee"
	NameSectionFee            = "section_fee"
	NameBulletinPostageAbroad = "bulletin_postage_abroad"
	NameSectionEntryFee       = "section_entry_fee"
	NameServiceFee            = "service_fee"
)

// Spec is one catalog entry: whether the position applies to the member
// being priced, and how its undiscounted gross amount is derived.
type Spec struct {
	Name       string
	Kind       feemodels.PositionKind
	ArticleRef string
	GroupID    id.GroupID
	Entry      bool

	Active func() bool
	Gross  func() (decimal.Decimal, error)
}

// National instantiates the national position catalog for the main
// membership: base fee, hut solidarity fee, magazine fee, the magazine
// postage surcharge for members living abroad, and the service fee when
// one is configured. Entry fees are included only for a first-time
// national admission.
func National(cfg *feemodels.NationalConfig, m *feemodels.Member, newEntry bool) []Spec {
	exempt := m.SACHonorary
	specs := []Spec{
		{
			Name:       NameBaseFee,
			Kind:       feemodels.PositionBaseFee,
			ArticleRef: "NAT-BASE",
			Active:     func() bool { return true },
			Gross:      exemptable(exempt, func() (decimal.Decimal, error) { return cfg.BaseFees.For(m.FeeCategory) }),
		},
		{
			Name:       NameHutSolidarityFee,
			Kind:       feemodels.PositionHutSolidarityFee,
			ArticleRef: "NAT-HUT",
			Active:     func() bool { return true },
			Gross:      exemptable(exempt, func() (decimal.Decimal, error) { return cfg.HutSolidarityFees.For(m.FeeCategory) }),
		},
		{
			Name:       NameMagazineFee,
			Kind:       feemodels.PositionMagazineFee,
			ArticleRef: "NAT-MAG",
			Active:     func() bool { return m.MagazineSubscribed },
			Gross:      exemptable(exempt, func() (decimal.Decimal, error) { return cfg.MagazineFees.For(m.FeeCategory) }),
		},
		{
			Name:       NameMagazinePostageAbroad,
			Kind:       feemodels.PositionPostageSurcharge,
			ArticleRef: "NAT-MAG-POST",
			Active:     func() bool { return m.MagazineSubscribed && m.LivesAbroad },
			Gross:      exemptable(exempt, fixed(cfg.MagazinePostageAbroad)),
		},
		{
			Name:       NameServiceFee,
			Kind:       feemodels.PositionServiceFee,
			ArticleRef: "NAT-SVC",
			Active:     func() bool { return cfg.ServiceFee.IsPositive() },
			Gross:      exemptable(exempt, fixed(cfg.ServiceFee)),
		},
	}
	if newEntry {
		specs = append(specs, Spec{
			Name:       NameNationalEntryFee,
			Kind:       feemodels.PositionEntryFee,
			ArticleRef: "NAT-ENTRY",
			Entry:      true,
			Active:     func() bool { return true },
			Gross:      exemptable(exempt, func() (decimal.Decimal, error) { return cfg.EntryFees.For(m.FeeCategory) }),
		})
	}
	return specs
}

// Section instantiates the section position catalog for one membership:
// section fee and bulletin postage surcharge, plus the section entry
// fee for a first-time admission on the main membership.
//
// The section fee honors the section's honorary/benefited exemption
// toggles and its tenure/age reduction rule.
func Section(cfg *feemodels.SectionConfig, m *feemodels.Member, ms feemodels.Membership, newEntry bool) []Spec {
	exempt := sectionExempt(cfg, m, ms)
	specs := []Spec{
		{
			Name:       NameSectionFee,
			Kind:       feemodels.PositionBaseFee,
			ArticleRef: "SEC-BASE",
			GroupID:    ms.GroupID,
			Active:     func() bool { return true },
			Gross: exemptable(exempt, func() (decimal.Decimal, error) {
				amount, err := cfg.SectionFees.For(m.FeeCategory)
				if err != nil {
					return decimal.Zero, err
				}
				return reduce(amount, cfg.Reduction, m), nil
			}),
		},
		{
			Name:       NameBulletinPostageAbroad,
			Kind:       feemodels.PositionPostageSurcharge,
			ArticleRef: "SEC-BULL-POST",
			GroupID:    ms.GroupID,
			Active:     func() bool { return m.LivesAbroad },
			Gross:      exemptable(exempt, fixed(cfg.BulletinPostageAbroad)),
		},
	}
	if newEntry && ms.Main {
		specs = append(specs, Spec{
			Name:       NameSectionEntryFee,
			Kind:       feemodels.PositionEntryFee,
			ArticleRef: "SEC-ENTRY",
			GroupID:    ms.GroupID,
			Entry:      true,
			Active:     func() bool { return true },
			Gross:      exemptable(exempt, func() (decimal.Decimal, error) { return cfg.EntryFees.For(m.FeeCategory) }),
		})
	}
	return specs
}

// sectionExempt combines the national honorary exemption with the
// section's own policy toggles.
func sectionExempt(cfg *feemodels.SectionConfig, m *feemodels.Member, ms feemodels.Membership) bool {
	if m.SACHonorary {
		return true
	}
	if ms.SectionHonorary && cfg.ExemptionForHonorary {
		return true
	}
	if ms.SectionBenefited && cfg.ExemptionForBenefited {
		return true
	}
	return false
}

// reduce applies the section's tenure/age reduction, never below zero.
func reduce(amount decimal.Decimal, rule feemodels.ReductionRule, m *feemodels.Member) decimal.Decimal {
	if !rule.Applies(m.MembershipYears, m.Age) {
		return amount
	}
	reduced := amount.Sub(rule.Amount)
	if reduced.IsNegative() {
		return decimal.Zero
	}
	return reduced
}

// exemptable wraps a gross derivation, collapsing it to zero when an
// exemption applies. The position stays on the invoice with amount 0.
func exemptable(exempt bool, gross func() (decimal.Decimal, error)) func() (decimal.Decimal, error) {
	if !exempt {
		return gross
	}
	return func() (decimal.Decimal, error) { return decimal.Zero, nil }
}

func fixed(amount decimal.Decimal) func() (decimal.Decimal, error) {
	return func() (decimal.Decimal, error) { return amount, nil }
}
