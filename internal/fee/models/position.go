package models

import (
	"github.com/shopspring/decimal"

	id "cairn/pkg/domain"
)

// PositionKind classifies a priced invoice line.
type PositionKind string

const (
	PositionBaseFee          PositionKind = "base_fee"
	PositionEntryFee         PositionKind = "entry_fee"
	PositionMagazineFee      PositionKind = "magazine_fee"
	PositionHutSolidarityFee PositionKind = "hut_solidarity_fee"
	PositionPostageSurcharge PositionKind = "postage_surcharge"
	PositionServiceFee       PositionKind = "service_fee"
	// PositionDiscount is the explicit negative line surfacing the
	// date-based discount on a quote.
	PositionDiscount PositionKind = "discount"
)

// FeePosition is one priced line of a membership-year invoice.
// Produced transiently by the fee engine; persistence of the resulting
// invoice is the caller's concern.
type FeePosition struct {
	Name       string
	Kind       PositionKind
	Amount     decimal.Decimal
	ArticleRef string

	// GroupID is set for section-level positions, zero for national ones.
	GroupID id.GroupID
	// Entry marks entry-fee positions, which the date-based discount
	// never touches.
	Entry bool
}

// Quote aggregates the generated positions into what a caller renders:
// the undiscounted lines, an explicit discount line when a discount
// applies, and the resulting total.
type Quote struct {
	Positions []FeePosition
	Discount  *FeePosition
	Total     decimal.Decimal
}
