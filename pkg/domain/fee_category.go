package domain

import dErrors "cairn/pkg/domain-errors"

// FeeCategory determines the base rates applied to a membership.
// Invariant: immutable once set on a role; changing category means
// ending the role and creating a new one.
type FeeCategory string

const (
	FeeCategoryAdult           FeeCategory = "adult"
	FeeCategoryYouth           FeeCategory = "youth"
	FeeCategoryFamilyMain      FeeCategory = "family_main"
	FeeCategoryFamilyDependent FeeCategory = "family_dependent"
)

var validFeeCategories = map[FeeCategory]bool{
	FeeCategoryAdult:           true,
	FeeCategoryYouth:           true,
	FeeCategoryFamilyMain:      true,
	FeeCategoryFamilyDependent: true,
}

// ParseFeeCategory constructs a FeeCategory from external input.
//
// Errors: returns CodeInvalidFeeCategory when the value is empty or
// unsupported; an unknown category indicates upstream data corruption
// and is never defaulted.
func ParseFeeCategory(s string) (FeeCategory, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidFeeCategory, "fee category cannot be empty")
	}
	c := FeeCategory(s)
	if !c.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidFeeCategory, "unknown fee category %q", s)
	}
	return c, nil
}

// IsValid checks if the category is one of the supported enum values.
func (c FeeCategory) IsValid() bool {
	return validFeeCategories[c]
}

// Family reports whether the category belongs to a family bundle.
// Family-bundled additional-section roles are prolonged together with
// the main person's roles.
func (c FeeCategory) Family() bool {
	return c == FeeCategoryFamilyMain || c == FeeCategoryFamilyDependent
}
