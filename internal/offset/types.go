// Package offset computes the statutory R&D tax offset. Every function is a
// pure function of its inputs and all money arithmetic is exact decimal.
package offset

import "github.com/shopspring/decimal"

// Type identifies how an offset can be applied against tax payable.
type Type string

const (
	// Refundable offsets can be paid out as a cash refund.
	Refundable Type = "REFUNDABLE"
	// NonRefundable offsets only reduce tax payable.
	NonRefundable Type = "NON_REFUNDABLE"
)

// Label returns the display form used at the presentation boundary.
func (t Type) Label() string {
	switch t {
	case Refundable:
		return "Refundable"
	case NonRefundable:
		return "Non-refundable"
	default:
		return string(t)
	}
}

// Statutory parameters. Declared as vars because decimal has no const form;
// nothing outside this package mutates them.
var (
	// refundableTurnoverCap is exclusive: turnover of exactly the cap is
	// non-refundable.
	refundableTurnoverCap   = decimal.NewFromInt(20_000_000)
	lowerTaxRateTurnoverCap = decimal.NewFromInt(50_000_000)

	baseRateSmall = decimal.RequireFromString("0.25")
	baseRateLarge = decimal.RequireFromString("0.30")

	refundablePremium = decimal.RequireFromString("0.185")

	intensityThreshold    = decimal.RequireFromString("0.02")
	lowerIntensityPremium = decimal.RequireFromString("0.085")
	upperIntensityPremium = decimal.RequireFromString("0.165")

	minimumSpend = decimal.NewFromInt(20_000)
)

// Result describes a fully computed tax offset.
type Result struct {
	OffsetType     Type
	CompanyTaxRate decimal.Decimal
	EffectiveRate  decimal.Decimal
	TotalOffset    decimal.Decimal
	Breakdown      Breakdown
}

// Breakdown exposes the components behind a Result.
type Breakdown struct {
	BaseAmount    decimal.Decimal
	PremiumAmount decimal.Decimal
	LowerBand     decimal.Decimal
	UpperBand     decimal.Decimal
	Intensity     decimal.Decimal
}

// ThresholdResult reports the statutory minimum-spend gate.
type ThresholdResult struct {
	Eligible         bool
	TotalExpenditure decimal.Decimal
	Minimum          decimal.Decimal
	Shortfall        decimal.Decimal
}

// Estimate summarises a quick offset projection before a full claim exists.
type Estimate struct {
	OffsetType Type
	Label      string
	Rate       decimal.Decimal
	Amount     decimal.Decimal
}
