package offset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearclaim/clearclaim/internal/shared"
)

// CalculateTaxOffset computes the offset for the given notional deductions,
// the company's aggregated turnover and the claim's total relevant
// expenditure. Negative inputs fail fast rather than being clamped.
func CalculateTaxOffset(notionalDeductions, aggregatedTurnover, totalExpenditure decimal.Decimal) (Result, error) {
	if notionalDeductions.IsNegative() || aggregatedTurnover.IsNegative() || totalExpenditure.IsNegative() {
		return Result{}, fmt.Errorf("offset: calculate: negative amount: %w", shared.ErrInvalidInput)
	}

	offsetType := NonRefundable
	if aggregatedTurnover.LessThan(refundableTurnoverCap) {
		offsetType = Refundable
	}
	taxRate := baseRateLarge
	if aggregatedTurnover.LessThan(lowerTaxRateTurnoverCap) {
		taxRate = baseRateSmall
	}

	if notionalDeductions.IsZero() {
		return Result{
			OffsetType:     offsetType,
			CompanyTaxRate: taxRate,
			EffectiveRate:  taxRate,
			TotalOffset:    decimal.Zero,
		}, nil
	}

	if offsetType == Refundable {
		effective := taxRate.Add(refundablePremium)
		return Result{
			OffsetType:     offsetType,
			CompanyTaxRate: taxRate,
			EffectiveRate:  effective,
			TotalOffset:    notionalDeductions.Mul(effective),
			Breakdown: Breakdown{
				BaseAmount:    notionalDeductions.Mul(taxRate),
				PremiumAmount: notionalDeductions.Mul(refundablePremium),
			},
		}, nil
	}

	bands := splitByIntensity(notionalDeductions, totalExpenditure)
	premium := premiumForBands(bands)
	base := notionalDeductions.Mul(taxRate)
	total := base.Add(premium)
	return Result{
		OffsetType:     offsetType,
		CompanyTaxRate: taxRate,
		EffectiveRate:  total.Div(notionalDeductions),
		TotalOffset:    total,
		Breakdown: Breakdown{
			BaseAmount:    base,
			PremiumAmount: premium,
			LowerBand:     bands.Lower,
			UpperBand:     bands.Upper,
			Intensity:     bands.Intensity,
		},
	}, nil
}

// MeetsMinimumThreshold reports whether total R&D expenditure clears the
// statutory minimum spend. The gate is independent of the offset calculation.
func MeetsMinimumThreshold(totalExpenditure decimal.Decimal) ThresholdResult {
	res := ThresholdResult{
		TotalExpenditure: totalExpenditure,
		Minimum:          minimumSpend,
	}
	if totalExpenditure.GreaterThanOrEqual(minimumSpend) {
		res.Eligible = true
		return res
	}
	res.Shortfall = minimumSpend.Sub(totalExpenditure)
	return res
}

// RegistrationDeadline returns the statutory registration cut-off: ten
// calendar months after the income year end. Month arithmetic clamps to the
// last day of the target month, so 31 August lands on 30 June.
func RegistrationDeadline(incomeYearEnd time.Time) time.Time {
	return addMonths(incomeYearEnd, 10)
}

func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

// EstimateOffset is the simplified projection used before a full claim
// exists. Without an intensity breakdown the non-refundable side assumes the
// lower premium band, so the estimate never overstates the entitlement.
func EstimateOffset(expenditure, aggregatedTurnover decimal.Decimal) (Estimate, error) {
	if expenditure.IsNegative() || aggregatedTurnover.IsNegative() {
		return Estimate{}, fmt.Errorf("offset: estimate: negative amount: %w", shared.ErrInvalidInput)
	}
	offsetType := NonRefundable
	premium := lowerIntensityPremium
	if aggregatedTurnover.LessThan(refundableTurnoverCap) {
		offsetType = Refundable
		premium = refundablePremium
	}
	taxRate := baseRateLarge
	if aggregatedTurnover.LessThan(lowerTaxRateTurnoverCap) {
		taxRate = baseRateSmall
	}
	rate := taxRate.Add(premium)
	return Estimate{
		OffsetType: offsetType,
		Label:      offsetType.Label(),
		Rate:       rate,
		Amount:     expenditure.Mul(rate),
	}, nil
}
