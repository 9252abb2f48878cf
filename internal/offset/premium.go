package offset

import "github.com/shopspring/decimal"

// Bands is the split of notional deductions across the intensity tiers.
type Bands struct {
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	Intensity decimal.Decimal
}

// splitByIntensity allocates notional deductions marginally across the 2%
// R&D-intensity threshold: deductions up to 2% of total expenditure sit in
// the lower band, the remainder in the upper band. Kept separate from the
// calculator so the banding rule can change without touching call sites.
func splitByIntensity(notionalDeductions, totalExpenditure decimal.Decimal) Bands {
	if totalExpenditure.IsZero() {
		// No expenditure base means intensity is unbounded; the whole
		// amount earns the upper premium.
		return Bands{Upper: notionalDeductions}
	}
	intensity := notionalDeductions.Div(totalExpenditure)
	lowerCap := totalExpenditure.Mul(intensityThreshold)
	if notionalDeductions.LessThanOrEqual(lowerCap) {
		return Bands{Lower: notionalDeductions, Intensity: intensity}
	}
	return Bands{
		Lower:     lowerCap,
		Upper:     notionalDeductions.Sub(lowerCap),
		Intensity: intensity,
	}
}

func premiumForBands(b Bands) decimal.Decimal {
	return b.Lower.Mul(lowerIntensityPremium).Add(b.Upper.Mul(upperIntensityPremium))
}
