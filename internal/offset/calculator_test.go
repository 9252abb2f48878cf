package offset

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/clearclaim/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTaxOffsetRefundable(t *testing.T) {
	res, err := CalculateTaxOffset(dec("1000000"), dec("15000000"), dec("2000000"))
	require.NoError(t, err)
	require.Equal(t, Refundable, res.OffsetType)
	require.True(t, res.CompanyTaxRate.Equal(dec("0.25")))
	require.True(t, res.EffectiveRate.Equal(dec("0.435")), "effective rate %s", res.EffectiveRate)
	require.True(t, res.TotalOffset.Equal(dec("435000")))
	require.True(t, res.Breakdown.PremiumAmount.Equal(dec("185000")))
}

func TestOffsetTypeTurnoverBoundary(t *testing.T) {
	under, err := CalculateTaxOffset(dec("100000"), dec("19999999.99"), dec("500000"))
	require.NoError(t, err)
	require.Equal(t, Refundable, under.OffsetType)

	exact, err := CalculateTaxOffset(dec("100000"), dec("20000000"), dec("500000"))
	require.NoError(t, err)
	require.Equal(t, NonRefundable, exact.OffsetType)
}

func TestCompanyTaxRateBoundary(t *testing.T) {
	small, err := CalculateTaxOffset(dec("100000"), dec("49999999"), dec("500000"))
	require.NoError(t, err)
	require.True(t, small.CompanyTaxRate.Equal(dec("0.25")))

	large, err := CalculateTaxOffset(dec("100000"), dec("50000000"), dec("500000"))
	require.NoError(t, err)
	require.True(t, large.CompanyTaxRate.Equal(dec("0.30")))
}

func TestNonRefundableIntensityTiers(t *testing.T) {
	// Intensity 10%: 2% of the 10,000,000 expenditure base earns the lower
	// premium, the remaining 800,000 the upper premium.
	res, err := CalculateTaxOffset(dec("1000000"), dec("60000000"), dec("10000000"))
	require.NoError(t, err)
	require.Equal(t, NonRefundable, res.OffsetType)
	require.True(t, res.Breakdown.LowerBand.Equal(dec("200000")))
	require.True(t, res.Breakdown.UpperBand.Equal(dec("800000")))
	// 200000*0.085 + 800000*0.165 = 17000 + 132000
	require.True(t, res.Breakdown.PremiumAmount.Equal(dec("149000")))
	require.True(t, res.TotalOffset.Equal(dec("449000")))
	require.True(t, res.Breakdown.PremiumAmount.IsPositive())

	// Same turnover, intensity below 2%: everything stays in the lower band
	// and the blended rate must be strictly lower.
	low, err := CalculateTaxOffset(dec("150000"), dec("60000000"), dec("10000000"))
	require.NoError(t, err)
	require.True(t, low.Breakdown.UpperBand.IsZero())
	require.True(t, low.EffectiveRate.Equal(dec("0.385")))
	require.True(t, res.EffectiveRate.GreaterThan(low.EffectiveRate))
}

func TestZeroNotionalDeductionsShortCircuit(t *testing.T) {
	res, err := CalculateTaxOffset(decimal.Zero, dec("60000000"), decimal.Zero)
	require.NoError(t, err)
	require.True(t, res.TotalOffset.IsZero())
	require.True(t, res.Breakdown.PremiumAmount.IsZero())
	require.Equal(t, NonRefundable, res.OffsetType)
}

func TestCalculateTaxOffsetRejectsNegatives(t *testing.T) {
	_, err := CalculateTaxOffset(dec("-1"), dec("1000000"), dec("50000"))
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = CalculateTaxOffset(dec("1"), dec("-1000000"), dec("50000"))
	require.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestMeetsMinimumThreshold(t *testing.T) {
	require.True(t, MeetsMinimumThreshold(dec("25000")).Eligible)
	require.True(t, MeetsMinimumThreshold(dec("20000")).Eligible)

	below := MeetsMinimumThreshold(dec("15000"))
	require.False(t, below.Eligible)
	require.True(t, below.Shortfall.Equal(dec("5000")))
}

func TestRegistrationDeadline(t *testing.T) {
	end := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC), RegistrationDeadline(end))

	// Month-end clamping: 31 August has no 31 June counterpart.
	end = time.Date(2024, time.August, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC), RegistrationDeadline(end))

	end = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC), RegistrationDeadline(end))
}

func TestEstimateOffset(t *testing.T) {
	est, err := EstimateOffset(dec("100000"), dec("5000000"))
	require.NoError(t, err)
	require.Equal(t, Refundable, est.OffsetType)
	require.Equal(t, "Refundable", est.Label)
	require.True(t, est.Rate.Equal(dec("0.435")))
	require.True(t, est.Amount.Equal(dec("43500")))

	est, err = EstimateOffset(dec("100000"), dec("80000000"))
	require.NoError(t, err)
	require.Equal(t, NonRefundable, est.OffsetType)
	require.Equal(t, "Non-refundable", est.Label)
	require.True(t, est.Rate.Equal(dec("0.385")))
	require.True(t, est.Amount.IsPositive())

	_, err = EstimateOffset(dec("-5"), dec("1"))
	require.True(t, errors.Is(err, shared.ErrInvalidInput))
}
