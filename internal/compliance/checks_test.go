package compliance

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/clearclaim/internal/claims"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func str(s string) *string { return &s }

func id(v int64) *int64 { return &v }

func documentedCore(id int64) claims.Activity {
	return claims.Activity{
		ID:          id,
		Type:        claims.ActivityCore,
		Name:        "Prototype battery chemistry",
		Hypothesis:  "A lithium-sulfur cathode can retain 80% capacity over 500 cycles.",
		Experiment:  "Build coin cells with three binder formulations and cycle at 0.5C.",
		Observation: "Formulation B retained 83% capacity after 500 cycles.",
		Evaluation:  "Capacity retention exceeded the target for one formulation.",
		Conclusion:  "Binder chemistry materially affects cycle life; scale-up justified.",
	}
}

func baseGraph() Graph {
	deadline := day(2025, time.April, 30)
	return Graph{
		Claim: claims.Claim{
			ID:                   1,
			CompanyID:            1,
			PeriodStart:          day(2023, time.July, 1),
			PeriodEnd:            day(2024, time.June, 30),
			RegistrationStatus:   claims.RegistrationNotStarted,
			RegistrationDeadline: &deadline,
		},
		Company: claims.Company{ID: 1, LegalName: "Quantum Widgets Pty Ltd"},
		Expenditures: []claims.Expenditure{
			{ID: 1, ClaimID: 1, Type: claims.ExpenditureSalary, AmountExTax: decimal.NewFromInt(100_000), Paid: true},
		},
		Activities: []claims.Activity{documentedCore(1)},
	}
}

func TestEntityEligibility(t *testing.T) {
	g := baseGraph()
	out := checkEntityEligibility(g, day(2024, time.July, 1))
	require.Equal(t, StatusPass, out.Status)

	g.Company.ExemptControlled = true
	out = checkEntityEligibility(g, day(2024, time.July, 1))
	require.Equal(t, StatusWarning, out.Status)
}

func TestRegistrationDeadline(t *testing.T) {
	g := baseGraph()

	out := checkRegistrationDeadline(g, day(2024, time.December, 1))
	require.Equal(t, StatusPass, out.Status)

	out = checkRegistrationDeadline(g, day(2025, time.May, 1))
	require.Equal(t, StatusFail, out.Status)
	require.Contains(t, out.Message, "30 April 2025")

	// A registered claim passes even after the deadline.
	g.Claim.RegistrationStatus = claims.RegistrationRegistered
	out = checkRegistrationDeadline(g, day(2025, time.May, 1))
	require.Equal(t, StatusPass, out.Status)

	// Unless the recorded registration date is still in the future.
	future := day(2025, time.June, 1)
	g.Claim.RegistrationDate = &future
	out = checkRegistrationDeadline(g, day(2025, time.May, 1))
	require.Equal(t, StatusFail, out.Status)
}

func TestRegistrationDeadlineDerivedWhenUnset(t *testing.T) {
	g := baseGraph()
	g.Claim.RegistrationDeadline = nil

	// Ten months after 30 June 2024 is 30 April 2025.
	out := checkRegistrationDeadline(g, day(2025, time.April, 30))
	require.Equal(t, StatusPass, out.Status)
	out = checkRegistrationDeadline(g, day(2025, time.May, 1))
	require.Equal(t, StatusFail, out.Status)
}

func TestExpenditureThreshold(t *testing.T) {
	g := baseGraph()
	out := checkExpenditureThreshold(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)

	g.Expenditures = []claims.Expenditure{
		{ID: 1, Type: claims.ExpenditureSalary, AmountExTax: decimal.NewFromInt(15_000)},
	}
	out = checkExpenditureThreshold(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)
	require.Equal(t, "5000", out.Details["shortfall"])

	// The gate is inclusive at exactly the minimum.
	g.Expenditures[0].AmountExTax = decimal.NewFromInt(20_000)
	out = checkExpenditureThreshold(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)
}

func TestAssociatePayment(t *testing.T) {
	g := baseGraph()
	out := checkAssociatePayment(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)

	g.Expenditures = append(g.Expenditures, claims.Expenditure{
		ID: 2, Type: claims.ExpenditureAssociate, AmountExTax: decimal.NewFromInt(5000), Paid: false,
	})
	out = checkAssociatePayment(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)
	require.Equal(t, 1, out.Details["unpaidCount"])

	// The associate flag triggers the rule regardless of type.
	g.Expenditures[1] = claims.Expenditure{
		ID: 2, Type: claims.ExpenditureContract, AmountExTax: decimal.NewFromInt(5000), Associate: true, Paid: true,
	}
	out = checkAssociatePayment(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)
}

func TestOverseasFinding(t *testing.T) {
	g := baseGraph()
	out := checkOverseasFinding(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)

	overseas := documentedCore(2)
	overseas.Name = "Offshore trial"
	overseas.Overseas = true
	g.Activities = append(g.Activities, overseas)
	out = checkOverseasFinding(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)
	require.Contains(t, out.Message, "Offshore trial")

	g.Activities[1].OverseasFindingReference = str("OF-2024-001")
	out = checkOverseasFinding(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)
}

func TestOverseasSpendWithoutFinding(t *testing.T) {
	g := baseGraph()
	g.Expenditures = append(g.Expenditures, claims.Expenditure{
		ID: 2, Type: claims.ExpenditureContract, AmountExTax: decimal.NewFromInt(5000), Overseas: true,
	})
	out := checkOverseasFinding(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)
}

func TestDocumentation(t *testing.T) {
	g := baseGraph()
	out := checkDocumentation(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)

	// No core activities at all is a hard failure.
	g.Activities = nil
	out = checkDocumentation(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)
	require.Equal(t, "Required R&D activity documentation is missing.", out.Message)

	// A core activity with no scientific method record and no description.
	g.Activities = []claims.Activity{{ID: 1, Type: claims.ActivityCore, Name: "Undocumented"}}
	out = checkDocumentation(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)

	// Sparse documentation degrades to a warning.
	g.Activities = []claims.Activity{{
		ID: 1, Type: claims.ActivityCore, Name: "Thin",
		Hypothesis: "It works.", Experiment: "Try it.",
	}}
	out = checkDocumentation(g, time.Time{})
	require.Equal(t, StatusWarning, out.Status)
}

func TestActivityEligibility(t *testing.T) {
	g := baseGraph()
	out := checkActivityEligibility(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)

	g.Activities = nil
	out = checkActivityEligibility(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)
	require.Equal(t, "The claim has no core R&D activities.", out.Message)

	supporting := claims.Activity{ID: 3, Type: claims.ActivitySupportingDirect, Name: "Data collection"}
	g.Activities = []claims.Activity{documentedCore(1), supporting}
	out = checkActivityEligibility(g, time.Time{})
	require.Equal(t, StatusWarning, out.Status)

	g.Activities[1].CoreActivityID = id(1)
	out = checkActivityEligibility(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)
}

func TestExpenditureConsistency(t *testing.T) {
	g := baseGraph()
	out := checkExpenditureConsistency(g, time.Time{})
	require.Equal(t, StatusPass, out.Status)

	g.Expenditures = []claims.Expenditure{
		{ID: 1, Type: claims.ExpenditureSalary, AmountExTax: decimal.NewFromInt(1000), TaxAmount: decimal.NewFromInt(-10)},
		{ID: 2, Type: claims.ExpenditureRSP, AmountExTax: decimal.NewFromInt(1000)},
	}
	out = checkExpenditureConsistency(g, time.Time{})
	require.Equal(t, StatusFail, out.Status)
	require.True(t, strings.Contains(out.Message, "negative tax amount"))
	require.True(t, strings.Contains(out.Message, "RSP registration number"))
}

func TestRegistryCoversEveryCheckType(t *testing.T) {
	require.Equal(t, 8, CheckCount)
	seen := make(map[CheckType]bool)
	for _, entry := range registry {
		require.NotNil(t, entry.Run)
		require.False(t, seen[entry.Type], "duplicate registry entry %s", entry.Type)
		seen[entry.Type] = true
	}
	for _, typ := range []CheckType{
		CheckEntityEligibility, CheckRegistrationDeadline, CheckExpenditureThreshold,
		CheckAssociatePayment, CheckOverseasFinding, CheckDocumentation,
		CheckActivityEligibility, CheckExpenditureConsistency,
	} {
		require.True(t, seen[typ], "missing registry entry %s", typ)
	}
}

func TestScoreChecks(t *testing.T) {
	passes := make([]Check, 0, CheckCount)
	for i := 0; i < CheckCount; i++ {
		passes = append(passes, Check{Status: StatusPass})
	}
	score, level := ScoreChecks(passes)
	require.Equal(t, 0, score)
	require.Equal(t, RiskLow, level)

	mixed := append([]Check(nil), passes...)
	mixed[0].Status = StatusWarning
	mixed[1].Status = StatusWarning
	mixed[2].Status = StatusWarning
	score, level = ScoreChecks(mixed)
	require.Equal(t, 30, score)
	require.Equal(t, RiskMedium, level)

	severe := append([]Check(nil), passes...)
	severe[0].Status = StatusFail
	severe[1].Status = StatusFail
	score, level = ScoreChecks(severe)
	require.Equal(t, 60, score)
	require.Equal(t, RiskHigh, level)

	// NOT_APPLICABLE never contributes.
	na := append([]Check(nil), passes...)
	na[0].Status = StatusNotApplicable
	score, level = ScoreChecks(na)
	require.Equal(t, 0, score)
	require.Equal(t, RiskLow, level)
}
