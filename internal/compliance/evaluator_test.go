package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/clearclaim/internal/claims"
)

type memoryComplianceRepo struct {
	graphs map[int64]Graph
	checks map[int64][]Check
	nextID int64
}

func newMemoryComplianceRepo() *memoryComplianceRepo {
	return &memoryComplianceRepo{
		graphs: make(map[int64]Graph),
		checks: make(map[int64][]Check),
	}
}

func (r *memoryComplianceRepo) LoadGraph(ctx context.Context, claimID int64) (Graph, error) {
	g, ok := r.graphs[claimID]
	if !ok {
		return Graph{}, claims.ErrClaimNotFound
	}
	return g, nil
}

func (r *memoryComplianceRepo) ReplaceChecks(ctx context.Context, claimID int64, checks []Check) ([]Check, error) {
	persisted := make([]Check, 0, len(checks))
	for _, c := range checks {
		r.nextID++
		c.ID = r.nextID
		persisted = append(persisted, c)
	}
	r.checks[claimID] = persisted
	return persisted, nil
}

func (r *memoryComplianceRepo) LatestChecks(ctx context.Context, claimID int64) ([]Check, error) {
	return append([]Check(nil), r.checks[claimID]...), nil
}

func cleanGraph() Graph {
	deadline := day(2025, time.April, 30)
	turnover := decimal.NewFromInt(5_000_000)
	return Graph{
		Claim: claims.Claim{
			ID:                   7,
			CompanyID:            1,
			PeriodStart:          day(2023, time.July, 1),
			PeriodEnd:            day(2024, time.June, 30),
			RegistrationStatus:   claims.RegistrationNotStarted,
			RegistrationDeadline: &deadline,
		},
		Company: claims.Company{ID: 1, LegalName: "Quantum Widgets Pty Ltd", AggregatedTurnover: &turnover},
		Expenditures: []claims.Expenditure{
			{ID: 1, ClaimID: 7, Type: claims.ExpenditureSalary, AmountExTax: decimal.NewFromInt(250_000), Paid: true},
		},
		Activities: []claims.Activity{documentedCore(1)},
	}
}

func TestRunPersistsOneCheckPerRule(t *testing.T) {
	repo := newMemoryComplianceRepo()
	repo.graphs[7] = cleanGraph()
	ev := NewEvaluator(repo, nil)
	ev.WithClock(func() time.Time { return day(2024, time.December, 1) })

	assessment, err := ev.Run(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, assessment.Checks, CheckCount)
	require.Equal(t, 0, assessment.RiskScore)
	require.Equal(t, RiskLow, assessment.RiskLevel)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", assessment.RunID.String())

	seen := make(map[CheckType]bool)
	for _, c := range assessment.Checks {
		require.Equal(t, int64(7), c.ClaimID)
		require.Equal(t, assessment.RunID, c.RunID)
		require.False(t, seen[c.Type], "duplicate check type %s", c.Type)
		seen[c.Type] = true
	}
}

func TestRerunReplacesPreviousChecks(t *testing.T) {
	repo := newMemoryComplianceRepo()
	repo.graphs[7] = cleanGraph()
	ev := NewEvaluator(repo, nil)
	ev.WithClock(func() time.Time { return day(2024, time.December, 1) })

	first, err := ev.Run(context.Background(), 7)
	require.NoError(t, err)
	second, err := ev.Run(context.Background(), 7)
	require.NoError(t, err)

	require.NotEqual(t, first.RunID, second.RunID)
	require.Len(t, repo.checks[7], CheckCount)
	for _, c := range repo.checks[7] {
		require.Equal(t, second.RunID, c.RunID)
	}
}

func TestRunAggregatesFailuresToHighRisk(t *testing.T) {
	repo := newMemoryComplianceRepo()
	g := cleanGraph()
	// Below the minimum spend and past the deadline with no registration.
	g.Expenditures = []claims.Expenditure{
		{ID: 1, ClaimID: 7, Type: claims.ExpenditureSalary, AmountExTax: decimal.NewFromInt(5_000), Paid: true},
	}
	repo.graphs[7] = g
	ev := NewEvaluator(repo, nil)
	ev.WithClock(func() time.Time { return day(2025, time.June, 1) })

	assessment, err := ev.Run(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 60, assessment.RiskScore)
	require.Equal(t, RiskHigh, assessment.RiskLevel)

	byType := make(map[CheckType]CheckStatus)
	for _, c := range assessment.Checks {
		byType[c.Type] = c.Status
	}
	require.Equal(t, StatusFail, byType[CheckRegistrationDeadline])
	require.Equal(t, StatusFail, byType[CheckExpenditureThreshold])
}

func TestRunMissingClaim(t *testing.T) {
	repo := newMemoryComplianceRepo()
	ev := NewEvaluator(repo, nil)

	_, err := ev.Run(context.Background(), 99)
	require.ErrorIs(t, err, claims.ErrClaimNotFound)
}

func TestLatestReadsPersistedChecks(t *testing.T) {
	repo := newMemoryComplianceRepo()
	repo.graphs[7] = cleanGraph()
	ev := NewEvaluator(repo, nil)
	ev.WithClock(func() time.Time { return day(2024, time.December, 1) })

	ran, err := ev.Run(context.Background(), 7)
	require.NoError(t, err)

	latest, err := ev.Latest(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, ran.RunID, latest.RunID)
	require.Equal(t, ran.RiskScore, latest.RiskScore)
	require.Len(t, latest.Checks, CheckCount)
}

func TestLatestWithNoRuns(t *testing.T) {
	repo := newMemoryComplianceRepo()
	ev := NewEvaluator(repo, nil)

	latest, err := ev.Latest(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, latest.Checks)
	require.Equal(t, RiskLow, latest.RiskLevel)
}

type failingPersistRepo struct {
	*memoryComplianceRepo
}

func (r *failingPersistRepo) ReplaceChecks(ctx context.Context, claimID int64, checks []Check) ([]Check, error) {
	return nil, errors.New("insert rejected")
}

func TestFailedPersistDropsCachedAssessment(t *testing.T) {
	inner := newMemoryComplianceRepo()
	inner.graphs[7] = cleanGraph()
	cache := testCache(t)
	ev := NewEvaluator(&failingPersistRepo{memoryComplianceRepo: inner}, cache)
	ev.WithClock(func() time.Time { return day(2024, time.December, 1) })

	stale := sampleAssessment()
	cache.Put(context.Background(), stale)

	_, err := ev.Run(context.Background(), 7)
	require.Error(t, err)

	_, ok := cache.Get(context.Background(), 7)
	require.False(t, ok)
}

func TestPanickingRuleDegradesToFail(t *testing.T) {
	entry := registryEntry{
		Type: CheckDocumentation,
		Run:  func(Graph, time.Time) Outcome { panic("boom") },
	}
	out := runChecked(entry, Graph{}, time.Time{})
	require.Equal(t, StatusFail, out.Status)
	require.Contains(t, out.Message, "boom")
}
