package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/clearclaim/clearclaim/internal/claims"
)

type stubClaimsRepo struct {
	rows     []claims.DeadlineRow
	listErr  error
	gotBy    time.Time
	byCalled bool
}

func (r *stubClaimsRepo) WithTx(ctx context.Context, fn func(context.Context, claims.TxRepository) error) error {
	return nil
}

func (r *stubClaimsRepo) GetClaim(ctx context.Context, id int64) (claims.Claim, error) {
	return claims.Claim{}, claims.ErrClaimNotFound
}

func (r *stubClaimsRepo) GetCompany(ctx context.Context, id int64) (claims.Company, error) {
	return claims.Company{}, claims.ErrCompanyNotFound
}

func (r *stubClaimsRepo) GetCompanyForClaim(ctx context.Context, claimID int64) (claims.Company, error) {
	return claims.Company{}, claims.ErrCompanyNotFound
}

func (r *stubClaimsRepo) ListExpenditures(ctx context.Context, claimID int64) ([]claims.Expenditure, error) {
	return nil, nil
}

func (r *stubClaimsRepo) ListActivities(ctx context.Context, claimID int64) ([]claims.Activity, error) {
	return nil, nil
}

func (r *stubClaimsRepo) ActiveClaimIDs(ctx context.Context) ([]int64, error) {
	return nil, nil
}

func (r *stubClaimsRepo) ClaimsNearingDeadline(ctx context.Context, by time.Time) ([]claims.DeadlineRow, error) {
	r.byCalled = true
	r.gotBy = by
	return r.rows, r.listErr
}

func TestDeadlineScanAppliesWarningWindow(t *testing.T) {
	repo := &stubClaimsRepo{
		rows: []claims.DeadlineRow{
			{ClaimID: 1, CompanyName: "Quantum Widgets Pty Ltd", Deadline: time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC)},
		},
	}
	job := NewDeadlineScanJob(repo, nil, nil)
	now := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewDeadlineScanTask(now, 30*24*time.Hour)
	require.NoError(t, err)

	// Rows without a contact email are skipped, not fatal.
	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, repo.byCalled)
	require.Equal(t, now.Add(30*24*time.Hour), repo.gotBy)
}

func TestDeadlineScanBadPayloadNotRetried(t *testing.T) {
	job := NewDeadlineScanJob(&stubClaimsRepo{}, nil, nil)
	task := asynq.NewTask(TaskDeadlineScan, []byte("{"))

	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
