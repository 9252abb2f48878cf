package claims

import (
	"context"
	"time"
)

// Repository defines claim data access required by the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetClaim(ctx context.Context, id int64) (Claim, error)
	GetCompany(ctx context.Context, id int64) (Company, error)
	GetCompanyForClaim(ctx context.Context, claimID int64) (Company, error)
	ListExpenditures(ctx context.Context, claimID int64) ([]Expenditure, error)
	ListActivities(ctx context.Context, claimID int64) ([]Activity, error)

	// ActiveClaimIDs lists claims still in preparation, for background sweeps.
	ActiveClaimIDs(ctx context.Context) ([]int64, error)
	// ClaimsNearingDeadline lists unregistered claims whose registration
	// deadline falls on or before the cut-off.
	ClaimsNearingDeadline(ctx context.Context, by time.Time) ([]DeadlineRow, error)
}

// TxRepository defines operations executed within one transaction. The
// ledger read lives here too so offset recomputation sees rows written
// earlier in the same transaction.
type TxRepository interface {
	ListExpenditures(ctx context.Context, claimID int64) ([]Expenditure, error)

	CreateClaim(ctx context.Context, input CreateClaimInput, deadline time.Time) (int64, error)
	CreateExpenditure(ctx context.Context, input RecordExpenditureInput) (int64, error)
	UpdateClaimOffset(ctx context.Context, update OffsetUpdate) error
	UpdateRegistration(ctx context.Context, update RegistrationUpdate) error
	UpdateClaimStatus(ctx context.Context, claimID int64, status ClaimStatus) error
}

// DeadlineRow carries what the reminder scan needs per claim.
type DeadlineRow struct {
	ClaimID      int64
	CompanyName  string
	ContactEmail string
	Deadline     time.Time
}
