package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearclaim/clearclaim/internal/offset"
	"github.com/clearclaim/clearclaim/internal/shared"
)

// Sentinels wrap the shared taxonomy so the HTTP layer can map them to
// status codes without importing this package.
var (
	ErrClaimNotFound       = fmt.Errorf("claim %w", shared.ErrNotFound)
	ErrCompanyNotFound     = fmt.Errorf("company %w", shared.ErrNotFound)
	ErrPeriodInvalid       = fmt.Errorf("period end must be after period start: %w", shared.ErrInvalidInput)
	ErrRSPNumberRequired   = fmt.Errorf("RSP expenditure requires a registration number: %w", shared.ErrInvalidInput)
	ErrRegistrationDate    = fmt.Errorf("registration date precedes submission: %w", shared.ErrInvalidInput)
	ErrNegativeExpenditure = fmt.Errorf("expenditure amounts must not be negative: %w", shared.ErrInvalidInput)
)

// Service owns the claim-update workflow: creating claims, recording
// expenditure and keeping the stored offset fields in sync with the ledger.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a claims service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CreateClaimInput describes a new income year application.
type CreateClaimInput struct {
	CompanyID   int64
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// RecordExpenditureInput describes a ledger entry to add to a claim.
type RecordExpenditureInput struct {
	ClaimID               int64
	ProjectID             *int64
	Type                  ExpenditureType
	Description           string
	AmountExTax           decimal.Decimal
	TaxAmount             decimal.Decimal
	Paid                  bool
	PaymentDate           *time.Time
	Associate             bool
	Overseas              bool
	RSPRegistrationNumber *string
}

// OffsetUpdate carries recalculated offset fields onto the claim record.
type OffsetUpdate struct {
	ClaimID                int64
	TotalNotionalDeduction decimal.Decimal
	OffsetType             offset.Type
	RefundableOffset       decimal.Decimal
	NonRefundableOffset    decimal.Decimal
}

// RegistrationUpdate carries a registration lifecycle change.
type RegistrationUpdate struct {
	ClaimID     int64
	Status      RegistrationStatus
	Reference   *string
	Date        *time.Time
	SubmittedAt *time.Time
}

// CreateClaim validates the income year and stores the claim with its
// derived registration deadline.
func (s *Service) CreateClaim(ctx context.Context, input CreateClaimInput) (Claim, error) {
	if !input.PeriodEnd.After(input.PeriodStart) {
		return Claim{}, fmt.Errorf("claims: create: %w", ErrPeriodInvalid)
	}
	if _, err := s.repo.GetCompany(ctx, input.CompanyID); err != nil {
		return Claim{}, err
	}
	deadline := offset.RegistrationDeadline(input.PeriodEnd)
	var claimID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateClaim(ctx, input, deadline)
		if err != nil {
			return err
		}
		claimID = id
		return nil
	})
	if err != nil {
		return Claim{}, err
	}
	return s.repo.GetClaim(ctx, claimID)
}

// RecordExpenditure appends a ledger entry and refreshes the claim's stored
// offset fields within the same transaction.
func (s *Service) RecordExpenditure(ctx context.Context, input RecordExpenditureInput) (Claim, error) {
	if input.AmountExTax.IsNegative() || input.TaxAmount.IsNegative() {
		return Claim{}, fmt.Errorf("claims: record expenditure: %w", ErrNegativeExpenditure)
	}
	if input.Type == ExpenditureRSP && (input.RSPRegistrationNumber == nil || *input.RSPRegistrationNumber == "") {
		return Claim{}, fmt.Errorf("claims: record expenditure: %w", ErrRSPNumberRequired)
	}
	claim, err := s.repo.GetClaim(ctx, input.ClaimID)
	if err != nil {
		return Claim{}, err
	}
	company, err := s.repo.GetCompany(ctx, claim.CompanyID)
	if err != nil {
		return Claim{}, err
	}

	// The ledger is re-read inside the transaction so concurrent
	// recordings cannot persist offset fields missing each other's rows.
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.CreateExpenditure(ctx, input); err != nil {
			return err
		}
		ledger, err := tx.ListExpenditures(ctx, claim.ID)
		if err != nil {
			return err
		}
		update, err := computeOffsetUpdate(claim.ID, company, ledger)
		if err != nil {
			return err
		}
		return tx.UpdateClaimOffset(ctx, update)
	})
	if err != nil {
		return Claim{}, err
	}
	return s.repo.GetClaim(ctx, claim.ID)
}

// RefreshOffset recalculates the offset fields from the current ledger.
// Used by the background refresh task and after bulk edits.
func (s *Service) RefreshOffset(ctx context.Context, claimID int64) (Claim, error) {
	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return Claim{}, err
	}
	company, err := s.repo.GetCompany(ctx, claim.CompanyID)
	if err != nil {
		return Claim{}, err
	}
	ledger, err := s.repo.ListExpenditures(ctx, claim.ID)
	if err != nil {
		return Claim{}, err
	}
	update, err := computeOffsetUpdate(claim.ID, company, ledger)
	if err != nil {
		return Claim{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateClaimOffset(ctx, update)
	})
	if err != nil {
		return Claim{}, err
	}
	return s.repo.GetClaim(ctx, claim.ID)
}

func computeOffsetUpdate(claimID int64, company Company, ledger []Expenditure) (OffsetUpdate, error) {
	var notional, total decimal.Decimal
	for _, e := range ledger {
		total = total.Add(e.AmountExTax)
		if e.Deductible() {
			notional = notional.Add(e.AmountExTax)
		}
	}
	turnover := decimal.Zero
	if company.AggregatedTurnover != nil {
		turnover = *company.AggregatedTurnover
	}
	res, err := offset.CalculateTaxOffset(notional, turnover, total)
	if err != nil {
		return OffsetUpdate{}, err
	}
	update := OffsetUpdate{
		ClaimID:                claimID,
		TotalNotionalDeduction: notional,
		OffsetType:             res.OffsetType,
	}
	if res.OffsetType == offset.Refundable {
		update.RefundableOffset = res.TotalOffset
	} else {
		update.NonRefundableOffset = res.TotalOffset
	}
	return update, nil
}

// SubmitRegistration moves the registration lifecycle forward and records
// the submission instant when entering SUBMITTED.
func (s *Service) SubmitRegistration(ctx context.Context, claimID int64, target RegistrationStatus) (Claim, error) {
	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return Claim{}, err
	}
	if err := ValidateRegistrationTransition(claim.RegistrationStatus, target); err != nil {
		return Claim{}, err
	}
	update := RegistrationUpdate{ClaimID: claimID, Status: target}
	if target == RegistrationSubmitted {
		now := s.now().UTC()
		update.SubmittedAt = &now
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRegistration(ctx, update)
	})
	if err != nil {
		return Claim{}, err
	}
	return s.repo.GetClaim(ctx, claimID)
}

// RecordRegistration stores the regulator's reference and date and marks the
// claim registered. The registration date may not precede submission.
func (s *Service) RecordRegistration(ctx context.Context, claimID int64, reference string, date time.Time) (Claim, error) {
	if reference == "" {
		return Claim{}, fmt.Errorf("claims: registration reference required: %w", shared.ErrInvalidInput)
	}
	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return Claim{}, err
	}
	if err := ValidateRegistrationTransition(claim.RegistrationStatus, RegistrationRegistered); err != nil {
		return Claim{}, err
	}
	if claim.RegistrationSubmittedAt != nil && date.Before(*claim.RegistrationSubmittedAt) {
		return Claim{}, ErrRegistrationDate
	}
	update := RegistrationUpdate{
		ClaimID:   claimID,
		Status:    RegistrationRegistered,
		Reference: &reference,
		Date:      &date,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRegistration(ctx, update)
	})
	if err != nil {
		return Claim{}, err
	}
	return s.repo.GetClaim(ctx, claimID)
}

// UpdateStatus moves the preparation lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, claimID int64, target ClaimStatus) (Claim, error) {
	claim, err := s.repo.GetClaim(ctx, claimID)
	if err != nil {
		return Claim{}, err
	}
	if err := ValidateClaimTransition(claim.Status, target); err != nil {
		return Claim{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateClaimStatus(ctx, claimID, target)
	})
	if err != nil {
		return Claim{}, err
	}
	return s.repo.GetClaim(ctx, claimID)
}
