package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clearclaim/clearclaim/internal/offset"
	"github.com/clearclaim/clearclaim/internal/platform/db"
)

// PGRepository provides claim persistence backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PGRepository)(nil)

// NewRepository constructs a claims repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Money columns are read and written as text so no binary floating point
// ever touches an amount.
const claimColumns = `
c.id, c.company_id, c.period_start, c.period_end,
c.registration_status, c.registration_deadline, c.registration_submitted_at,
c.registration_reference, c.registration_date, c.status,
c.total_notional_deduction::text, c.offset_type,
c.refundable_offset::text, c.non_refundable_offset::text,
c.created_at, c.updated_at`

// WithTx runs fn against transactional write operations.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("claims repo not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

// GetClaim fetches one claim by id.
func (r *PGRepository) GetClaim(ctx context.Context, id int64) (Claim, error) {
	if r == nil || r.pool == nil {
		return Claim{}, fmt.Errorf("claims repo not initialised")
	}
	query := `SELECT ` + claimColumns + ` FROM claims c WHERE c.id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Claim{}, ErrClaimNotFound
	}
	return claim, err
}

// GetCompany fetches a company profile.
func (r *PGRepository) GetCompany(ctx context.Context, id int64) (Company, error) {
	if r == nil || r.pool == nil {
		return Company{}, fmt.Errorf("claims repo not initialised")
	}
	const query = `
SELECT id, org_id, legal_name, trading_name, tax_identifier, incorporation_type,
       contact_email, aggregated_turnover::text, exempt_controlled, consolidated_group,
       created_at, updated_at
FROM companies WHERE id = $1`
	return scanCompany(r.pool.QueryRow(ctx, query, id))
}

// GetCompanyForClaim fetches the company owning a claim.
func (r *PGRepository) GetCompanyForClaim(ctx context.Context, claimID int64) (Company, error) {
	if r == nil || r.pool == nil {
		return Company{}, fmt.Errorf("claims repo not initialised")
	}
	const query = `
SELECT co.id, co.org_id, co.legal_name, co.trading_name, co.tax_identifier, co.incorporation_type,
       co.contact_email, co.aggregated_turnover::text, co.exempt_controlled, co.consolidated_group,
       co.created_at, co.updated_at
FROM companies co
JOIN claims c ON c.company_id = co.id
WHERE c.id = $1`
	return scanCompany(r.pool.QueryRow(ctx, query, claimID))
}

// querier abstracts pool and transaction reads.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ListExpenditures returns the full ledger for a claim, oldest first.
func (r *PGRepository) ListExpenditures(ctx context.Context, claimID int64) ([]Expenditure, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("claims repo not initialised")
	}
	return listExpenditures(ctx, r.pool, claimID)
}

func listExpenditures(ctx context.Context, q querier, claimID int64) ([]Expenditure, error) {
	const query = `
SELECT id, claim_id, project_id, type, description,
       amount_ex_tax::text, tax_amount::text,
       paid, payment_date, associate, overseas, rsp_registration_number,
       created_at, updated_at
FROM expenditures
WHERE claim_id = $1
ORDER BY id`
	rows, err := q.Query(ctx, query, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expenditure
	for rows.Next() {
		var e Expenditure
		var amount, tax string
		if err := rows.Scan(
			&e.ID, &e.ClaimID, &e.ProjectID, &e.Type, &e.Description,
			&amount, &tax,
			&e.Paid, &e.PaymentDate, &e.Associate, &e.Overseas, &e.RSPRegistrationNumber,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if e.AmountExTax, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("claims: expenditure %d amount: %w", e.ID, err)
		}
		if e.TaxAmount, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("claims: expenditure %d tax: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListActivities returns a claim's activities joined through its projects.
func (r *PGRepository) ListActivities(ctx context.Context, claimID int64) ([]Activity, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("claims repo not initialised")
	}
	const query = `
SELECT a.id, a.project_id, a.type, a.name, a.description,
       a.hypothesis, a.experiment, a.observation, a.evaluation, a.conclusion,
       a.core_activity_id, a.dominant_purpose_justification,
       a.overseas, a.overseas_finding_reference,
       a.created_at, a.updated_at
FROM activities a
JOIN projects p ON p.id = a.project_id
WHERE p.claim_id = $1
ORDER BY a.id`
	rows, err := r.pool.Query(ctx, query, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(
			&a.ID, &a.ProjectID, &a.Type, &a.Name, &a.Description,
			&a.Hypothesis, &a.Experiment, &a.Observation, &a.Evaluation, &a.Conclusion,
			&a.CoreActivityID, &a.DominantPurposeJustification,
			&a.Overseas, &a.OverseasFindingReference,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActiveClaimIDs lists claims not yet completed, for background sweeps.
func (r *PGRepository) ActiveClaimIDs(ctx context.Context) ([]int64, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("claims repo not initialised")
	}
	const query = `SELECT id FROM claims WHERE status <> 'COMPLETED' ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimsNearingDeadline lists unregistered claims due to register by the
// cut-off, together with the contact details the reminder needs.
func (r *PGRepository) ClaimsNearingDeadline(ctx context.Context, by time.Time) ([]DeadlineRow, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("claims repo not initialised")
	}
	const query = `
SELECT c.id, co.legal_name, co.contact_email, c.registration_deadline
FROM claims c
JOIN companies co ON co.id = c.company_id
WHERE c.registration_status NOT IN ('REGISTERED', 'REJECTED')
  AND c.registration_deadline IS NOT NULL
  AND c.registration_deadline <= $1
ORDER BY c.registration_deadline`
	rows, err := r.pool.Query(ctx, query, by)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DeadlineRow
	for rows.Next() {
		var d DeadlineRow
		if err := rows.Scan(&d.ClaimID, &d.CompanyName, &d.ContactEmail, &d.Deadline); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

var _ TxRepository = (*pgTxRepository)(nil)

func (t *pgTxRepository) ListExpenditures(ctx context.Context, claimID int64) ([]Expenditure, error) {
	return listExpenditures(ctx, t.tx, claimID)
}

func (t *pgTxRepository) CreateClaim(ctx context.Context, input CreateClaimInput, deadline time.Time) (int64, error) {
	const query = `
INSERT INTO claims (company_id, period_start, period_end, registration_status, registration_deadline, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		input.CompanyID, input.PeriodStart, input.PeriodEnd,
		RegistrationNotStarted, deadline, ClaimNotStarted,
	).Scan(&id)
	return id, err
}

func (t *pgTxRepository) CreateExpenditure(ctx context.Context, input RecordExpenditureInput) (int64, error) {
	const query = `
INSERT INTO expenditures (claim_id, project_id, type, description, amount_ex_tax, tax_amount,
                          paid, payment_date, associate, overseas, rsp_registration_number,
                          created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, now(), now())
RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		input.ClaimID, input.ProjectID, input.Type, input.Description,
		input.AmountExTax.String(), input.TaxAmount.String(),
		input.Paid, input.PaymentDate, input.Associate, input.Overseas, input.RSPRegistrationNumber,
	).Scan(&id)
	return id, err
}

func (t *pgTxRepository) UpdateClaimOffset(ctx context.Context, update OffsetUpdate) error {
	const query = `
UPDATE claims
SET total_notional_deduction = $2::numeric,
    offset_type = $3,
    refundable_offset = $4::numeric,
    non_refundable_offset = $5::numeric,
    updated_at = now()
WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query,
		update.ClaimID,
		update.TotalNotionalDeduction.String(),
		string(update.OffsetType),
		update.RefundableOffset.String(),
		update.NonRefundableOffset.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimNotFound
	}
	return nil
}

func (t *pgTxRepository) UpdateRegistration(ctx context.Context, update RegistrationUpdate) error {
	const query = `
UPDATE claims
SET registration_status = $2,
    registration_reference = COALESCE($3, registration_reference),
    registration_date = COALESCE($4, registration_date),
    registration_submitted_at = COALESCE($5, registration_submitted_at),
    updated_at = now()
WHERE id = $1`
	tag, err := t.tx.Exec(ctx, query,
		update.ClaimID, update.Status, update.Reference, update.Date, update.SubmittedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimNotFound
	}
	return nil
}

func (t *pgTxRepository) UpdateClaimStatus(ctx context.Context, claimID int64, status ClaimStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE claims SET status = $2, updated_at = now() WHERE id = $1`, claimID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimNotFound
	}
	return nil
}

func scanClaim(row pgx.Row) (Claim, error) {
	var c Claim
	var notional, refundable, nonRefundable *string
	var offsetType *string
	if err := row.Scan(
		&c.ID, &c.CompanyID, &c.PeriodStart, &c.PeriodEnd,
		&c.RegistrationStatus, &c.RegistrationDeadline, &c.RegistrationSubmittedAt,
		&c.RegistrationReference, &c.RegistrationDate, &c.Status,
		&notional, &offsetType,
		&refundable, &nonRefundable,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return Claim{}, err
	}
	var err error
	if c.TotalNotionalDeduction, err = parseOptionalDecimal(notional); err != nil {
		return Claim{}, fmt.Errorf("claims: claim %d notional deduction: %w", c.ID, err)
	}
	if c.RefundableOffset, err = parseOptionalDecimal(refundable); err != nil {
		return Claim{}, fmt.Errorf("claims: claim %d refundable offset: %w", c.ID, err)
	}
	if c.NonRefundableOffset, err = parseOptionalDecimal(nonRefundable); err != nil {
		return Claim{}, fmt.Errorf("claims: claim %d non-refundable offset: %w", c.ID, err)
	}
	if offsetType != nil {
		ot := offset.Type(*offsetType)
		c.OffsetType = &ot
	}
	return c, nil
}

func scanCompany(row pgx.Row) (Company, error) {
	var co Company
	var turnover *string
	if err := row.Scan(
		&co.ID, &co.OrgID, &co.LegalName, &co.TradingName, &co.TaxIdentifier, &co.IncorporationType,
		&co.ContactEmail, &turnover, &co.ExemptControlled, &co.ConsolidatedGroup,
		&co.CreatedAt, &co.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, err
	}
	var err error
	if co.AggregatedTurnover, err = parseOptionalDecimal(turnover); err != nil {
		return Company{}, fmt.Errorf("claims: company %d turnover: %w", co.ID, err)
	}
	return co, nil
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
