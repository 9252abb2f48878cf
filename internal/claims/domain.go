// Package claims holds the claim-scoped domain records: companies, income
// year applications, expenditure ledgers and documented R&D activities.
package claims

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearclaim/clearclaim/internal/offset"
)

// RegistrationStatus tracks a claim through the regulator's registration
// lifecycle.
type RegistrationStatus string

const (
	RegistrationNotStarted RegistrationStatus = "NOT_STARTED"
	RegistrationDraft      RegistrationStatus = "DRAFT"
	RegistrationSubmitted  RegistrationStatus = "SUBMITTED"
	RegistrationRegistered RegistrationStatus = "REGISTERED"
	RegistrationRejected   RegistrationStatus = "REJECTED"
)

// ClaimStatus tracks internal claim preparation, independent of registration.
type ClaimStatus string

const (
	ClaimNotStarted     ClaimStatus = "NOT_STARTED"
	ClaimInProgress     ClaimStatus = "IN_PROGRESS"
	ClaimReadyForReview ClaimStatus = "READY_FOR_REVIEW"
	ClaimSubmitted      ClaimStatus = "SUBMITTED"
	ClaimCompleted      ClaimStatus = "COMPLETED"
)

// Company is the legal entity owning claims. Identity fields are immutable
// once created; financial and classification fields may change.
type Company struct {
	ID                 int64
	OrgID              int64
	LegalName          string
	TradingName        string
	TaxIdentifier      string
	IncorporationType  string
	ContactEmail       string
	AggregatedTurnover *decimal.Decimal
	ExemptControlled   bool
	ConsolidatedGroup  bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Claim is one income year application for a company.
type Claim struct {
	ID                      int64
	CompanyID               int64
	PeriodStart             time.Time
	PeriodEnd               time.Time
	RegistrationStatus      RegistrationStatus
	RegistrationDeadline    *time.Time
	RegistrationSubmittedAt *time.Time
	RegistrationReference   *string
	RegistrationDate        *time.Time
	Status                  ClaimStatus
	TotalNotionalDeduction  *decimal.Decimal
	OffsetType              *offset.Type
	RefundableOffset        *decimal.Decimal
	NonRefundableOffset     *decimal.Decimal
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Registered reports whether the claim is genuinely registered as of now:
// the status must say so and any recorded registration date must not be in
// the future.
func (c Claim) Registered(now time.Time) bool {
	if c.RegistrationStatus != RegistrationRegistered {
		return false
	}
	if c.RegistrationDate != nil && c.RegistrationDate.After(now) {
		return false
	}
	return true
}

// ExpenditureType enumerates the ledger categories.
type ExpenditureType string

const (
	ExpenditureRSP          ExpenditureType = "RSP_CONTRACTED"
	ExpenditureContract     ExpenditureType = "CONTRACT_NON_RSP"
	ExpenditureSalary       ExpenditureType = "SALARY"
	ExpenditureFeedstock    ExpenditureType = "FEEDSTOCK_INPUT"
	ExpenditureAssociate    ExpenditureType = "ASSOCIATE_PAID"
	ExpenditureAssetDecline ExpenditureType = "ASSET_DECLINE"
	ExpenditureBalancingAdj ExpenditureType = "BALANCING_ADJUSTMENT"
	ExpenditureCRC          ExpenditureType = "CRC_CONTRIBUTION"
	ExpenditureOther        ExpenditureType = "OTHER"
)

// Expenditure is a claim-scoped money record, optionally tagged to a project.
type Expenditure struct {
	ID                    int64
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
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AssociateExpense reports whether the row is subject to the paid-before-
// deductible rule for associates.
func (e Expenditure) AssociateExpense() bool {
	return e.Associate || e.Type == ExpenditureAssociate
}

// Deductible reports whether the row counts towards notional deductions.
// Associate expenditure only becomes deductible once paid.
func (e Expenditure) Deductible() bool {
	if e.AssociateExpense() {
		return e.Paid
	}
	return true
}

// Project groups activities under a claim.
type Project struct {
	ID      int64
	ClaimID int64
	Name    string
}

// ActivityType enumerates R&D activity classifications.
type ActivityType string

const (
	ActivityCore               ActivityType = "CORE"
	ActivitySupportingDirect   ActivityType = "SUPPORTING_DIRECT"
	ActivitySupportingDominant ActivityType = "SUPPORTING_DOMINANT_PURPOSE"
)

// Activity is a documented R&D activity, claim-scoped via its project.
type Activity struct {
	ID                           int64
	ProjectID                    int64
	Type                         ActivityType
	Name                         string
	Description                  string
	Hypothesis                   string
	Experiment                   string
	Observation                  string
	Evaluation                   string
	Conclusion                   string
	CoreActivityID               *int64
	DominantPurposeJustification string
	Overseas                     bool
	OverseasFindingReference     *string
	CreatedAt                    time.Time
	UpdatedAt                    time.Time
}

// Supporting reports whether the activity must link to a core activity.
func (a Activity) Supporting() bool {
	return a.Type == ActivitySupportingDirect || a.Type == ActivitySupportingDominant
}
