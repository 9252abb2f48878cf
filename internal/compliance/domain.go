// Package compliance evaluates a claim against the program's eligibility
// rules and aggregates the outcomes into a risk assessment.
package compliance

import (
	"time"

	"github.com/google/uuid"

	"github.com/clearclaim/clearclaim/internal/claims"
)

// CheckType identifies one of the compliance rules.
type CheckType string

const (
	CheckEntityEligibility      CheckType = "ENTITY_ELIGIBILITY"
	CheckRegistrationDeadline   CheckType = "REGISTRATION_DEADLINE"
	CheckExpenditureThreshold   CheckType = "EXPENDITURE_THRESHOLD"
	CheckAssociatePayment       CheckType = "ASSOCIATE_PAYMENT"
	CheckOverseasFinding        CheckType = "OVERSEAS_FINDING"
	CheckDocumentation          CheckType = "DOCUMENTATION_COMPLETENESS"
	CheckActivityEligibility    CheckType = "ACTIVITY_ELIGIBILITY"
	CheckExpenditureConsistency CheckType = "EXPENDITURE_CONSISTENCY"
)

// CheckStatus is the outcome of one rule.
type CheckStatus string

const (
	StatusPass          CheckStatus = "PASS"
	StatusWarning       CheckStatus = "WARNING"
	StatusFail          CheckStatus = "FAIL"
	StatusNotApplicable CheckStatus = "NOT_APPLICABLE"
)

// RiskLevel classifies the aggregate risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Risk weights and level breakpoints. Kept as named constants so a
// recalibration is a one-line change.
const (
	failWeight    = 30
	warningWeight = 10

	riskHighFloor   = 60
	riskMediumFloor = 30
)

// Check is one persisted evaluation result for a claim.
type Check struct {
	ID        int64          `json:"id"`
	ClaimID   int64          `json:"claimId"`
	RunID     uuid.UUID      `json:"runId"`
	Type      CheckType      `json:"type"`
	Status    CheckStatus    `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Assessment is the aggregate result of one evaluation run.
type Assessment struct {
	ClaimID     int64     `json:"claimId"`
	RunID       uuid.UUID `json:"runId"`
	Checks      []Check   `json:"checks"`
	RiskScore   int       `json:"riskScore"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Graph bundles everything the checks read for one claim. Each check is a
// pure function of this snapshot, so checks stay order-independent.
type Graph struct {
	Claim        claims.Claim
	Company      claims.Company
	Expenditures []claims.Expenditure
	Activities   []claims.Activity
}

// ScoreChecks folds check outcomes into a risk score and level. Passing
// checks contribute nothing; failures weigh three times a warning.
func ScoreChecks(checks []Check) (int, RiskLevel) {
	score := 0
	for _, c := range checks {
		switch c.Status {
		case StatusFail:
			score += failWeight
		case StatusWarning:
			score += warningWeight
		}
	}
	switch {
	case score >= riskHighFloor:
		return score, RiskHigh
	case score >= riskMediumFloor:
		return score, RiskMedium
	default:
		return score, RiskLow
	}
}
