package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearclaim/clearclaim/internal/claims"
	"github.com/clearclaim/clearclaim/internal/offset"
)

// Outcome is what a single rule produces before persistence metadata is
// attached.
type Outcome struct {
	Status  CheckStatus
	Message string
	Details map[string]any
}

// CheckFunc evaluates one rule against a loaded claim graph. The evaluation
// instant is injected so deadline rules are deterministic under test.
type CheckFunc func(Graph, time.Time) Outcome

type registryEntry struct {
	Type CheckType
	Run  CheckFunc
}

// registry is the fixed, ordered rule set. Adding a rule means appending an
// entry here; nothing else changes.
var registry = []registryEntry{
	{CheckEntityEligibility, checkEntityEligibility},
	{CheckRegistrationDeadline, checkRegistrationDeadline},
	{CheckExpenditureThreshold, checkExpenditureThreshold},
	{CheckAssociatePayment, checkAssociatePayment},
	{CheckOverseasFinding, checkOverseasFinding},
	{CheckDocumentation, checkDocumentation},
	{CheckActivityEligibility, checkActivityEligibility},
	{CheckExpenditureConsistency, checkExpenditureConsistency},
}

// CheckCount is the number of rules every run evaluates.
var CheckCount = len(registry)

func checkEntityEligibility(g Graph, _ time.Time) Outcome {
	if g.Company.ExemptControlled {
		return Outcome{
			Status:  StatusWarning,
			Message: "Company is controlled by tax exempt entities; eligibility for the incentive may be restricted.",
		}
	}
	return Outcome{Status: StatusPass, Message: "Company structure is eligible for the incentive."}
}

func checkRegistrationDeadline(g Graph, now time.Time) Outcome {
	deadline := offset.RegistrationDeadline(g.Claim.PeriodEnd)
	if g.Claim.RegistrationDeadline != nil {
		deadline = *g.Claim.RegistrationDeadline
	}
	details := map[string]any{"deadline": deadline.Format("2006-01-02")}
	if g.Claim.Registered(now) {
		return Outcome{Status: StatusPass, Message: "Claim is registered.", Details: details}
	}
	if now.After(deadline) {
		return Outcome{
			Status:  StatusFail,
			Message: fmt.Sprintf("Registration deadline %s has passed and the claim is not registered.", deadline.Format("2 January 2006")),
			Details: details,
		}
	}
	return Outcome{
		Status:  StatusPass,
		Message: fmt.Sprintf("Registration deadline %s has not yet passed.", deadline.Format("2 January 2006")),
		Details: details,
	}
}

func checkExpenditureThreshold(g Graph, _ time.Time) Outcome {
	var total decimal.Decimal
	for _, e := range g.Expenditures {
		total = total.Add(e.AmountExTax)
	}
	res := offset.MeetsMinimumThreshold(total)
	details := map[string]any{
		"totalExpenditure": res.TotalExpenditure.String(),
		"minimum":          res.Minimum.String(),
	}
	if res.Eligible {
		return Outcome{
			Status:  StatusPass,
			Message: fmt.Sprintf("Total R&D expenditure of $%s meets the minimum spend threshold.", total.StringFixed(2)),
			Details: details,
		}
	}
	details["shortfall"] = res.Shortfall.String()
	return Outcome{
		Status:  StatusFail,
		Message: fmt.Sprintf("Total R&D expenditure of $%s is below the $%s minimum spend threshold.", total.StringFixed(2), res.Minimum.StringFixed(0)),
		Details: details,
	}
}

func checkAssociatePayment(g Graph, _ time.Time) Outcome {
	unpaid := 0
	for _, e := range g.Expenditures {
		if e.AssociateExpense() && !e.Paid {
			unpaid++
		}
	}
	if unpaid > 0 {
		return Outcome{
			Status:  StatusFail,
			Message: fmt.Sprintf("%d associate expenditure record(s) are unpaid; associate amounts are only deductible once paid.", unpaid),
			Details: map[string]any{"unpaidCount": unpaid},
		}
	}
	return Outcome{Status: StatusPass, Message: "No unpaid associate expenditure."}
}

func checkOverseasFinding(g Graph, _ time.Time) Outcome {
	var missing []string
	findings := 0
	for _, a := range g.Activities {
		if !a.Overseas {
			continue
		}
		if a.OverseasFindingReference == nil || strings.TrimSpace(*a.OverseasFindingReference) == "" {
			missing = append(missing, a.Name)
		} else {
			findings++
		}
	}
	overseasSpend := 0
	for _, e := range g.Expenditures {
		if e.Overseas {
			overseasSpend++
		}
	}
	if len(missing) > 0 {
		return Outcome{
			Status:  StatusFail,
			Message: fmt.Sprintf("Overseas activities without an overseas finding: %s.", strings.Join(missing, ", ")),
			Details: map[string]any{"activities": missing},
		}
	}
	if overseasSpend > 0 && findings == 0 {
		return Outcome{
			Status:  StatusFail,
			Message: fmt.Sprintf("%d overseas expenditure record(s) exist but no activity carries an overseas finding reference.", overseasSpend),
			Details: map[string]any{"overseasExpenditure": overseasSpend},
		}
	}
	if overseasSpend == 0 && findings == 0 {
		return Outcome{Status: StatusPass, Message: "No overseas activities or expenditure."}
	}
	return Outcome{Status: StatusPass, Message: "All overseas items are covered by an overseas finding."}
}

// Documentation quality bar: a core activity with fewer populated
// scientific-method fields, or less combined text, is flagged as thin.
const (
	minDocumentedFields = 5
	minDocumentedChars  = 100
)

func checkDocumentation(g Graph, _ time.Time) Outcome {
	cores := 0
	undocumented := 0
	thin := 0
	for _, a := range g.Activities {
		if a.Type != claims.ActivityCore {
			continue
		}
		cores++
		fields := []string{a.Hypothesis, a.Experiment, a.Observation, a.Evaluation, a.Conclusion}
		populated, length := 0, 0
		for _, f := range fields {
			f = strings.TrimSpace(f)
			if f != "" {
				populated++
				length += len(f)
			}
		}
		switch {
		case populated == 0 && strings.TrimSpace(a.Description) == "":
			undocumented++
		case populated < minDocumentedFields || length < minDocumentedChars:
			thin++
		}
	}
	details := map[string]any{"coreActivities": cores, "undocumented": undocumented, "thin": thin}
	if cores == 0 || undocumented > 0 {
		return Outcome{
			Status:  StatusFail,
			Message: "Required R&D activity documentation is missing.",
			Details: details,
		}
	}
	if thin > 0 {
		return Outcome{
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d core activity(ies) have documentation below the expected level of detail.", thin),
			Details: details,
		}
	}
	return Outcome{Status: StatusPass, Message: "Core activity documentation is complete.", Details: details}
}

func checkActivityEligibility(g Graph, _ time.Time) Outcome {
	cores := 0
	unlinked := 0
	for _, a := range g.Activities {
		if a.Type == claims.ActivityCore {
			cores++
		} else if a.Supporting() && a.CoreActivityID == nil {
			unlinked++
		}
	}
	if cores == 0 {
		return Outcome{
			Status:  StatusFail,
			Message: "The claim has no core R&D activities.",
			Details: map[string]any{"coreActivities": 0},
		}
	}
	if unlinked > 0 {
		return Outcome{
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d supporting activity(ies) are not linked to a core activity.", unlinked),
			Details: map[string]any{"coreActivities": cores, "unlinkedSupporting": unlinked},
		}
	}
	return Outcome{
		Status:  StatusPass,
		Message: "Core activities exist and all supporting activities are linked.",
		Details: map[string]any{"coreActivities": cores},
	}
}

func checkExpenditureConsistency(g Graph, _ time.Time) Outcome {
	var problems []string
	for _, e := range g.Expenditures {
		if e.TaxAmount.IsNegative() {
			problems = append(problems, fmt.Sprintf("expenditure %d has a negative tax amount", e.ID))
		}
		if e.AmountExTax.IsNegative() {
			problems = append(problems, fmt.Sprintf("expenditure %d has a negative amount", e.ID))
		}
		if e.Type == claims.ExpenditureRSP && (e.RSPRegistrationNumber == nil || strings.TrimSpace(*e.RSPRegistrationNumber) == "") {
			problems = append(problems, fmt.Sprintf("RSP expenditure %d is missing an RSP registration number", e.ID))
		}
	}
	if len(problems) > 0 {
		return Outcome{
			Status:  StatusFail,
			Message: "Expenditure records are inconsistent: " + strings.Join(problems, "; ") + ".",
			Details: map[string]any{"problems": problems},
		}
	}
	return Outcome{Status: StatusPass, Message: "Expenditure records are internally consistent."}
}
