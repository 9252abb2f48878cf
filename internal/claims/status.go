package claims

import (
	"fmt"

	"github.com/clearclaim/clearclaim/internal/shared"
)

// ErrInvalidTransition indicates a status change not allowed by policy.
var ErrInvalidTransition = fmt.Errorf("claims: status transition invalid: %w", shared.ErrConflict)

// ValidateRegistrationTransition checks registration lifecycle moves.
func ValidateRegistrationTransition(current, target RegistrationStatus) error {
	if current == target {
		return nil
	}
	switch current {
	case RegistrationNotStarted:
		if target == RegistrationDraft {
			return nil
		}
	case RegistrationDraft:
		if target == RegistrationSubmitted {
			return nil
		}
	case RegistrationSubmitted:
		if target == RegistrationRegistered || target == RegistrationRejected {
			return nil
		}
	case RegistrationRejected:
		// Rejected applications can be reworked and resubmitted.
		if target == RegistrationDraft {
			return nil
		}
	}
	return ErrInvalidTransition
}

// ValidateClaimTransition checks preparation lifecycle moves.
func ValidateClaimTransition(current, target ClaimStatus) error {
	if current == target {
		return nil
	}
	switch current {
	case ClaimNotStarted:
		if target == ClaimInProgress {
			return nil
		}
	case ClaimInProgress:
		if target == ClaimReadyForReview {
			return nil
		}
	case ClaimReadyForReview:
		if target == ClaimSubmitted || target == ClaimInProgress {
			return nil
		}
	case ClaimSubmitted:
		if target == ClaimCompleted {
			return nil
		}
	}
	return ErrInvalidTransition
}
