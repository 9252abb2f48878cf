package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/clearclaim/clearclaim/internal/claims"
	"github.com/clearclaim/clearclaim/internal/shared"
)

// OffsetRefreshJob recalculates a claim's stored offset fields from its
// current expenditure ledger.
type OffsetRefreshJob struct {
	Service *claims.Service
	Logger  *slog.Logger
}

// NewOffsetRefreshJob initialises the refresh handler.
func NewOffsetRefreshJob(service *claims.Service, logger *slog.Logger) *OffsetRefreshJob {
	return &OffsetRefreshJob{Service: service, Logger: logger}
}

// Handle executes the refresh. A claim that has disappeared is not retried.
func (j *OffsetRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("offset refresh: handler not configured")
	}
	var payload OffsetRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	claim, err := j.Service.RefreshOffset(ctx, payload.ClaimID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			j.logger().Warn("claim gone, skipping refresh", slog.Int64("claim_id", payload.ClaimID))
			return asynq.SkipRetry
		}
		j.logger().Error("refresh offset", slog.Int64("claim_id", payload.ClaimID), slog.Any("error", err))
		return err
	}
	j.logger().Info("offset refreshed",
		slog.Int64("claim_id", claim.ID),
		slog.String("registration_status", string(claim.RegistrationStatus)),
	)
	return nil
}

func (j *OffsetRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOffsetRefresh))
	}
	return slog.Default().With(slog.String("job", TaskOffsetRefresh))
}
