package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clearclaim/clearclaim/internal/claims"
)

// DeadlineScanJob finds unregistered claims approaching their registration
// cut-off and enqueues reminder emails.
type DeadlineScanJob struct {
	Repo   claims.Repository
	Client *Client
	Logger *slog.Logger
	clock  func() time.Time
}

// NewDeadlineScanJob initialises the scan handler.
func NewDeadlineScanJob(repo claims.Repository, client *Client, logger *slog.Logger) *DeadlineScanJob {
	return &DeadlineScanJob{
		Repo:   repo,
		Client: client,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan. Claims with no contact email are logged and
// skipped.
func (j *DeadlineScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("deadline scan: handler not configured")
	}
	var payload DeadlineScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Window <= 0 {
		payload.Window = 30 * 24 * time.Hour
	}

	now := j.now()
	cutoff := now.Add(payload.Window)
	logger := j.logger()
	logger.Info("starting deadline scan", slog.Time("cutoff", cutoff))

	rows, err := j.Repo.ClaimsNearingDeadline(ctx, cutoff)
	if err != nil {
		logger.Error("list claims nearing deadline", slog.Any("error", err))
		return err
	}

	var sent int
	for _, row := range rows {
		if row.ContactEmail == "" {
			logger.Warn("no contact email", slog.Int64("claim_id", row.ClaimID))
			continue
		}
		if j.Client == nil {
			continue
		}
		remaining := int(row.Deadline.Sub(now) / (24 * time.Hour))
		_, err := j.Client.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      row.ContactEmail,
			Subject: fmt.Sprintf("R&D registration deadline %s", row.Deadline.Format("2006-01-02")),
			Body: fmt.Sprintf(
				"The R&D tax incentive registration for %s is due by %s (%d days remaining).",
				row.CompanyName, row.Deadline.Format("2 January 2006"), remaining,
			),
		})
		if err != nil {
			logger.Warn("enqueue reminder", slog.Int64("claim_id", row.ClaimID), slog.Any("error", err))
			continue
		}
		sent++
	}

	logger.Info("completed deadline scan",
		slog.Int("claims", len(rows)),
		slog.Int("reminders", sent),
	)
	return nil
}

func (j *DeadlineScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDeadlineScan))
	}
	return slog.Default().With(slog.String("job", TaskDeadlineScan))
}

func (j *DeadlineScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
