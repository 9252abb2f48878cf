package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/clearclaim/clearclaim/internal/claims"
	"github.com/clearclaim/clearclaim/internal/compliance"
)

// ComplianceSweepJob re-runs the compliance rule set across active claims.
type ComplianceSweepJob struct {
	Repo      claims.Repository
	Evaluator *compliance.Evaluator
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewComplianceSweepJob initialises the sweep handler.
func NewComplianceSweepJob(repo claims.Repository, evaluator *compliance.Evaluator, logger *slog.Logger) *ComplianceSweepJob {
	return &ComplianceSweepJob{
		Repo:      repo,
		Evaluator: evaluator,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep with bounded concurrency. Individual claim
// failures are logged and counted but do not abort the sweep.
func (j *ComplianceSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil || j.Evaluator == nil {
		return errors.New("compliance sweep: handler not configured")
	}
	var payload ComplianceSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Concurrency <= 0 {
		payload.Concurrency = 4
	}

	start := j.now()
	logger := j.logger()
	logger.Info("starting compliance sweep", slog.Int("concurrency", payload.Concurrency))

	claimIDs, err := j.Repo.ActiveClaimIDs(ctx)
	if err != nil {
		logger.Error("list active claims", slog.Any("error", err))
		return err
	}

	var failed int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(payload.Concurrency)
	results := make(chan error, len(claimIDs))
	for _, claimID := range claimIDs {
		claimID := claimID
		g.Go(func() error {
			if _, err := j.Evaluator.Run(gctx, claimID); err != nil {
				logger.Warn("sweep claim", slog.Int64("claim_id", claimID), slog.Any("error", err))
				results <- err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(results)
	for range results {
		failed++
	}

	logger.Info("completed compliance sweep",
		slog.Int("claims", len(claimIDs)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ComplianceSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskComplianceSweep))
	}
	return slog.Default().With(slog.String("job", TaskComplianceSweep))
}

func (j *ComplianceSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
