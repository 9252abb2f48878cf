package compliance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Repository defines the persistence the evaluator needs.
type Repository interface {
	// LoadGraph returns everything the checks read for one claim. Missing
	// claims surface as claims.ErrClaimNotFound.
	LoadGraph(ctx context.Context, claimID int64) (Graph, error)
	// ReplaceChecks atomically deletes the claim's previous check set and
	// inserts the new one. A concurrent reader never observes a claim with
	// zero checks once a first run has completed.
	ReplaceChecks(ctx context.Context, claimID int64, checks []Check) ([]Check, error)
	// LatestChecks returns the persisted checks from the most recent run.
	LatestChecks(ctx context.Context, claimID int64) ([]Check, error)
}

// Evaluator runs the full rule set for a claim and persists the outcome.
type Evaluator struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
	group singleflight.Group
}

// NewEvaluator constructs an evaluator. The cache is optional.
func NewEvaluator(repo Repository, cache *Cache) *Evaluator {
	return &Evaluator{repo: repo, cache: cache, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (e *Evaluator) WithClock(clock func() time.Time) {
	if clock != nil {
		e.now = clock
	}
}

// Run evaluates all checks for the claim, replaces the persisted set and
// returns the aggregate assessment. Concurrent runs for the same claim are
// coalesced so one run's rows are never partially overwritten by another.
func (e *Evaluator) Run(ctx context.Context, claimID int64) (Assessment, error) {
	if e == nil || e.repo == nil {
		return Assessment{}, fmt.Errorf("compliance evaluator not initialised")
	}
	v, err, _ := e.group.Do(strconv.FormatInt(claimID, 10), func() (any, error) {
		return e.run(ctx, claimID)
	})
	if err != nil {
		return Assessment{}, err
	}
	return v.(Assessment), nil
}

func (e *Evaluator) run(ctx context.Context, claimID int64) (Assessment, error) {
	graph, err := e.repo.LoadGraph(ctx, claimID)
	if err != nil {
		return Assessment{}, fmt.Errorf("compliance: load claim %d: %w", claimID, err)
	}

	runID := uuid.New()
	evaluatedAt := e.now().UTC()
	checks := make([]Check, 0, CheckCount)
	for _, entry := range registry {
		outcome := runChecked(entry, graph, evaluatedAt)
		checks = append(checks, Check{
			ClaimID:   claimID,
			RunID:     runID,
			Type:      entry.Type,
			Status:    outcome.Status,
			Message:   outcome.Message,
			Details:   outcome.Details,
			CreatedAt: evaluatedAt,
		})
	}

	persisted, err := e.repo.ReplaceChecks(ctx, claimID, checks)
	if err != nil {
		// The cached assessment may no longer match what is persisted.
		if e.cache != nil {
			e.cache.Invalidate(ctx, claimID)
		}
		return Assessment{}, fmt.Errorf("compliance: persist checks for claim %d: %w", claimID, err)
	}

	score, level := ScoreChecks(persisted)
	assessment := Assessment{
		ClaimID:     claimID,
		RunID:       runID,
		Checks:      persisted,
		RiskScore:   score,
		RiskLevel:   level,
		EvaluatedAt: evaluatedAt,
	}
	if e.cache != nil {
		e.cache.Put(ctx, assessment)
	}
	return assessment, nil
}

// runChecked degrades a panicking rule to FAIL instead of aborting the run;
// the evaluator always produces a complete risk picture.
func runChecked(entry registryEntry, graph Graph, now time.Time) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{
				Status:  StatusFail,
				Message: fmt.Sprintf("Check could not be evaluated against the recorded data: %v.", r),
			}
		}
	}()
	return entry.Run(graph, now)
}

// Latest returns the most recent persisted assessment, preferring the cache.
func (e *Evaluator) Latest(ctx context.Context, claimID int64) (Assessment, error) {
	if e == nil || e.repo == nil {
		return Assessment{}, fmt.Errorf("compliance evaluator not initialised")
	}
	if e.cache != nil {
		if assessment, ok := e.cache.Get(ctx, claimID); ok {
			return assessment, nil
		}
	}
	checks, err := e.repo.LatestChecks(ctx, claimID)
	if err != nil {
		return Assessment{}, err
	}
	score, level := ScoreChecks(checks)
	assessment := Assessment{
		ClaimID:   claimID,
		Checks:    checks,
		RiskScore: score,
		RiskLevel: level,
	}
	if len(checks) > 0 {
		assessment.RunID = checks[0].RunID
		assessment.EvaluatedAt = checks[0].CreatedAt
	}
	return assessment, nil
}
