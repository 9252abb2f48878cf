package compliance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearclaim/clearclaim/internal/claims"
	"github.com/clearclaim/clearclaim/internal/platform/db"
)

// PGRepository provides compliance persistence backed by PostgreSQL. Graph
// reads are delegated to the claims repository so the SQL lives in one place.
type PGRepository struct {
	pool   *pgxpool.Pool
	claims *claims.PGRepository
}

var _ Repository = (*PGRepository)(nil)

// NewRepository constructs a compliance repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, claims: claims.NewRepository(pool)}
}

// LoadGraph loads the claim with its company, ledger and activities.
func (r *PGRepository) LoadGraph(ctx context.Context, claimID int64) (Graph, error) {
	if r == nil || r.pool == nil {
		return Graph{}, fmt.Errorf("compliance repo not initialised")
	}
	claim, err := r.claims.GetClaim(ctx, claimID)
	if err != nil {
		return Graph{}, err
	}
	company, err := r.claims.GetCompanyForClaim(ctx, claimID)
	if err != nil {
		return Graph{}, err
	}
	expenditures, err := r.claims.ListExpenditures(ctx, claimID)
	if err != nil {
		return Graph{}, err
	}
	activities, err := r.claims.ListActivities(ctx, claimID)
	if err != nil {
		return Graph{}, err
	}
	return Graph{
		Claim:        claim,
		Company:      company,
		Expenditures: expenditures,
		Activities:   activities,
	}, nil
}

// ReplaceChecks swaps the claim's check set inside one transaction.
func (r *PGRepository) ReplaceChecks(ctx context.Context, claimID int64, checks []Check) ([]Check, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("compliance repo not initialised")
	}
	out := make([]Check, len(checks))
	copy(out, checks)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM compliance_checks WHERE claim_id = $1`, claimID); err != nil {
			return err
		}
		const insert = `
INSERT INTO compliance_checks (claim_id, run_id, check_type, status, message, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
		for i, c := range out {
			var details []byte
			if c.Details != nil {
				var err error
				if details, err = json.Marshal(c.Details); err != nil {
					return fmt.Errorf("marshal details for %s: %w", c.Type, err)
				}
			}
			if err := tx.QueryRow(ctx, insert,
				claimID, c.RunID, c.Type, c.Status, c.Message, details, c.CreatedAt,
			).Scan(&out[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestChecks returns the persisted checks for a claim. Each run fully
// replaces the prior set, so the table only ever holds the latest run.
func (r *PGRepository) LatestChecks(ctx context.Context, claimID int64) ([]Check, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("compliance repo not initialised")
	}
	const query = `
SELECT id, claim_id, run_id, check_type, status, message, details, created_at
FROM compliance_checks
WHERE claim_id = $1
ORDER BY id`
	rows, err := r.pool.Query(ctx, query, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Check
	for rows.Next() {
		var c Check
		var details []byte
		if err := rows.Scan(&c.ID, &c.ClaimID, &c.RunID, &c.Type, &c.Status, &c.Message, &details, &c.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &c.Details); err != nil {
				return nil, fmt.Errorf("compliance: check %d details: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
