package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ewhitmore/gpubill/pkg/types"
)

// DebitStore handles debit record database operations. Debits are
// insert-only: there is deliberately no update or delete here.
type DebitStore struct {
	pool *pgxpool.Pool
}

// Create inserts a new debit record
func (s *DebitStore) Create(ctx context.Context, debit *types.Debit) error {
	query := `
		INSERT INTO debits (
			id, user_address, provider_job_id, gpu_type, image,
			duration_seconds, cost_usd, cost_settlement, rate_usd,
			created_at, billed
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		debit.ID,
		debit.UserAddress,
		debit.ProviderJobID,
		debit.GPUType,
		debit.Image,
		debit.DurationSeconds,
		debit.CostUSD,
		debit.CostSettlement,
		debit.RateUSD,
		debit.CreatedAt,
		debit.Billed,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert debit: %w", err)
	}

	return nil
}

// GetByID retrieves a debit by ID, scoped to its owning address
func (s *DebitStore) GetByID(ctx context.Context, id, address string) (*types.Debit, error) {
	query := `
		SELECT id, user_address, provider_job_id, gpu_type, image,
			duration_seconds, cost_usd, cost_settlement, rate_usd,
			created_at, billed
		FROM debits
		WHERE id = $1 AND user_address = $2
	`

	var debit types.Debit
	err := s.pool.QueryRow(ctx, query, id, address).Scan(
		&debit.ID,
		&debit.UserAddress,
		&debit.ProviderJobID,
		&debit.GPUType,
		&debit.Image,
		&debit.DurationSeconds,
		&debit.CostUSD,
		&debit.CostSettlement,
		&debit.RateUSD,
		&debit.CreatedAt,
		&debit.Billed,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query debit: %w", err)
	}

	return &debit, nil
}

// ListByAddress returns an address's debits, newest first
func (s *DebitStore) ListByAddress(ctx context.Context, address string, limit int) ([]*types.Debit, error) {
	query := `
		SELECT id, user_address, provider_job_id, gpu_type, image,
			duration_seconds, cost_usd, cost_settlement, rate_usd,
			created_at, billed
		FROM debits
		WHERE user_address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("query debits: %w", err)
	}
	defer rows.Close()

	var debits []*types.Debit
	for rows.Next() {
		var debit types.Debit
		err := rows.Scan(
			&debit.ID,
			&debit.UserAddress,
			&debit.ProviderJobID,
			&debit.GPUType,
			&debit.Image,
			&debit.DurationSeconds,
			&debit.CostUSD,
			&debit.CostSettlement,
			&debit.RateUSD,
			&debit.CreatedAt,
			&debit.Billed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan debit: %w", err)
		}
		debits = append(debits, &debit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate debits: %w", err)
	}

	return debits, nil
}

// ListOpen returns debits across all addresses whose paid-for runtime
// window is still open at the given instant, newest first.
func (s *DebitStore) ListOpen(ctx context.Context, at time.Time, limit int) ([]*types.Debit, error) {
	query := `
		SELECT id, user_address, provider_job_id, gpu_type, image,
			duration_seconds, cost_usd, cost_settlement, rate_usd,
			created_at, billed
		FROM debits
		WHERE created_at + make_interval(secs => duration_seconds) > $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, at, limit)
	if err != nil {
		return nil, fmt.Errorf("query open debits: %w", err)
	}
	defer rows.Close()

	var debits []*types.Debit
	for rows.Next() {
		var debit types.Debit
		err := rows.Scan(
			&debit.ID,
			&debit.UserAddress,
			&debit.ProviderJobID,
			&debit.GPUType,
			&debit.Image,
			&debit.DurationSeconds,
			&debit.CostUSD,
			&debit.CostSettlement,
			&debit.RateUSD,
			&debit.CreatedAt,
			&debit.Billed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan debit: %w", err)
		}
		debits = append(debits, &debit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open debits: %w", err)
	}

	return debits, nil
}

// SumBilled returns the total settlement-currency cost of an address's
// billed debits. Unbilled debits never count against balance.
func (s *DebitStore) SumBilled(ctx context.Context, address string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_settlement), 0)
		FROM debits
		WHERE user_address = $1 AND billed = true
	`

	var total float64
	if err := s.pool.QueryRow(ctx, query, address).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum billed debits: %w", err)
	}

	return total, nil
}
