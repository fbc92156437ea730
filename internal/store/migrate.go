package store

import (
	"context"
	"fmt"
)

// schema is applied at startup. The debits table is append-only; the
// index matches the two hot queries (per-address listing and the billed
// spend sum).
const schema = `
CREATE TABLE IF NOT EXISTS debits (
	id               TEXT PRIMARY KEY,
	user_address     TEXT NOT NULL,
	provider_job_id  TEXT NOT NULL,
	gpu_type         TEXT NOT NULL,
	image            TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL CHECK (duration_seconds > 0),
	cost_usd         DOUBLE PRECISION NOT NULL CHECK (cost_usd >= 0),
	cost_settlement  DOUBLE PRECISION NOT NULL CHECK (cost_settlement >= 0),
	rate_usd         DOUBLE PRECISION NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	billed           BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_debits_user_address ON debits (user_address, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_debits_user_billed ON debits (user_address) WHERE billed;
`

// Migrate ensures the schema exists
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
