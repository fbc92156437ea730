// Package billing holds the billing-consistency core: the derived
// balance ledger and the admission flow that turns a job request into a
// provisioned job plus a committed debit.
package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ewhitmore/gpubill/internal/payments"
	"github.com/ewhitmore/gpubill/pkg/types"
)

// DepositSource reads the external deposit ledger
type DepositSource interface {
	Transactions(ctx context.Context, address string) ([]payments.Transaction, error)
}

// DebitStore persists and aggregates local debit records
type DebitStore interface {
	Create(ctx context.Context, debit *types.Debit) error
	SumBilled(ctx context.Context, address string) (float64, error)
}

// Ledger computes spendable balances. A balance is always derived on the
// fly from the two ledgers and never cached: deposits can change
// externally at any moment and must be visible to the next admission
// check.
type Ledger struct {
	deposits DepositSource
	debits   DebitStore
	logger   *slog.Logger
}

// NewLedger creates a balance ledger
func NewLedger(deposits DepositSource, debits DebitStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		deposits: deposits,
		debits:   debits,
		logger:   logger,
	}
}

// Balance returns deposits, billed spend and their difference for one
// address. The result may be negative; enforcing a floor is the
// admission layer's job.
func (l *Ledger) Balance(ctx context.Context, address string) (*types.Balance, error) {
	txs, err := l.deposits.Transactions(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeposits, err)
	}

	deposits, err := payments.SumDeposits(txs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeposits, err)
	}

	spent, err := l.debits.SumBilled(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("sum spent: %w", err)
	}

	return &types.Balance{
		Address:  address,
		Deposits: deposits,
		Spent:    spent,
		Balance:  deposits - spent,
	}, nil
}

// CommitDebit durably records a debit. When this fails the job is
// already running, so the error is logged with everything needed for
// manual reconciliation before being surfaced.
func (l *Ledger) CommitDebit(ctx context.Context, debit *types.Debit) error {
	if err := l.debits.Create(ctx, debit); err != nil {
		l.logger.Error("debit commit failed, job is provisioned but unbilled",
			"debit_id", debit.ID,
			"address", debit.UserAddress,
			"provider_job_id", debit.ProviderJobID,
			"cost_settlement", debit.CostSettlement,
			"err", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
