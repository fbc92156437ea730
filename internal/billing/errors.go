package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence is returned when a debit cannot be durably recorded.
	// The job was already provisioned at that point; the failure is
	// billing-uncollected, never double-charged.
	ErrPersistence = errors.New("debit persistence failed")

	// ErrProvision is returned when the compute provider rejects or fails
	// the job creation. No debit is recorded.
	ErrProvision = errors.New("provisioning failed")

	// ErrDeposits is returned when the payment backend cannot report the
	// deposit ledger
	ErrDeposits = errors.New("deposit lookup failed")
)

// InsufficientBalanceError is a business rejection, not an operational
// error: the caller's balance does not cover the quoted cost. Both values
// are carried so the caller can display them.
type InsufficientBalanceError struct {
	Balance float64
	Cost    float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %.6f < %.6f", e.Balance, e.Cost)
}
