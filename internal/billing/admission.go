package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewhitmore/gpubill/internal/compute"
	"github.com/ewhitmore/gpubill/internal/notify"
	"github.com/ewhitmore/gpubill/internal/pricing"
	"github.com/ewhitmore/gpubill/pkg/types"
)

// Quoter prices a (GPU type, duration) pair
type Quoter interface {
	Price(ctx context.Context, gpuType string, durationSeconds int) (pricing.Quote, error)
}

// Provisioner creates jobs on the external compute provider
type Provisioner interface {
	CreateJob(ctx context.Context, req *compute.CreateJobRequest) (*compute.Job, error)
}

// Notifier emits best-effort operational events
type Notifier interface {
	Send(category notify.Category, severity notify.Severity, message string, meta map[string]interface{})
}

// Admitter decides launch-or-reject for one job request and commits the
// resulting debit. The ordering is deliberate: price and balance-check
// before the slow provider call so a rejected user is never provisioned,
// and commit the debit only after the provider succeeds so a provider
// failure never produces a phantom charge.
type Admitter struct {
	quoter         Quoter
	ledger         *Ledger
	provider       Provisioner
	notifier       Notifier
	billingEnabled bool
	logger         *slog.Logger
}

// NewAdmitter creates an admission controller. With billingEnabled false
// every request is admitted and its debit recorded unbilled.
func NewAdmitter(quoter Quoter, ledger *Ledger, provider Provisioner, notifier Notifier, billingEnabled bool, logger *slog.Logger) *Admitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admitter{
		quoter:         quoter,
		ledger:         ledger,
		provider:       provider,
		notifier:       notifier,
		billingEnabled: billingEnabled,
		logger:         logger,
	}
}

// Admit runs the full admission flow for one job request.
//
// Two concurrent requests from one address can both observe the same
// pre-debit balance and both pass the sufficiency check; the ledger is
// not serialized against the external deposit log. That over-commit
// window is accepted here rather than taking a distributed lock.
func (a *Admitter) Admit(ctx context.Context, address string, req *types.LaunchRequest) (*types.LaunchResult, error) {
	quote, err := a.quoter.Price(ctx, req.GPUType, req.DurationSeconds)
	if err != nil {
		return nil, err
	}

	if a.billingEnabled {
		balance, err := a.ledger.Balance(ctx, address)
		if err != nil {
			return nil, err
		}

		// Sufficiency is balance >= cost: an exactly-affordable job is
		// admitted
		if balance.Balance < quote.Settlement {
			return nil, &InsufficientBalanceError{
				Balance: balance.Balance,
				Cost:    quote.Settlement,
			}
		}
	}

	// From here on the work must survive a caller disconnect: an
	// abandoned request must not leave a provisioned job unbilled
	ctx = context.WithoutCancel(ctx)

	job, err := a.provider.CreateJob(ctx, &compute.CreateJobRequest{
		Image:         req.Image,
		GPUType:       req.GPUType,
		Runtime:       req.DurationSeconds,
		Region:        req.Region,
		Command:       req.Command,
		Env:           req.Env,
		Ports:         req.Ports,
		Auth:          req.Auth,
		Interruptible: true,
	})
	if err != nil {
		a.logger.Error("job provisioning failed",
			"address", address, "gpu_type", req.GPUType, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProvision, err)
	}

	debit := &types.Debit{
		ID:              types.GenerateDebitID(),
		UserAddress:     address,
		ProviderJobID:   job.JobID,
		GPUType:         req.GPUType,
		Image:           req.Image,
		DurationSeconds: req.DurationSeconds,
		CostUSD:         quote.USD,
		CostSettlement:  quote.Settlement,
		RateUSD:         quote.Rate,
		CreatedAt:       time.Now().UTC(),
		Billed:          a.billingEnabled,
	}

	if err := a.ledger.CommitDebit(ctx, debit); err != nil {
		return nil, err
	}

	a.notifier.Send(notify.CategoryJobs, notify.SeverityInfo,
		fmt.Sprintf("Job launched: %s for %ds", req.GPUType, req.DurationSeconds),
		map[string]interface{}{
			"debit_id":        debit.ID,
			"provider_job_id": job.JobID,
			"cost_settlement": quote.Settlement,
			"address":         truncate(address, 20),
		})

	return &types.LaunchResult{
		ID:              debit.ID,
		ProviderJobID:   job.JobID,
		Hostname:        job.Hostname,
		GPUType:         req.GPUType,
		DurationSeconds: req.DurationSeconds,
		CostUSD:         quote.USD,
		CostSettlement:  quote.Settlement,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
