// Package reconcile periodically compares open debits against the
// compute provider's view of their jobs and flags the ones that died
// before their paid-for window closed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ewhitmore/gpubill/internal/compute"
	"github.com/ewhitmore/gpubill/internal/notify"
	"github.com/ewhitmore/gpubill/pkg/types"
)

// DebitLister reads debits whose runtime window is still open
type DebitLister interface {
	ListOpen(ctx context.Context, at time.Time, limit int) ([]*types.Debit, error)
}

// JobGetter reads job state from the compute provider
type JobGetter interface {
	GetJob(ctx context.Context, jobID string) (*compute.Job, error)
}

// Notifier emits best-effort operational events
type Notifier interface {
	Send(category notify.Category, severity notify.Severity, message string, meta map[string]interface{})
}

// Config holds reconciler configuration
type Config struct {
	CheckInterval time.Duration
	ScanLimit     int
}

// DefaultConfig returns default reconciler configuration
func DefaultConfig() *Config {
	return &Config{
		CheckInterval: 5 * time.Minute,
		ScanLimit:     100,
	}
}

// Reconciler runs the periodic scan loop. Each run lists open debits,
// asks the provider for the state of each backing job, and sends one
// warning per job found dead or missing. A job already flagged is not
// flagged again.
type Reconciler struct {
	config   *Config
	debits   DebitLister
	provider JobGetter
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	flagged map[string]bool
	cancel  context.CancelFunc
}

// New creates a reconciler
func New(config *Config, debits DebitLister, provider JobGetter, notifier Notifier, logger *slog.Logger) *Reconciler {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		config:   config,
		debits:   debits,
		provider: provider,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		flagged:  make(map[string]bool),
	}
}

// Start runs the reconcile loop until the context is cancelled
func (r *Reconciler) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	r.logger.Info("reconciler starting", "check_interval", r.config.CheckInterval)

	r.run(ctx)

	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// Stop stops the reconciler gracefully
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Reconciler) run(ctx context.Context) {
	open, err := r.debits.ListOpen(ctx, r.now(), r.config.ScanLimit)
	if err != nil {
		r.logger.Error("failed to list open debits", "error", err)
		return
	}

	seen := make(map[string]bool, len(open))
	for _, debit := range open {
		seen[debit.ProviderJobID] = true
		if r.flagged[debit.ProviderJobID] {
			continue
		}
		r.check(ctx, debit)
	}

	// A job whose runtime window has closed drops out of the scan for
	// good; its flag entry would otherwise pile up forever
	for id := range r.flagged {
		if !seen[id] {
			delete(r.flagged, id)
		}
	}
}

func (r *Reconciler) check(ctx context.Context, debit *types.Debit) {
	job, err := r.provider.GetJob(ctx, debit.ProviderJobID)
	if err != nil {
		var httpErr *compute.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			r.flag(debit, "missing")
			return
		}
		// Transient provider failures are retried on the next run
		r.logger.Warn("provider query failed",
			"provider_job_id", debit.ProviderJobID, "error", err)
		return
	}

	if terminal(job.State) {
		r.flag(debit, job.State)
	}
}

func (r *Reconciler) flag(debit *types.Debit, state string) {
	r.flagged[debit.ProviderJobID] = true

	r.logger.Warn("paid job ended before its runtime window closed",
		"debit_id", debit.ID,
		"provider_job_id", debit.ProviderJobID,
		"gpu_type", debit.GPUType,
		"state", state,
	)

	r.notifier.Send(notify.CategoryBilling, notify.SeverityWarning,
		fmt.Sprintf("Paid job %s for %s: %s", debit.ProviderJobID, debit.GPUType, state),
		map[string]interface{}{
			"debit_id":        debit.ID,
			"provider_job_id": debit.ProviderJobID,
			"state":           state,
			"cost_settlement": debit.CostSettlement,
		})
}

func terminal(state string) bool {
	switch state {
	case "failed", "exited", "stopped", "terminated":
		return true
	}
	return false
}
