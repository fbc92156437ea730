package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/ewhitmore/gpubill/internal/auth"
	"github.com/ewhitmore/gpubill/internal/billing"
	"github.com/ewhitmore/gpubill/internal/compute"
	"github.com/ewhitmore/gpubill/internal/pricing"
	"github.com/ewhitmore/gpubill/internal/store"
	"github.com/ewhitmore/gpubill/pkg/types"
)

// How many recent jobs to scan when looking for the running one
const runningScanLimit = 10

// JobHandler handles job launch and query endpoints
type JobHandler struct {
	admitter *billing.Admitter
	store    *store.Store
	provider *compute.Client
}

// NewJobHandler creates a new job handler
func NewJobHandler(admitter *billing.Admitter, st *store.Store, provider *compute.Client) *JobHandler {
	return &JobHandler{
		admitter: admitter,
		store:    st,
		provider: provider,
	}
}

// Launch handles POST /api/v1/jobs: price, check balance, provision,
// commit the debit
func (h *JobHandler) Launch(c echo.Context) error {
	address, err := auth.GetAddress(c)
	if err != nil {
		return err
	}

	var req types.LaunchRequest
	if err := c.Bind(&req); err != nil {
		return ErrorBadRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return ErrorBadRequest(c, err.Error())
	}

	result, err := h.admitter.Admit(c.Request().Context(), address, &req)
	if err != nil {
		return admissionError(c, err)
	}

	return SuccessCreated(c, result)
}

// admissionError maps admission failures onto the API error envelope
func admissionError(c echo.Context, err error) error {
	var insufficient *billing.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		return ErrorPaymentRequired(c, insufficient.Error())
	case errors.Is(err, pricing.ErrUnknownGPUType):
		return ErrorBadRequest(c, err.Error())
	case errors.Is(err, pricing.ErrRateUnavailable):
		return ErrorServiceUnavailable(c, "exchange rate unavailable")
	case errors.Is(err, billing.ErrDeposits):
		return ErrorBadGateway(c, "deposit ledger unavailable")
	case errors.Is(err, billing.ErrProvision):
		return ErrorBadGateway(c, "failed to launch job")
	default:
		// Includes billing.ErrPersistence: the job launched but the
		// debit did not land; reconciliation works off the server log
		return ErrorInternal(c, "failed to record job")
	}
}

// List handles GET /api/v1/jobs: the caller's recent debits
func (h *JobHandler) List(c echo.Context) error {
	address, err := auth.GetAddress(c)
	if err != nil {
		return err
	}

	debits, err := h.store.Debits.ListByAddress(c.Request().Context(), address, 50)
	if err != nil {
		return ErrorInternal(c, "failed to list jobs")
	}

	summaries := make([]*types.DebitSummary, 0, len(debits))
	for _, d := range debits {
		summaries = append(summaries, d.ToSummary())
	}

	return SuccessOK(c, summaries)
}

// Get handles GET /api/v1/jobs/:id
func (h *JobHandler) Get(c echo.Context) error {
	address, err := auth.GetAddress(c)
	if err != nil {
		return err
	}

	debit, err := h.store.Debits.GetByID(c.Request().Context(), c.Param("id"), address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrorNotFound(c, "job not found")
		}
		return ErrorInternal(c, "failed to load job")
	}

	return SuccessOK(c, debit)
}

// Logs handles GET /api/v1/jobs/:id/logs, proxied from the provider
func (h *JobHandler) Logs(c echo.Context) error {
	address, err := auth.GetAddress(c)
	if err != nil {
		return err
	}

	debit, err := h.store.Debits.GetByID(c.Request().Context(), c.Param("id"), address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrorNotFound(c, "job not found")
		}
		return ErrorInternal(c, "failed to load job")
	}

	logs, err := h.provider.Logs(c.Request().Context(), debit.ProviderJobID)
	if err != nil {
		return ErrorBadGateway(c, "failed to fetch logs")
	}

	return SuccessOK(c, map[string]string{"logs": logs})
}

// Metrics handles GET /api/v1/jobs/:id/metrics, proxied from the provider
func (h *JobHandler) Metrics(c echo.Context) error {
	address, err := auth.GetAddress(c)
	if err != nil {
		return err
	}

	debit, err := h.store.Debits.GetByID(c.Request().Context(), c.Param("id"), address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrorNotFound(c, "job not found")
		}
		return ErrorInternal(c, "failed to load job")
	}

	metrics, err := h.provider.Metrics(c.Request().Context(), debit.ProviderJobID)
	if err != nil {
		return ErrorBadGateway(c, "failed to fetch metrics")
	}

	return SuccessOK(c, metrics)
}

// runningJob is the response shape for the running-job lookup
type runningJob struct {
	ID            string `json:"id"`
	ProviderJobID string `json:"provider_job_id"`
	Hostname      string `json:"hostname"`
	GPUType       string `json:"gpu_type"`
	State         string `json:"state"`
}

// Running handles GET /api/v1/jobs/running: scan the caller's recent
// jobs against provider state and return the first one that is running
// with a hostname
func (h *JobHandler) Running(c echo.Context) error {
	address, err := auth.GetAddress(c)
	if err != nil {
		return err
	}

	debits, err := h.store.Debits.ListByAddress(c.Request().Context(), address, runningScanLimit)
	if err != nil {
		return ErrorInternal(c, "failed to list jobs")
	}

	for _, debit := range debits {
		job, err := h.provider.GetJob(c.Request().Context(), debit.ProviderJobID)
		if err != nil {
			// A single stale provider reference must not hide the rest
			continue
		}
		if job.State == "running" && job.Hostname != "" {
			return SuccessOK(c, map[string]*runningJob{"job": {
				ID:            debit.ID,
				ProviderJobID: debit.ProviderJobID,
				Hostname:      job.Hostname,
				GPUType:       debit.GPUType,
				State:         job.State,
			}})
		}
	}

	return SuccessOK(c, map[string]*runningJob{"job": nil})
}
