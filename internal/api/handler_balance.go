package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/ewhitmore/gpubill/internal/auth"
	"github.com/ewhitmore/gpubill/internal/billing"
	"github.com/ewhitmore/gpubill/internal/payments"
	"github.com/ewhitmore/gpubill/internal/pricing"
)

// BalanceHandler handles balance query endpoints
type BalanceHandler struct {
	ledger   *billing.Ledger
	rates    *pricing.RateCache
	payments *payments.Client
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(ledger *billing.Ledger, rates *pricing.RateCache, p *payments.Client) *BalanceHandler {
	return &BalanceHandler{
		ledger:   ledger,
		rates:    rates,
		payments: p,
	}
}

// Get handles GET /api/v1/balance: deposits minus billed spend,
// recomputed from both ledgers on every call
func (h *BalanceHandler) Get(c echo.Context) error {
	address, err := auth.GetAddress(c)
	if err != nil {
		return err
	}

	balance, err := h.ledger.Balance(c.Request().Context(), address)
	if err != nil {
		if errors.Is(err, billing.ErrDeposits) {
			return ErrorBadGateway(c, "deposit ledger unavailable")
		}
		return ErrorInternal(c, "failed to compute balance")
	}

	rate, err := h.rates.Rate(c.Request().Context())
	if err != nil {
		return ErrorServiceUnavailable(c, "exchange rate unavailable")
	}

	balance.RateUSD = rate
	balance.BalanceUSD = balance.Balance * rate

	return SuccessOK(c, balance)
}

// DepositAddress handles GET /api/v1/balance/address: the address users
// deposit to, owned by the payment backend
func (h *BalanceHandler) DepositAddress(c echo.Context) error {
	info, err := h.payments.Address(c.Request().Context())
	if err != nil {
		return ErrorBadGateway(c, "payment backend unavailable")
	}
	return SuccessOK(c, info)
}
