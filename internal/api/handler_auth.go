package api

import (
	"github.com/labstack/echo/v4"

	"github.com/ewhitmore/gpubill/internal/auth"
	"github.com/ewhitmore/gpubill/internal/payments"
	"github.com/ewhitmore/gpubill/pkg/types"
)

// AuthHandler handles credential issuance endpoints
type AuthHandler struct {
	payments  *payments.Client
	authority *auth.Authority
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(p *payments.Client, authority *auth.Authority) *AuthHandler {
	return &AuthHandler{
		payments:  p,
		authority: authority,
	}
}

// Verify handles POST /api/v1/auth/verify: the payment backend checks
// the ownership proof, then a token is issued for the proven address
func (h *AuthHandler) Verify(c echo.Context) error {
	var req types.VerifyRequest
	if err := c.Bind(&req); err != nil {
		return ErrorBadRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return ErrorBadRequest(c, err.Error())
	}

	valid, err := h.payments.Verify(c.Request().Context(), req.Message, req.Signature, req.Address)
	if err != nil {
		return ErrorBadGateway(c, "signature verification unavailable")
	}
	if !valid {
		return ErrorUnauthorized(c, "invalid signature")
	}

	token, err := h.authority.Issue(req.Address)
	if err != nil {
		return ErrorInternal(c, "failed to issue token")
	}

	return SuccessOK(c, &types.TokenResponse{Token: token, Address: req.Address})
}

// AdminLogin handles POST /api/v1/auth/admin: issue a token for any
// address. The route is gated by auth.RequireAdminKey; no ownership
// proof is involved.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req types.AdminLoginRequest
	if err := c.Bind(&req); err != nil {
		return ErrorBadRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return ErrorBadRequest(c, err.Error())
	}

	token, err := h.authority.Issue(req.Address)
	if err != nil {
		return ErrorInternal(c, "failed to issue token")
	}

	return SuccessOK(c, &types.TokenResponse{Token: token, Address: req.Address})
}
