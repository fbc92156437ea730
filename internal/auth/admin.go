package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminKeyHeader carries the static backend admin key. This gate is a
// trusted-operator escape hatch, entirely separate from the token scheme:
// it lets operational tooling obtain a token for any address without that
// address proving key ownership.
const AdminKeyHeader = "X-Backend-Api-Key"

// RequireAdminKey is middleware that gates a route on possession of the
// configured admin key. It fails closed: an unconfigured key rejects
// everything.
func RequireAdminKey(adminKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if adminKey == "" {
				return echo.NewHTTPError(http.StatusForbidden, "admin access disabled")
			}

			presented := c.Request().Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(adminKey)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid admin key")
			}

			return next(c)
		}
	}
}
