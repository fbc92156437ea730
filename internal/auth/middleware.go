package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ContextKey is the type for context keys
type ContextKey string

// AddressContextKey is the key for storing the authenticated address in context
const AddressContextKey ContextKey = "address"

// RequireAuth is middleware that requires a bearer token and stores the
// verified address in the request context
func RequireAuth(authority *Authority) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			address, err := authority.Verify(parts[1])
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(string(AddressContextKey), address)

			return next(c)
		}
	}
}

// GetAddress retrieves the authenticated address from echo context
func GetAddress(c echo.Context) (string, error) {
	address, ok := c.Get(string(AddressContextKey)).(string)
	if !ok || address == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return address, nil
}
