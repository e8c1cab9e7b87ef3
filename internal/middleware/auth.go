package middleware // reusable HTTP middleware for the Echo router

import (
	"net/http" // HTTP status codes for responses
	"strings"  // header prefix handling

	"github.com/labstack/echo/v4" // Echo middleware types

	"github.com/iliyamo/recipe-api/internal/utils" // access token parsing
)

// ContextUserID is the Echo context key under which JWTAuth stores the
// authenticated user's id as a uint64.
const ContextUserID = "user_id"

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the token's subject in the request context. The secret must
// match the one used when issuing tokens. Wrap every protected route with
// it so handlers can read the caller via UserID.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header looks like "Bearer <jwt>". The scheme is
			// matched case-insensitively.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(auth, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			// ParseAccessToken pins HS256 and requires an expiry.
			id, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(ContextUserID, id)
			return next(c)
		}
	}
}
