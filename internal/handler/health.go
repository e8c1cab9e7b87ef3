package handler // declare the package name; contains HTTP handlers

import (
	"context"  // bounded readiness probe
	"net/http" // status codes
	"time"     // probe timeout

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is a liveness endpoint used by load balancers and monitoring
// systems. It returns a plain text "ok" with a 200 status.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ready returns a readiness endpoint that pings the database. A nil db
// (in-memory store) is always ready.
func Ready(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil {
			return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": "database unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	}
}
