package handler // handler defines http handlers

import (
	"errors"   // errors is used to classify service errors
	"log/slog" // slog records unexpected failures
	"net/http" // net/http provides status codes
	"strconv"  // strconv parses path and query parameters

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/iliyamo/recipe-api/internal/model"   // price decoding errors
	"github.com/iliyamo/recipe-api/internal/service" // service errors translated here
)

// getUserID extracts the user_id set by the JWT middleware and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id") // fetch user_id from context
	switch t := v.(type) {
	case uint64: // the JWT middleware stores uint64
		if t > 0 {
			return t, nil
		}
	case int64: // tolerate other integer encodings
		if t > 0 {
			return uint64(t), nil
		}
	case string: // and decimal strings
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// unauthorized answers requests whose principal could not be read.
func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication credentials were not provided"})
}

// pathID parses the :id path parameter as a positive integer
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryFlag parses an optional boolean query parameter such as ?assigned_only=1
func queryFlag(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil // absent means false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, service.FieldError(name, "Must be 0 or 1.")
	}
	return v, nil
}

// respondError maps service errors onto HTTP responses. Validation errors
// carry their per-field messages; unexpected errors are logged and hidden.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unable to authenticate with provided credentials"})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, echo.Map{"error": http.StatusText(he.Code)})
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("request failed",
		"method", c.Request().Method,
		"route", c.Path(),
		"error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// bindAndValidate decodes the JSON body into dst and runs the registered validator
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		if errors.Is(err, model.ErrInvalidPrice) {
			return service.FieldError("price", "Ensure this is a number with at most 5 digits and 2 decimal places.")
		}
		return service.FieldError("body", "Malformed request body.")
	}
	if c.Echo().Validator == nil {
		return nil // no validator registered (unit tests wiring handlers by hand)
	}
	return c.Validate(dst)
}
