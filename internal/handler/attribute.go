package handler

import (
	"log/slog" // failure logging
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/recipe-api/internal/service" // attribute use cases
)

// AttributeHandler serves /api/recipe/tags or /api/recipe/ingredients; one
// instance per kind, the routes are identical.
type AttributeHandler struct {
	Attrs  *service.AttributeService
	Logger *slog.Logger
}

func NewAttributeHandler(attrs *service.AttributeService, logger *slog.Logger) *AttributeHandler {
	if attrs == nil {
		panic("nil attribute service passed to NewAttributeHandler")
	}
	return &AttributeHandler{Attrs: attrs, Logger: logger}
}

type attributeReq struct {
	Name *string `json:"name"`
}

// List returns the caller's attributes ordered by name descending.
// ?assigned_only=1 keeps those used by at least one of their recipes.
func (h *AttributeHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	assignedOnly, err := queryFlag(c, "assigned_only")
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	attrs, err := h.Attrs.List(c.Request().Context(), uid, assignedOnly)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toAttributeResp(attrs))
}

// Create is an explicit get-or-create: 201 when a new attribute was
// stored, 200 when the caller already had one with that name.
func (h *AttributeHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req attributeReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	if req.Name == nil {
		return respondError(c, h.Logger, service.FieldError("name", "This field is required."))
	}
	a, created, err := h.Attrs.Create(c.Request().Context(), uid, *req.Name)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, attributeResp{ID: a.ID, Name: a.Name})
}

// Get returns one of the caller's attributes.
func (h *AttributeHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	a, err := h.Attrs.Get(c.Request().Context(), uid, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, attributeResp{ID: a.ID, Name: a.Name})
}

// Update renames an attribute (PUT and PATCH alike, name is the only field).
func (h *AttributeHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	var req attributeReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}
	if req.Name == nil {
		if c.Request().Method == http.MethodPut {
			return respondError(c, h.Logger, service.FieldError("name", "This field is required."))
		}
		return h.Get(c) // empty PATCH changes nothing
	}
	a, err := h.Attrs.Rename(c.Request().Context(), uid, id, *req.Name)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, attributeResp{ID: a.ID, Name: a.Name})
}

// Delete removes an attribute and detaches it from the caller's recipes.
func (h *AttributeHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	if err := h.Attrs.Delete(c.Request().Context(), uid, id); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
