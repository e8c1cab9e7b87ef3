package handler

import (
	"context"  // bounded service calls
	"io"       // reading the uploaded file
	"log/slog" // failure logging
	"net/http" // HTTP status codes
	"time"     // timeouts

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/recipe-api/internal/model"   // recipe and attribute models
	"github.com/iliyamo/recipe-api/internal/service" // recipe use cases
)

// RecipeHandler serves /api/recipe/recipes. Every route runs behind the
// JWT middleware and acts on the caller's own recipes only.
type RecipeHandler struct {
	Recipes        *service.RecipeService
	MaxUploadBytes int64
	Logger         *slog.Logger
}

func NewRecipeHandler(recipes *service.RecipeService, maxUploadBytes int64, logger *slog.Logger) *RecipeHandler {
	if recipes == nil {
		panic("nil recipe service passed to NewRecipeHandler")
	}
	return &RecipeHandler{Recipes: recipes, MaxUploadBytes: maxUploadBytes, Logger: logger}
}

// ----- DTOs -----

// attributeRef is an embedded tag or ingredient in a recipe write: only
// the name is read, the id of an existing attribute is resolved from it.
type attributeRef struct {
	Name string `json:"name"`
}

// recipeReq: a nil field was not supplied. "tags": [] clears the tags,
// omitting "tags" leaves them alone.
type recipeReq struct {
	Title       *string         `json:"title"`
	TimeMinutes *int            `json:"time_minutes"`
	Price       *model.Price    `json:"price"`
	Description *string         `json:"description"`
	Link        *string         `json:"link"`
	Tags        *[]attributeRef `json:"tags"`
	Ingredients *[]attributeRef `json:"ingredients"`
}

func refNames(refs *[]attributeRef) *[]string {
	if refs == nil {
		return nil
	}
	names := make([]string, len(*refs))
	for i, r := range *refs {
		names[i] = r.Name
	}
	return &names
}

func (r recipeReq) input() service.RecipeInput {
	return service.RecipeInput{
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Description: r.Description,
		Link:        r.Link,
		Tags:        refNames(r.Tags),
		Ingredients: refNames(r.Ingredients),
	}
}

type attributeResp struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type recipeResp struct {
	ID          uint64          `json:"id"`
	Title       string          `json:"title"`
	TimeMinutes int             `json:"time_minutes"`
	Price       model.Price     `json:"price"`
	Link        string          `json:"link"`
	Tags        []attributeResp `json:"tags"`
	Ingredients []attributeResp `json:"ingredients"`
}

type recipeDetailResp struct {
	recipeResp
	Description   string  `json:"description"`
	Image         *string `json:"image"` // URL, null when the recipe has none
	ImageBlurHash string  `json:"image_blurhash,omitempty"`
}

type imageResp struct {
	ID    uint64  `json:"id"`
	Image *string `json:"image"`
}

func toAttributeResp(attrs []*model.Attribute) []attributeResp {
	out := make([]attributeResp, len(attrs))
	for i, a := range attrs {
		out[i] = attributeResp{ID: a.ID, Name: a.Name}
	}
	return out
}

func toRecipeResp(rc *model.Recipe) recipeResp {
	return recipeResp{
		ID:          rc.ID,
		Title:       rc.Title,
		TimeMinutes: rc.TimeMinutes,
		Price:       rc.Price,
		Link:        rc.Link,
		Tags:        toAttributeResp(rc.Tags),
		Ingredients: toAttributeResp(rc.Ingredients),
	}
}

// imageURL resolves the stored key to a URL; nil when there is no image.
func (h *RecipeHandler) imageURL(ctx context.Context, key string) (*string, error) {
	if key == "" {
		return nil, nil
	}
	u, err := h.Recipes.ImageURL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *RecipeHandler) detail(c echo.Context, status int, rc *model.Recipe) error {
	img, err := h.imageURL(c.Request().Context(), rc.Image)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(status, recipeDetailResp{
		recipeResp:    toRecipeResp(rc),
		Description:   rc.Description,
		Image:         img,
		ImageBlurHash: rc.ImageBlurHash,
	})
}

// List returns the caller's recipes, newest first, optionally filtered by
// ?tags=1,2 and/or ?ingredients=3.
func (h *RecipeHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	tagIDs, err := service.ParseIDList("tags", c.QueryParam("tags"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	ingredientIDs, err := service.ParseIDList("ingredients", c.QueryParam("ingredients"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rcs, err := h.Recipes.List(ctx, uid, service.RecipeFilter{TagIDs: tagIDs, IngredientIDs: ingredientIDs})
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	out := make([]recipeResp, len(rcs))
	for i, rc := range rcs {
		out[i] = toRecipeResp(rc)
	}
	return c.JSON(http.StatusOK, out)
}

// Create stores a new recipe for the caller, resolving embedded tag and
// ingredient names.
func (h *RecipeHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req recipeReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rc, err := h.Recipes.Create(ctx, uid, req.input())
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.detail(c, http.StatusCreated, rc)
}

// Get returns one of the caller's recipes in the detail view.
func (h *RecipeHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	rc, err := h.Recipes.Get(c.Request().Context(), uid, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.detail(c, http.StatusOK, rc)
}

// Update handles PUT (full) and PATCH (partial). An owner in the body is
// not part of recipeReq and so is dropped by the decoder.
func (h *RecipeHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	var req recipeReq
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.Logger, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	partial := c.Request().Method == http.MethodPatch
	rc, err := h.Recipes.Update(ctx, uid, id, req.input(), partial)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.detail(c, http.StatusOK, rc)
}

// Delete removes one of the caller's recipes.
func (h *RecipeHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	if err := h.Recipes.Delete(c.Request().Context(), uid, id); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadImage reads the multipart field "image" and attaches it to the
// recipe, replacing any previous image.
func (h *RecipeHandler) UploadImage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return respondError(c, h.Logger, service.FieldError("image", "No file was submitted."))
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		return respondError(c, h.Logger, service.FieldError("image", "The submitted file is too large."))
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	defer f.Close()

	var r io.Reader = f
	if h.MaxUploadBytes > 0 {
		r = io.LimitReader(f, h.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	if h.MaxUploadBytes > 0 && int64(len(data)) > h.MaxUploadBytes {
		return respondError(c, h.Logger, service.FieldError("image", "The submitted file is too large."))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	rc, err := h.Recipes.UploadImage(ctx, uid, id, fh.Filename, data)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	img, err := h.imageURL(ctx, rc.Image)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, imageResp{ID: rc.ID, Image: img})
}

// DeleteImage detaches and removes the recipe's image.
func (h *RecipeHandler) DeleteImage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return respondError(c, h.Logger, service.ErrNotFound)
	}
	rc, err := h.Recipes.DeleteImage(c.Request().Context(), uid, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, imageResp{ID: rc.ID})
}
