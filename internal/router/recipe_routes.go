package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/recipe-api/internal/handler"
	"github.com/iliyamo/recipe-api/internal/middleware"
)

// RegisterRecipe registers /api/recipe. Every route needs a valid access
// token; the rate limiter and the response cache run after JWTAuth so
// both can key on the caller.
func RegisterRecipe(e *echo.Echo, d Deps) {
	g := e.Group(
		"/api/recipe",
		middleware.JWTAuth(d.JWTSecret),
		orPassthrough(d.RateLimit),
		orPassthrough(d.Cache),
	)

	// ---- Recipes ----
	r := d.Recipes
	g.GET("/recipes", r.List)
	g.POST("/recipes", r.Create)
	g.GET("/recipes/:id", r.Get)
	g.PUT("/recipes/:id", r.Update)
	g.PATCH("/recipes/:id", r.Update) // partial update
	g.DELETE("/recipes/:id", r.Delete)
	g.POST("/recipes/:id/upload-image", r.UploadImage)
	g.DELETE("/recipes/:id/image", r.DeleteImage)

	// ---- Tags and ingredients share one handler shape ----
	registerAttributes(g, "/tags", d.Tags)
	registerAttributes(g, "/ingredients", d.Ingredients)
}

func registerAttributes(g *echo.Group, prefix string, h *handler.AttributeHandler) {
	g.GET(prefix, h.List)
	g.POST(prefix, h.Create)
	g.GET(prefix+"/:id", h.Get)
	g.PUT(prefix+"/:id", h.Update)
	g.PATCH(prefix+"/:id", h.Update)
	g.DELETE(prefix+"/:id", h.Delete)
}
