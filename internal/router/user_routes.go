package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/recipe-api/internal/middleware"
)

// RegisterUser registers the account routes under /api/user. Signup and
// token issuing are public; the profile and logout need a valid access
// token. Middleware is attached per route, not to the group, so that
// POST /me keeps answering 405 instead of the group's catch-all 404.
func RegisterUser(e *echo.Echo, d Deps) {
	rl := orPassthrough(d.RateLimit)
	jwt := middleware.JWTAuth(d.JWTSecret)

	g := e.Group("/api/user")
	g.POST("/create", d.Users.Create, rl)
	g.POST("/token", d.Users.Token, rl)
	g.POST("/token/refresh", d.Users.Refresh, rl)

	g.POST("/logout", d.Users.Logout, jwt, rl)
	g.GET("/me", d.Users.Me, jwt, rl)
	g.PUT("/me", d.Users.UpdateMe, jwt, rl)
	g.PATCH("/me", d.Users.UpdateMe, jwt, rl)
}
