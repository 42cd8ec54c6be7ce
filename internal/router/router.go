package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/homeservepro/marketplace/internal/handler"    // handlers implementing the endpoints
	"github.com/homeservepro/marketplace/internal/middleware" // JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check and the public service
// catalog listing.
func RegisterRoutes(e *echo.Echo, catalog *handler.CatalogHandler) {
	// Load balancers and monitoring systems probe this endpoint.
	e.GET("/healthz", handler.Health)
	// The catalog listing is public so prospective customers can browse
	// services before registering.
	e.GET("/v1/services", catalog.ListServices)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a bearer token (revoke all sessions) or a
	// refresh_token in the body (revoke one session), so it lives
	// outside the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterNotifications registers the in-app notification inbox for any
// authenticated role.
func RegisterNotifications(e *echo.Echo, n *handler.NotificationHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.GET("/notifications", n.List)
	g.POST("/notifications/:id/read", n.MarkRead)
}
