package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/safevault/internal/api/http/handlers"
	"github.com/spec-kit/safevault/internal/auth"
	"github.com/spec-kit/safevault/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/username-available", cfg.Auth.UsernameAvailable)
	authGroup.Get("/email-available", cfg.Auth.EmailAvailable)

	adminGroup := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	adminGroup.Get("/users", cfg.Admin.ListUsers)
	adminGroup.Get("/users/:id", cfg.Admin.GetUser)
	adminGroup.Post("/users/:id/toggle-status", cfg.Admin.ToggleUserStatus)
	adminGroup.Post("/users/:id/role", cfg.Admin.UpdateUserRole)
}
