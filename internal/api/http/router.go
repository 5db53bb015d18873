package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/service-request-desk/internal/api/http/handlers"
	"github.com/spec-kit/service-request-desk/internal/auth"
	"github.com/spec-kit/service-request-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Auth            *handlers.AuthHandler
	ServiceRequests *handlers.ServiceRequestsHandler
	Notifications   *handlers.NotificationsHandler
	Escalations     *handlers.EscalationsHandler
	AuthMiddleware  *auth.AuthMiddleware
	Gatherer        prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Me)

	requests := app.Group("/service-requests", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	requests.Post("/", cfg.ServiceRequests.Create)
	requests.Get("/", cfg.ServiceRequests.List)
	requests.Get("/:id", cfg.ServiceRequests.Get)
	requests.Patch("/:id", cfg.ServiceRequests.Update)
	requests.Post("/:id/resolve", cfg.ServiceRequests.Resolve)
	requests.Get("/:id/history", cfg.ServiceRequests.History)

	inbox := app.Group("/notifications", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	inbox.Get("/", cfg.Notifications.List)
	inbox.Post("/:id/read", cfg.Notifications.MarkRead)

	if cfg.Escalations != nil {
		admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleSuperAdmin))
		admin.Post("/escalations/sweep", cfg.Escalations.Sweep)
	}
}
