package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Messages       *handlers.MessagesHandler
	AuthMiddleware *auth.AuthMiddleware
	Realtime       *realtime.Server
	// WSOrigins restricts browser origins allowed to open /ws.
	WSOrigins []string
	// Metrics is served at /metrics when set.
	Metrics *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}
	if cfg.Realtime != nil {
		app.Get("/ws", cfg.Realtime.Authenticate, cfg.Realtime.Handler(cfg.WSOrigins))
	}

	api := app.Group("/api")
	api.Get("/health", cfg.Health.Live)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/admin/register", cfg.Auth.RegisterAdmin)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	protected.Get("/users", auth.RequireAdmin(), cfg.Users.List)
	protected.Get("/users/settings", cfg.Users.GetSettings)
	protected.Put("/users/settings", cfg.Users.UpdateSettings)
	protected.Put("/users/password", cfg.Users.ChangePassword)

	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id/status", cfg.Tickets.UpdateStatus)

	protected.Post("/messages", cfg.Messages.CreateMessage)
	protected.Get("/messages/ticket/:id", cfg.Messages.ListMessages)
}
