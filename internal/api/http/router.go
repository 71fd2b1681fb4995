package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-ticket-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Metrics   *handlers.MetricsHandler
	Tickets   *handlers.TicketsHandler
	Agents    *handlers.AgentsHandler
	Customers *handlers.CustomersHandler
	Products  *handlers.ProductsHandler
	Realtime  *handlers.RealtimeHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Snapshot)
	}

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Put("/:id/resolve", cfg.Tickets.ResolveTicket)
	tickets.Put("/:id/approve", cfg.Tickets.ApproveTicket)
	tickets.Get("/:id/history", cfg.Tickets.TicketHistory)

	agents := app.Group("/agents")
	agents.Post("/", cfg.Agents.Create)
	agents.Get("/", cfg.Agents.List)
	agents.Get("/:id", cfg.Agents.Get)
	agents.Get("/:id/tickets", cfg.Tickets.AgentTickets)
	agents.Patch("/:id", cfg.Agents.Update)
	agents.Put("/:id", cfg.Agents.Update)
	agents.Delete("/:id", cfg.Agents.Delete)

	customers := app.Group("/customers")
	customers.Post("/", cfg.Customers.Create)
	customers.Get("/", cfg.Customers.List)
	customers.Get("/:id", cfg.Customers.Get)
	customers.Patch("/:id", cfg.Customers.Update)
	customers.Put("/:id", cfg.Customers.Update)
	customers.Delete("/:id", cfg.Customers.Delete)

	products := app.Group("/products")
	products.Post("/", cfg.Products.Create)
	products.Get("/", cfg.Products.List)
	products.Get("/:id", cfg.Products.Get)
	products.Patch("/:id", cfg.Products.Update)
	products.Put("/:id", cfg.Products.Update)
	products.Delete("/:id", cfg.Products.Delete)

	if cfg.Realtime != nil {
		app.Get("/ws/agents/:agent_id", cfg.Realtime.Authorize, cfg.Realtime.Session())
	}
}
