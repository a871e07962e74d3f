package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	WorkOrders     *handlers.WorkOrdersHandler
	Notifications  *handlers.NotificationsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authenticated := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	tickets := authenticated.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/close", cfg.Tickets.Close)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)
	tickets.Post("/:id/assume", auth.RequireStaff(), cfg.Tickets.Assume)
	tickets.Post("/:id/dispatch", auth.RequireStaff(), cfg.Tickets.Dispatch)
	tickets.Post("/:id/start", auth.RequireStaff(), cfg.Tickets.Start)
	tickets.Post("/:id/resolve", auth.RequireStaff(), cfg.Tickets.Resolve)

	workOrders := authenticated.Group("/work-orders", auth.RequireStaff())
	workOrders.Post("/", cfg.WorkOrders.Create)
	workOrders.Get("/", cfg.WorkOrders.List)
	workOrders.Get("/:id", cfg.WorkOrders.Get)
	workOrders.Get("/:id/history", cfg.WorkOrders.History)
	workOrders.Post("/:id/accept", auth.RequireStaffRole(domain.StaffRoleTechnician), cfg.WorkOrders.Accept)
	workOrders.Post("/:id/technicians", cfg.WorkOrders.AddTechnician)
	workOrders.Delete("/:id/technicians/:technicianId", cfg.WorkOrders.RemoveTechnician)
	workOrders.Post("/:id/technicians/:technicianId/start", cfg.WorkOrders.StartTechnician)
	workOrders.Post("/:id/technicians/:technicianId/complete", cfg.WorkOrders.CompleteTechnician)
	workOrders.Post("/:id/complete", cfg.WorkOrders.Complete)
	workOrders.Post("/:id/cancel", cfg.WorkOrders.Cancel)

	notifications := authenticated.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	staff := authenticated.Group("/staff", auth.RequireStaff())
	staff.Post("/", cfg.Staff.CreateStaff)
	staff.Get("/", cfg.Staff.ListStaff)
	staff.Get("/:id", cfg.Staff.GetStaff)

	companies := authenticated.Group("/companies")
	companies.Post("/", auth.RequireStaffRole(domain.StaffRoleAdmin), cfg.Staff.CreateCompany)
	companies.Get("/:id", cfg.Staff.GetCompany)
}
