package router

import (
	"github.com/letably/backend/internal/interfaces/http/handler"
	"github.com/letably/backend/internal/interfaces/http/middleware"
)

// Handlers bundles the HTTP handlers wired into the API route tree.
type Handlers struct {
	System   *handler.SystemHandler
	Agency   *handler.AgencyHandler
	Tenancy  *handler.TenancyHandler
	Schedule *handler.ScheduleHandler
	Payment  *handler.PaymentHandler
	Report   *handler.ReportHandler
}

// Groups builds the domain route groups for the API. Destructive ledger
// operations (schedule deletion, payment deletion, schedule revert) are
// restricted to admin users.
func Groups(h Handlers) []*DomainGroup {
	system := NewDomainGroup("system", "/system")
	system.GET("/ping", h.System.Ping)
	system.GET("/info", h.System.GetSystemInfo)

	// Agency registration is the only write available before an agency
	// context exists; it must be listed in the JWT and agency middleware
	// skip paths.
	agencies := NewDomainGroup("agencies", "/agencies")
	agencies.POST("", h.Agency.Create)
	agencies.GET("/current", h.Agency.GetCurrent)

	tenancies := NewDomainGroup("tenancies", "/tenancies")
	tenancies.POST("", h.Tenancy.Create)
	tenancies.GET("", h.Tenancy.List)
	tenancies.GET("/:id", h.Tenancy.GetByID)
	tenancies.POST("/:id/members", h.Tenancy.AddMember)
	tenancies.POST("/:id/send-for-signatures", h.Tenancy.SendForSignatures)
	tenancies.POST("/:id/activate", h.Tenancy.Activate)
	tenancies.POST("/:id/expire", h.Tenancy.Expire)
	tenancies.POST("/:id/schedules/generate", h.Schedule.GenerateForTenancy)

	schedules := NewDomainGroup("schedules", "/schedules")
	schedules.POST("", h.Schedule.Create)
	schedules.GET("", h.Schedule.List)
	schedules.GET("/:id", h.Schedule.GetByID)
	schedules.PUT("/:id", h.Schedule.Update)
	schedules.DELETE("/:id", middleware.RequireAdmin(), h.Schedule.Delete)
	schedules.POST("/:id/payments", h.Payment.Record)
	schedules.PUT("/:id/payments/:paymentID", h.Payment.Amend)
	schedules.DELETE("/:id/payments/:paymentID", middleware.RequireAdmin(), h.Payment.Delete)
	schedules.POST("/:id/revert", middleware.RequireAdmin(), h.Payment.Revert)

	reports := NewDomainGroup("reports", "/reports")
	reports.GET("/summary", h.Report.Summary)
	reports.GET("/schedules", h.Report.Schedules)
	reports.GET("/arrears", h.Report.Arrears)
	reports.GET("/payments", h.Report.Payments)

	return []*DomainGroup{system, agencies, tenancies, schedules, reports}
}
