// Package router registers the HTTP routes on an Echo instance and wires
// the middleware chain in front of them.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/campushub/classroom-reservation/internal/handler"
	"github.com/campushub/classroom-reservation/internal/middleware"
	"github.com/campushub/classroom-reservation/internal/model"
)

// Handlers bundles everything the route table needs.  main builds one and
// hands it over; the router owns no state of its own.
type Handlers struct {
	Auth         *handler.AuthHandler
	Booking      *handler.BookingHandler
	Reservations *handler.ReservationHandler
	Promotion    *handler.PromotionHandler
	Action       *handler.ActionHandler
	Admin        *handler.AdminHandler
	Export       *handler.ExportHandler

	JWTSecret string
	RateLimit echo.MiddlewareFunc // nil when disabled
}

// Register attaches every route.  Signed-link endpoints stay public: the
// HMAC token in the path is the credential, so they work from a mail client
// without a session.
func Register(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)

	// Action links from notification mail.
	e.GET("/admin-action/:token", h.Action.Handle)

	pub := e.Group("/v1/auth")
	if h.RateLimit != nil {
		pub.Use(h.RateLimit)
	}
	pub.POST("/register", h.Auth.Register)
	pub.POST("/login", h.Auth.Login)
	pub.POST("/refresh", h.Auth.Refresh)
	pub.POST("/logout", h.Auth.Logout)
	pub.POST("/reset", h.Auth.RequestPasswordReset)
	pub.GET("/reset-confirm/:token", h.Action.ResetConfirm)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(h.JWTSecret))
	if h.RateLimit != nil {
		auth.Use(h.RateLimit)
	}
	auth.GET("/me", h.Auth.Me)
	auth.GET("/classrooms", h.Booking.ListClassrooms)
	auth.GET("/classrooms/:id/grid", h.Booking.GetGrid)
	auth.POST("/reservations", h.Booking.Submit)
	auth.GET("/my-reservations", h.Reservations.ListMine)
	auth.POST("/my-reservations/:batch_id/cancel", h.Reservations.CancelBatch)
	auth.POST("/promotion", h.Promotion.Apply)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.GET("/grid", h.Admin.GetGrid)
	admin.POST("/reservations", h.Admin.DirectBook)
	admin.POST("/reservations/cancel", h.Admin.BulkCancel)
	admin.GET("/reservations/export", h.Export.Export)
	admin.POST("/classrooms", h.Admin.CreateClassroom)
	admin.PATCH("/classrooms/:id/active", h.Admin.SetClassroomActive)
	admin.PATCH("/students/:id/status", h.Admin.SetStudentStatus)
}
