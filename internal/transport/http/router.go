package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vn.io.arda/marketplace-notification/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware.
func NewRouter(h *Handler, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewRequestValidator()

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
	}))

	// No auth: health checks, scraping and the provider callback (signature checked in the handler)
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/whatsapp/webhook", h.Webhook)

	// API: requires authentication
	api := e.Group("")
	api.Use(mw.JWTAuth(jwtSecret))

	api.GET("/notifications", h.ListNotifications)
	api.GET("/notifications/unread-count", h.GetUnreadCount)
	api.PATCH("/notifications/:id/read", h.MarkRead)
	api.GET("/notifications/stream", h.Stream)

	// WhatsApp console: admin only
	wa := api.Group("/whatsapp", mw.RequireRole(mw.RoleAdmin))
	wa.POST("/send", h.SendWhatsApp)
	wa.GET("/conversations", h.ListConversations)
	wa.GET("/conversations/:id/messages", h.ListMessages)
	wa.POST("/templates", h.CreateTemplate)
	wa.GET("/templates", h.ListTemplates)
	wa.POST("/send-template", h.SendTemplate)

	return e
}
