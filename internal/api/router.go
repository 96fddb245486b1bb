package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helpdesk-io/helpdesk-ce/internal/config"
	"github.com/helpdesk-io/helpdesk-ce/internal/middleware"
)

// Router wires handlers, middleware and routes onto a gin engine.
type Router struct {
	engine         *gin.Engine
	handlers       *Handlers
	authMiddleware *middleware.AuthMiddleware
	metrics        config.MetricsConfig
}

func NewRouter(handlers *Handlers, authMiddleware *middleware.AuthMiddleware, metrics config.MetricsConfig) *Router {
	return &Router{
		engine:         gin.Default(),
		handlers:       handlers,
		authMiddleware: authMiddleware,
		metrics:        metrics,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.RequestID())

	r.engine.GET("/healthz", r.healthCheck)
	if r.metrics.Enabled {
		path := r.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", r.handlers.HandleRegister)
			authGroup.POST("/login", r.handlers.HandleLogin)
			authGroup.POST("/code", r.handlers.HandleCodeLogin)
		}

		me := v1.Group("/me")
		me.Use(r.authMiddleware.RequireAuth())
		{
			me.GET("", r.handlers.HandleMe)
		}

		users := v1.Group("/users")
		users.Use(r.authMiddleware.RequireAuth())
		users.Use(r.authMiddleware.RequireTechnician())
		{
			users.GET("/:id", r.handlers.HandleGetUser)
			users.POST("/:id/access-code", r.handlers.HandleRegenerateAccessCode)
			users.POST("/:id/access-code/send", r.handlers.HandleSendAccessCode)
			users.DELETE("/:id", r.handlers.HandleDeleteUser)
		}

		tickets := v1.Group("/tickets")
		tickets.Use(r.authMiddleware.RequireAuth())
		{
			tickets.POST("", r.handlers.HandleCreateTicket)
			tickets.GET("", r.handlers.HandleListTickets)
			tickets.GET("/number/:tn", r.handlers.HandleGetTicketByNumber)
			tickets.GET("/:id", r.handlers.HandleGetTicket)
			tickets.GET("/:id/history", r.handlers.HandleListHistory)

			tickets.POST("/:id/start", r.handlers.HandleStartWork)
			tickets.POST("/:id/visit", r.handlers.HandleScheduleVisit)
			tickets.POST("/:id/reject", r.handlers.HandleReject)
			tickets.POST("/:id/close", r.handlers.HandleClose)
			tickets.POST("/:id/notes", r.handlers.HandleAddNote)

			tickets.POST("/:id/attachments", r.handlers.HandleUploadAttachment)
			tickets.GET("/:id/attachments", r.handlers.HandleListAttachments)
		}

		notificationsGroup := v1.Group("/notifications")
		notificationsGroup.Use(r.authMiddleware.RequireAuth())
		{
			notificationsGroup.GET("", r.handlers.HandleListUnreadNotifications)
			notificationsGroup.POST("/:id/read", r.handlers.HandleMarkNotificationRead)
		}
	}
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Engine exposes the underlying gin engine for the HTTP server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
