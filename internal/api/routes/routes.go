package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/medivoice/internal/api/handlers"
	"github.com/yoockh/medivoice/internal/api/middleware"
)

type Deps struct {
	Session       *handlers.SessionHandler
	Webhook       *handlers.WebhookHandler
	WS            *handlers.AgentWSHandler
	WebhookSecret string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api")

	api.POST("/session-chat", d.Session.Create)
	api.GET("/session-chat", d.Session.Get)
	api.GET("/session-chat/history", d.Session.History)
	api.GET("/session-chat/:session_id/transcript", d.Session.Transcript)
	api.GET("/doctors", d.Session.Doctors)

	// Vapi server messages
	api.POST("/vapi/webhook", middleware.VapiSecret(d.WebhookSecret), d.Webhook.Vapi)

	// WebSocket
	r.GET("/ws/agent/:session_id", d.WS.AgentWS)
}
