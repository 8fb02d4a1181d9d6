package handlers

import (
	"github.com/gin-gonic/gin"

	"ticketbay/internal/middleware"
)

// Register подключает API маршруты; identity middleware распознает токен на всех маршрутах
func (h *Handlers) Register(router gin.IRouter, verifier *middleware.IdentityVerifier) {
	api := router.Group("/api")
	api.Use(middleware.Identity(verifier))
	{
		events := api.Group("/events")
		{
			events.GET("", h.ListEvents)
			events.GET("/:id", h.GetEvent)
		}

		api.GET("/batches/:id/availability", h.CheckAvailability)

		intents := api.Group("/checkout/intents")
		{
			intents.POST("", h.StashIntent)
			intents.POST("/:token/resume", middleware.RequireIdentity(), h.ResumeIntent)
		}

		orders := api.Group("/orders", middleware.RequireIdentity())
		{
			orders.POST("", h.CreateOrder)
			orders.GET("", h.ListOrders)
			orders.GET("/:id", h.GetOrder)
			orders.POST("/:id/checkout", h.Checkout)
			orders.POST("/:id/cancel", h.CancelOrder)
		}

		producer := api.Group("/producer", middleware.RequireIdentity())
		{
			producer.GET("/dashboard", h.Dashboard)
			producer.POST("/events", h.CreateEvent)
			producer.GET("/events", h.ListProducerEvents)
			producer.PUT("/events/:id", h.UpdateEvent)
			producer.PUT("/events/:id/batches", h.UpdateBatches)
			producer.DELETE("/events/:id", h.DeleteEvent)
			producer.POST("/events/:id/reactivate", h.ReactivateEvent)
			producer.GET("/events/:id/stats", h.EventStats)
			producer.GET("/events/:id/participants", h.EventParticipants)
		}
	}
}
