package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticketbay/internal/models"
)

// ListEvents - GET /api/events
// Получить список опубликованных событий
func (h *Handlers) ListEvents(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "pageSize", 20)
	if !ok {
		return
	}

	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return
	}
	if pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be between 1 and 100"})
		return
	}

	events, err := h.services.Events.ListPublished(c.Request.Context(), c.Query("query"), page, pageSize)
	if err != nil {
		respondError(c, "list events", err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}

	c.JSON(http.StatusOK, models.ListEventsResponse{Events: events, Page: page, PageSize: pageSize})
}

// GetEvent - GET /api/events/:id
// Получить событие с партиями билетов
func (h *Handlers) GetEvent(c *gin.Context) {
	event, err := h.services.Events.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, "get event", err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// CheckAvailability - GET /api/batches/:id/availability
// Проверить наличие билетов в партии
func (h *Handlers) CheckAvailability(c *gin.Context) {
	quantity, ok := queryInt(c, "quantity", 1)
	if !ok {
		return
	}

	availability, err := h.services.Inventory.CheckAvailability(c.Request.Context(), c.Param("id"), quantity)
	if err != nil {
		respondError(c, "check availability", err)
		return
	}
	if availability.Batch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found", "kind": "not_found"})
		return
	}

	c.JSON(http.StatusOK, models.AvailabilityResponse{
		BatchID:      availability.Batch.ID,
		Available:    availability.Available && availability.Batch.IsActive,
		AvailableQty: availability.AvailableQty,
		RequestedQty: availability.RequestedQty,
	})
}

// CreateEvent - POST /api/producer/events
// Создать событие
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	event, err := h.services.Events.Create(c.Request.Context(), identity(c), &req)
	if err != nil {
		respondError(c, "create event", err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// ListProducerEvents - GET /api/producer/events
// События продюсера со статистикой продаж
func (h *Handlers) ListProducerEvents(c *gin.Context) {
	events, err := h.services.Events.ListForProducer(c.Request.Context(), identity(c), c.Query("include_archived") == "true")
	if err != nil {
		respondError(c, "list producer events", err)
		return
	}
	if events == nil {
		events = []models.EventWithStats{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// UpdateEvent - PUT /api/producer/events/:id
// Обновить событие и, если переданы, его партии
func (h *Handlers) UpdateEvent(c *gin.Context) {
	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	event, err := h.services.Events.Update(c.Request.Context(), identity(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, "update event", err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// UpdateBatches - PUT /api/producer/events/:id/batches
// Заменить набор партий события
func (h *Handlers) UpdateBatches(c *gin.Context) {
	var req models.UpdateBatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	batches, err := h.services.Events.UpdateBatches(c.Request.Context(), identity(c), c.Param("id"), req.Batches)
	if err != nil {
		respondError(c, "update batches", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// DeleteEvent - DELETE /api/producer/events/:id
// Удалить событие; при наличии продаж событие архивируется
func (h *Handlers) DeleteEvent(c *gin.Context) {
	result, err := h.services.Checkout.DeleteEvent(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, "delete event", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReactivateEvent - POST /api/producer/events/:id/reactivate
// Вернуть архивное событие в продажу
func (h *Handlers) ReactivateEvent(c *gin.Context) {
	event, err := h.services.Events.Reactivate(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, "reactivate event", err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// EventStats - GET /api/producer/events/:id/stats
// Статистика продаж события
func (h *Handlers) EventStats(c *gin.Context) {
	stats, err := h.services.Events.Stats(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, "get event stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// EventParticipants - GET /api/producer/events/:id/participants
// Участники события: проданные билеты с покупателем и заказом
func (h *Handlers) EventParticipants(c *gin.Context) {
	participants, err := h.services.Events.Participants(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, "list participants", err)
		return
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants, "total": len(participants)})
}

// Dashboard - GET /api/producer/dashboard
// Сводная статистика продюсера
func (h *Handlers) Dashboard(c *gin.Context) {
	stats, err := h.services.Events.Dashboard(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, "get dashboard", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
