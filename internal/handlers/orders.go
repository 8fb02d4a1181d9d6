package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticketbay/internal/models"
	"ticketbay/internal/service"
)

// CreateOrder - POST /api/orders
// Создать заказ в статусе pending
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.services.Checkout.CreateOrder(c.Request.Context(), identity(c), req.EventID, req.Quantities)
	respondCheckout(c, http.StatusCreated, outcomeOf(order), err)
}

// ListOrders - GET /api/orders
// Заказы текущего покупателя
func (h *Handlers) ListOrders(c *gin.Context) {
	orders, err := h.services.Orders.ListMine(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, "list orders", err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrder - GET /api/orders/:id
// Заказ с билетами и платежами
func (h *Handlers) GetOrder(c *gin.Context) {
	details, err := h.services.Orders.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, "get order", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// Checkout - POST /api/orders/:id/checkout
// Оплатить заказ и выпустить билеты
func (h *Handlers) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	outcome, err := h.services.Checkout.ProcessCheckout(c.Request.Context(), identity(c), c.Param("id"), req.PaymentMethod, req.Buyer)
	respondCheckout(c, http.StatusOK, outcome, err)
}

// CancelOrder - POST /api/orders/:id/cancel
// Отменить неоплаченный заказ
func (h *Handlers) CancelOrder(c *gin.Context) {
	order, err := h.services.Checkout.CancelOrder(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, "cancel order", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// StashIntent - POST /api/checkout/intents
// Сохранить выбор анонимного покупателя до входа
func (h *Handlers) StashIntent(c *gin.Context) {
	if h.services.Intents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout intents are disabled"})
		return
	}

	var req models.StashIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	intent, err := h.services.Intents.Stash(c.Request.Context(), req.EventID, req.Quantities)
	if err != nil {
		respondError(c, "stash checkout intent", err)
		return
	}
	c.JSON(http.StatusCreated, models.StashIntentResponse{Token: intent.Token, ExpiresAt: intent.ExpiresAt})
}

// ResumeIntent - POST /api/checkout/intents/:token/resume
// Продолжить покупку после входа
func (h *Handlers) ResumeIntent(c *gin.Context) {
	if h.services.Intents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout intents are disabled"})
		return
	}

	order, err := h.services.Intents.Resume(c.Request.Context(), identity(c), c.Param("token"))
	respondCheckout(c, http.StatusCreated, outcomeOf(order), err)
}

func outcomeOf(order *models.Order) *service.CheckoutOutcome {
	if order == nil {
		return nil
	}
	return &service.CheckoutOutcome{Order: order}
}
