package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "ticketbay/internal/errors"
	"ticketbay/internal/logger"
	"ticketbay/internal/middleware"
	"ticketbay/internal/models"
	"ticketbay/internal/service"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// statusFor сопоставляет вид ошибки с HTTP статусом
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindAuthRequired:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindEventUnavailable:
		return http.StatusUnprocessableEntity
	case apperrors.KindAvailability, apperrors.KindInvalidState:
		return http.StatusConflict
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindPaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку сервиса; детали ошибок хранилища остаются в логах
func respondError(c *gin.Context, action string, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)

	body := gin.H{"error": err.Error(), "kind": kind}
	if violations := apperrors.ViolationsOf(err); len(violations) > 0 {
		body["violations"] = violations
	}

	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("Failed to "+action, "error", err)
		body["error"] = "Failed to " + action
		_ = c.Error(err)
	}

	c.JSON(status, body)
}

// respondCheckout отдает единый CheckoutResult для операций покупки
func respondCheckout(c *gin.Context, successStatus int, outcome *service.CheckoutOutcome, err error) {
	result := service.NewCheckoutResult(outcome, err)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindPersistence {
			logger.WithContext(c.Request.Context()).Error("Checkout failed", "error", err)
			_ = c.Error(err)
		}
		c.JSON(statusFor(apperrors.KindOf(err)), result)
		return
	}
	c.JSON(successStatus, result)
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperrors.KindValidation})
}

func identity(c *gin.Context) *models.Identity {
	return middleware.IdentityFromContext(c.Request.Context())
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer", "kind": apperrors.KindValidation})
		return 0, false
	}
	return value, true
}
