package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-service/internal/auth"
	"checkout-service/internal/orders"
	"checkout-service/internal/payments"
	"checkout-service/pkg/logkey"
)

// statusFor maps core errors onto HTTP statuses. Anything unrecognised is a
// 500 and its message is not shown to the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrInvalidSort),
		errors.Is(err, payments.ErrInvalidSignature),
		errors.Is(err, payments.ErrMalformedEvent):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, payments.ErrGatewayUnavailable):
		return http.StatusBadGateway, payments.ErrGatewayUnavailable.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, auth.ErrUnauthorized.Error()
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func abortWithError(c *gin.Context, traceId, msg string, err error) {
	status, public := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	} else {
		slog.Info(msg, slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": public})
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}
