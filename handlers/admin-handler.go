package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"checkout-service/internal/orders"
	"checkout-service/pkg/ctxmanage"
	"checkout-service/pkg/logkey"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// ListOrders handles GET /orders with searchTerm, page, limit, sortBy and
// sortOrder query parameters.
func (h *Handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	page, ok := queryInt(c, "page")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "page must be a number"})
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}

	rows, total, q, err := h.o.ListOrders(c.Request.Context(), orders.ListQuery{
		Search:    c.Query("searchTerm"),
		Page:      page,
		Limit:     limit,
		SortBy:    c.Query("sortBy"),
		SortOrder: orders.SortOrder(c.Query("sortOrder")),
	})
	if err != nil {
		abortWithError(c, traceId, "failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Orders retrieved successfully",
		"meta": gin.H{
			"total": total,
			"page":  q.Page,
			"limit": q.Limit,
		},
		"data": rows,
	})
}

func (h *Handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	id := c.Param("id")
	if id == "" {
		abortWithError(c, traceId, "order id missing", orders.ErrNotFound)
		return
	}

	detail, err := h.o.GetOrder(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, traceId, "failed to fetch order", err)
		return
	}
	respond(c, http.StatusOK, "Order retrieved successfully", detail)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Info("failed to bind status request", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	updated, err := h.o.UpdateStatus(c.Request.Context(), id, orders.Status(req.Status))
	if err != nil {
		abortWithError(c, traceId, "failed to update order status", err)
		return
	}
	respond(c, http.StatusOK, "Order status updated successfully", updated)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	id := c.Param("id")

	if err := h.o.DeleteOrder(c.Request.Context(), id); err != nil {
		abortWithError(c, traceId, "failed to delete order", err)
		return
	}
	respond(c, http.StatusOK, "Order deleted successfully", gin.H{"id": id})
}
