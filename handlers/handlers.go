package handlers

import (
	"errors"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkout-service/internal/auth"
	"checkout-service/internal/orders"
	"checkout-service/internal/payments"
	"checkout-service/internal/stores/kafka"
	"checkout-service/middleware"
)

type Handler struct {
	o        *orders.Conf
	gw       payments.Gateway
	k        *kafka.Conf
	validate *validator.Validate
}

func NewHandler(o *orders.Conf, gw payments.Gateway, k *kafka.Conf) (*Handler, error) {
	if o == nil {
		return nil, errors.New("orders conf is nil")
	}
	if gw == nil {
		return nil, errors.New("payment gateway is nil")
	}
	if k == nil {
		// a Conf without brokers publishes nothing
		k = &kafka.Conf{}
	}
	return &Handler{o: o, gw: gw, k: k, validate: validator.New()}, nil
}

func API(endpointPrefix string, m *middleware.Mid, h *Handler) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if mode == gin.TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/webhooks/payment", h.PaymentWebhook)
		v1.POST("/orders/create", m.OptionalIdentity(), h.CreateOrder)

		admin := v1.Group("/orders")
		admin.Use(m.Authentication())
		admin.GET("", m.Authorize(h.ListOrders, auth.RoleAdmin))
		admin.GET("/:id", m.Authorize(h.GetOrder, auth.RoleAdmin))
		admin.PATCH("/:id/status", m.Authorize(h.UpdateOrderStatus, auth.RoleAdmin))
		admin.DELETE("/:id", m.Authorize(h.DeleteOrder, auth.RoleAdmin))
	}

	slog.Info("routes registered", slog.String("prefix", endpointPrefix))
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}
