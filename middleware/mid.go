package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-service/internal/auth"
	"checkout-service/pkg/ctxmanage"
	"checkout-service/pkg/logkey"
)

type Mid struct {
	k        *auth.Keys
	resolver *auth.Resolver
}

func NewMid(k *auth.Keys, resolver *auth.Resolver) (*Mid, error) {
	if k == nil {
		return nil, errors.New("auth keys are nil")
	}
	if resolver == nil {
		return nil, errors.New("identity resolver is nil")
	}
	return &Mid{k: k, resolver: resolver}, nil
}

// Authentication rejects requests without a valid access token and stores the
// claims on the request context under auth.ClaimsKey.
func (m *Mid) Authentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.GetTraceIdOfRequest(c)

		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			slog.Info("missing access token", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		claims, err := m.k.ValidateToken(token)
		if err != nil {
			slog.Info("invalid access token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}

		ctx := context.WithValue(c.Request.Context(), auth.ClaimsKey, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Authorize wraps a handler so only callers holding one of roles reach it.
// It must run after Authentication.
func (m *Mid) Authorize(next gin.HandlerFunc, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.GetTraceIdOfRequest(c)
		claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
		if !ok {
			slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				next(c)
				return
			}
		}
		slog.Info("role not allowed", slog.String(logkey.TraceID, traceId), slog.String("role", claims.Role))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": http.StatusText(http.StatusForbidden)})
	}
}

// OptionalIdentity resolves the caller for checkout. A missing or bad token
// never fails the request; the caller continues as a guest.
func (m *Mid) OptionalIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := m.resolver.Resolve(ctx, auth.TokenFromRequest(c.Request))
		c.Request = c.Request.WithContext(auth.WithIdentity(ctx, id))
		c.Next()
	}
}
