package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feedbase/feedbase/internal/metrics"
	"github.com/feedbase/feedbase/internal/queue"
	"github.com/feedbase/feedbase/internal/security"
)

const (
	ctxUID       = "uid"
	ctxEmail     = "email"
	ctxRequestID = "X-Request-ID"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Request = c.Request.WithContext(queue.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.InFlight.Inc()
		start := time.Now()
		c.Next()
		metrics.InFlight.Dec()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// AuthJWT requires a valid bearer token and stores uid/email on the context.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		claims, err := security.ParseAccess(secret, strings.TrimSpace(h[len("Bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		uid := claims.UID
		if uid == "" {
			uid = claims.Subject
		}
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		c.Set(ctxUID, uid)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

// RateLimit rejects with 429 once the per-IP budget for the route is spent.
func (h *Handler) RateLimit(bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Limiter == nil || h.Cfg.RateLimitPerMin <= 0 {
			c.Next()
			return
		}
		key := "rl:" + bucket + ":" + c.ClientIP()
		if !h.Limiter.Allow(c.Request.Context(), key, h.Cfg.RateLimitPerMin, time.Minute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
