package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/viharalabs/templedesk/internal/templectx"
	"go.uber.org/zap"
)

const (
	HeaderTemple = "X-Temple-ID"
	HeaderActor  = "X-Actor-ID"
)

// RequestLogging emits one structured line per request.
func RequestLogging(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// TempleContext resolves the active temple from the request header, falling
// back to the configured default for single-temple installs.
func (s *Server) TempleContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		templeID := s.cfg.DefaultTempleID
		if raw := strings.TrimSpace(c.GetHeader(HeaderTemple)); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, invalidRequestError())
				return
			}
			templeID = int64(parsed)
		}
		if templeID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := templectx.WithTempleID(c.Request.Context(), templeID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ActorContext records who performed the operation, when supplied.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx := templectx.WithActorID(c.Request.Context(), actor)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
