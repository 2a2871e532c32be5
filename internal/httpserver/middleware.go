package httpserver

import (
	"context"
	"time"

	"oid4vci-issuer/pkg/helpers"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Service) middlewareTraceID(_ context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("req_id", uuid.NewString())
		c.Header("req_id", c.GetString("req_id"))
		c.Next()
	}
}

func (s *Service) middlewareLogger(_ context.Context) gin.HandlerFunc {
	log := s.logger.New("http")
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		log.Info("request",
			"status", c.Writer.Status(),
			"url", c.Request.URL.String(),
			"method", c.Request.Method,
			"req_id", c.GetString("req_id"),
			"duration", time.Since(t),
		)
	}
}

func (s *Service) middlewareCrash(_ context.Context) gin.HandlerFunc {
	log := s.logger.New("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Trace("crash", "error", r, "url", c.Request.URL.Path, "method", c.Request.Method)
				c.JSON(500, gin.H{"error": helpers.NewError("internal_server_error")})
			}
		}()
		c.Next()
	}
}
