package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

func (s *Service) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, dep := range s.Dependencies {
		if err := dep.Ping(ctx); err != nil {
			s.Logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		jsonError(c, http.StatusServiceUnavailable, failed, "unhealthy")
		return
	}

	jsonOK(c, nil, "Success")
}
