package modules

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pilabs/users-api/internal/container"
	"github.com/pilabs/users-api/pkg/response"
)

// HealthModule probes the store pools and the cache connection.
type HealthModule struct{}

func NewHealthModule() *HealthModule { return &HealthModule{} }

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		probeCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"store": "ok", "cache": "ok"}
		status := http.StatusOK

		if err := container.GetStore().Ping(probeCtx); err != nil {
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := container.GetCache().Ping(probeCtx); err != nil {
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if status == http.StatusOK {
			response.Success(c, status, checks, "healthy")
			return
		}
		response.Error(c, status, "UNHEALTHY", "dependency check failed", checks)
	})
}
