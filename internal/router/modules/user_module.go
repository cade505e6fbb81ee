package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pilabs/users-api/internal/container"
	handlers "github.com/pilabs/users-api/internal/interface/http"
	"github.com/pilabs/users-api/internal/interface/middleware"
)

// UserModule wires the user CRUD handlers into routes under /api/users.
type UserModule struct {
	Handler *handlers.UserHandler
}

func NewUserModule(h *handlers.UserHandler) *UserModule {
	return &UserModule{Handler: h}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetCache().Raw()
	// writes get a tighter budget than reads
	readLimiter := middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	writeLimiter := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())

	users := rg.Group("/users")
	{
		users.POST("", writeLimiter, m.Handler.Create)
		users.GET("", readLimiter, m.Handler.List)
		users.GET("/search", readLimiter, m.Handler.Search)
		users.GET("/:id", readLimiter, m.Handler.Get)
		users.PUT("/:id", writeLimiter, m.Handler.Update)
		users.DELETE("/:id", writeLimiter, m.Handler.Delete)
	}
}
