package router

import (
	userapp "github.com/pilabs/users-api/internal/application"
	"github.com/pilabs/users-api/internal/container"
	pginfra "github.com/pilabs/users-api/internal/infrastructure/postgres"
	handlers "github.com/pilabs/users-api/internal/interface/http"
	"github.com/pilabs/users-api/internal/router/modules"
)

func buildUserModule() *modules.UserModule {
	repo := pginfra.NewUserRepository(container.GetStore())

	service := userapp.NewService(
		repo,
		container.GetCache(),
		container.GetConfig().UserCacheTTL,
		container.GetLogger(),
	)
	// optional infra; the service is nil-safe for both
	if pub := container.GetRabbitPub(); pub != nil {
		service.Queue = pub
	}
	service.ES = container.GetES()
	service.ESUsersIndex = container.GetConfig().ESUsersIndex

	handler := handlers.NewUserHandler(service, container.GetLogger())
	return modules.NewUserModule(handler)
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	r.Add(buildUserModule())
	r.Add(modules.NewHealthModule())
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
