package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/pilabs/users-api/config"
	"github.com/pilabs/users-api/internal/container"
	pginfra "github.com/pilabs/users-api/internal/infrastructure/postgres"
	"github.com/pilabs/users-api/internal/infrastructure/rediscache"
	"github.com/pilabs/users-api/internal/interface/middleware"
	"github.com/pilabs/users-api/internal/router"
	"github.com/pilabs/users-api/pkg/helpers"
	"github.com/pilabs/users-api/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Postgres: writes go to the primary, reads to the replica. With no
	// replica configured both DSNs point at the same server but the pools
	// stay separate per role.
	primary, err := pginfra.NewPool(ctx, cfg.PrimaryDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to primary postgres: %v", err)
	}
	replica, err := pginfra.NewPool(ctx, cfg.ReplicaDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		primary.Close()
		log.Fatalf("failed to connect to replica postgres: %v", err)
	}
	store := pginfra.NewDB(primary, replica)
	defer store.Close()

	// Redis cache
	cache, err := rediscache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer func() { _ = cache.Close() }()

	// RabbitMQ publisher for welcome emails; optional, the service degrades
	// without it.
	var rabbitPub *helpers.RabbitPublisher
	if cfg.RabbitMQURL != "" && cfg.RabbitMQWelcomeQueue != "" {
		rabbitPub, err = helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQWelcomeQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable, welcome emails disabled")
			rabbitPub = nil
		} else {
			defer rabbitPub.Close()
		}
	}

	// Elasticsearch secondary index; optional as well.
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(helpers.ESOptions{
			Addrs:    addrs,
			Username: cfg.ElasticsearchUser,
			Password: cfg.ElasticsearchPass,
		})
		if err != nil {
			logger.WithError(err).Warn("elasticsearch unavailable, search index disabled")
		} else {
			container.SetES(es)
		}
	}

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetStore(store)
	container.SetCache(cache)
	container.SetRabbitPub(rabbitPub)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}
