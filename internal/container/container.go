package container

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"

	"github.com/pilabs/users-api/config"
	"github.com/pilabs/users-api/internal/infrastructure/postgres"
	"github.com/pilabs/users-api/internal/infrastructure/rediscache"
	"github.com/pilabs/users-api/pkg/helpers"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg       *config.Config
	logger    *logrus.Logger
	store     *postgres.DB
	cache     *rediscache.Client
	rabbitPub *helpers.RabbitPublisher
	esClient  *elasticsearch.Client
)

func SetConfig(c *config.Config)              { cfg = c }
func GetConfig() *config.Config               { return cfg }
func SetLogger(l *logrus.Logger)              { logger = l }
func GetLogger() *logrus.Logger               { return logger }
func SetStore(db *postgres.DB)                { store = db }
func GetStore() *postgres.DB                  { return store }
func SetCache(c *rediscache.Client)           { cache = c }
func GetCache() *rediscache.Client            { return cache }
func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }
func GetRabbitPub() *helpers.RabbitPublisher  { return rabbitPub }
func SetES(c *elasticsearch.Client)           { esClient = c }
func GetES() *elasticsearch.Client            { return esClient }
