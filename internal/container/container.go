package container

import (
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/config"
	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/datastore"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/localauth"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	gcsClient   *storage.Client
	esClient    *elasticsearch.Client

	emailPub  *helpers.RabbitPublisher
	eventsPub *helpers.RabbitPublisher

	store     *datastore.Store
	profiles  *datastore.ProfileRepository
	factory   identity.Factory
	directory *localauth.Directory
	registry  *application.DeviceRegistry

	deviceTokens *helpers.DeviceTokenManager
	cookies      *helpers.Manager
)

func SetConfig(c *config.Config) { cfg = c }
func GetConfig() *config.Config  { return cfg }
func SetLogger(l *logrus.Logger) { logger = l }
func GetLogger() *logrus.Logger {
	if logger != nil {
		return logger
	}
	return helpers.NewDiscardLogger()
}
func SetPGPool(p *pgxpool.Pool)               { pgPool = p }
func GetPGPool() *pgxpool.Pool                { return pgPool }
func SetRedis(r *redis.Client)                { redisClient = r }
func GetRedis() *redis.Client                 { return redisClient }
func SetGCS(s *storage.Client)                { gcsClient = s }
func GetGCS() *storage.Client                 { return gcsClient }
func SetES(c *elasticsearch.Client)           { esClient = c }
func GetES() *elasticsearch.Client            { return esClient }
func SetEmailPub(p *helpers.RabbitPublisher)  { emailPub = p }
func GetEmailPub() *helpers.RabbitPublisher   { return emailPub }
func SetEventsPub(p *helpers.RabbitPublisher) { eventsPub = p }
func GetEventsPub() *helpers.RabbitPublisher  { return eventsPub }

func SetStore(s *datastore.Store)                   { store = s }
func GetStore() *datastore.Store                    { return store }
func SetProfiles(p *datastore.ProfileRepository)    { profiles = p }
func GetProfiles() *datastore.ProfileRepository     { return profiles }
func SetIdentityFactory(f identity.Factory)         { factory = f }
func GetIdentityFactory() identity.Factory          { return factory }
func SetDirectory(d *localauth.Directory)           { directory = d }
func GetDirectory() *localauth.Directory            { return directory }
func SetRegistry(r *application.DeviceRegistry)     { registry = r }
func GetRegistry() *application.DeviceRegistry      { return registry }
func SetDeviceTokens(m *helpers.DeviceTokenManager) { deviceTokens = m }
func GetDeviceTokens() *helpers.DeviceTokenManager  { return deviceTokens }
func SetCookies(m *helpers.Manager)                 { cookies = m }
func GetCookies() *helpers.Manager                  { return cookies }
