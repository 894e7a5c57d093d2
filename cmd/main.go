package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oksasatya/go-storefront-session/config"
	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/internal/container"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	"github.com/oksasatya/go-storefront-session/internal/domain/policy"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/cache"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/datastore"
	esinfra "github.com/oksasatya/go-storefront-session/internal/infrastructure/elasticsearch"
	fsinfra "github.com/oksasatya/go-storefront-session/internal/infrastructure/firestore"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/identitytoolkit"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/localauth"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/messaging"
	pginfra "github.com/oksasatya/go-storefront-session/internal/infrastructure/postgres"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
	"github.com/oksasatya/go-storefront-session/internal/router"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
	"github.com/oksasatya/go-storefront-session/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	memoryMode := cfg.DocumentStore == "memory"

	// Postgres holds documents (DOCUMENT_STORE=postgres) and local accounts
	var pool *pgxpool.Pool
	if !memoryMode && (cfg.DocumentStore == "postgres" || cfg.IdentityProvider == "local") {
		var err error
		pool, err = pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
			MaxConns:    cfg.DBMaxConns,
			MinConns:    cfg.DBMinConns,
			MaxConnLife: cfg.DBMaxConnLife,
			AppName:     cfg.AppName,
		})
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}

	// Redis backs rate limits, local auth counters and the session mirror
	var rdb *redis.Client
	if !memoryMode {
		rdb = helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = rdb.Close() }()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			helpers.LogError(logger, "redis ping failed; limits fail open until it recovers", err, nil)
		}
		cancel()
	}

	// GCS for avatar uploads
	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init GCS client: %v", err)
		}
		defer func() { _ = gcsClient.Close() }()
		container.SetGCS(gcsClient)
	}

	// Elasticsearch profile index
	var indexer datastore.ProfileIndexer
	if !memoryMode && len(cfg.ESAddrs()) > 0 {
		esClient, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			log.Fatalf("failed to init elasticsearch: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := helpers.ESPing(pingCtx, esClient); err != nil {
			helpers.LogError(logger, "elasticsearch unreachable; profile indexing will log failures", err, nil)
		}
		cancel()
		container.SetES(esClient)
		indexer = esinfra.NewProfileIndex(esClient, cfg.ESProfilesIndex, logger)
	}

	// RabbitMQ: email jobs and session events
	var (
		emailQueue localauth.Enqueuer
		forwarder  application.Forwarder
	)
	if !memoryMode && cfg.RabbitMQURL != "" {
		if cfg.MailSendEnabled {
			pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
			if err != nil {
				log.Fatalf("failed to connect to rabbitmq: %v", err)
			}
			pub.AppID = cfg.AppName
			defer pub.Close()
			container.SetEmailPub(pub)
			emailQueue = pub
		}
		events, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEventsQueue)
		if err != nil {
			helpers.LogError(logger, "session events disabled", err, logrus.Fields{"queue": cfg.RabbitMQEventsQueue})
		} else {
			events.AppID = cfg.AppName
			defer events.Close()
			container.SetEventsPub(events)
			forwarder = messaging.NewVerifiedForwarder(events)
		}
	}

	// Document store with retry policy
	backend, closeBackend := openBackend(ctx, cfg, pool)
	defer closeBackend()
	store := datastore.NewStore(backend,
		datastore.WithRetryPolicy(datastore.RetryPolicy{
			MaxRetries: cfg.RetryMaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			Multiplier: cfg.RetryMultiplier,
		}),
		datastore.WithLogger(logger),
	)
	profiles := datastore.NewProfileRepository(store, cfg.ProfilesCollection, indexer, logger)

	// Identity provider
	var factory identity.Factory
	switch cfg.IdentityProvider {
	case "identitytoolkit":
		client, err := identitytoolkit.NewClient(ctx, cfg.IdentityToolkitAPIKey)
		if err != nil {
			log.Fatalf("failed to init identity toolkit: %v", err)
		}
		factory = client
	case "local":
		var (
			accounts repo.AccountRepository
			kv       localauth.KeyValue
		)
		if memoryMode {
			accounts, kv = localauth.NewMemoryAccounts(), localauth.NewMemoryKV()
		} else {
			accounts, kv = pginfra.NewAccountRepository(pool), localauth.NewRedisKV(rdb)
		}
		dir := localauth.NewDirectory(accounts, kv, emailQueue, localauth.Options{
			VerifyURL:     cfg.VerifyEmailURL,
			TokenTTL:      cfg.VerifyTokenTTL,
			AttemptLimit:  cfg.AuthAttemptLimit,
			AttemptWindow: cfg.AuthAttemptWindow,
			SendInterval:  cfg.VerifySendInterval,
			Brand:         cfg.Brand(),
			MailEnabled:   cfg.MailSendEnabled,
		}, logger)
		container.SetDirectory(dir)
		factory = dir
	default:
		log.Fatalf("unknown IDENTITY_PROVIDER %q", cfg.IdentityProvider)
	}

	var mirror application.SessionMirror
	if rdb != nil {
		mirror = cache.NewSessionMirror(rdb)
	}
	registry := application.NewDeviceRegistry(application.DeviceRegistryConfig{
		Factory:   factory,
		Profiles:  profiles,
		Allowlist: policy.ParseAllowlist(cfg.VerificationBypassEmails),
		Forwarder: forwarder,
		Mirror:    mirror,
		IdleTTL:   cfg.DeviceIdleTTL,
		Logger:    logger,
	})
	go registry.Run(ctx, time.Minute)

	// Provide singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetStore(store)
	container.SetProfiles(profiles)
	container.SetIdentityFactory(factory)
	container.SetRegistry(registry)
	container.SetDeviceTokens(helpers.NewDeviceTokenManager(cfg.DeviceTokenSecret, cfg.DeviceTokenTTL))
	container.SetCookies(helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure))

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	// CORS
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	routes := reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		helpers.LogInfo(logger, "server starting", logrus.Fields{
			"port":              cfg.Port,
			"routes":            routes,
			"document_store":    cfg.DocumentStore,
			"identity_provider": cfg.IdentityProvider,
		})
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
	stopBackground()
	registry.Close(ctxShutdown)
	logger.Info("server exited properly")
}

// openBackend picks the document backend named by DOCUMENT_STORE.
func openBackend(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (repo.DocumentStore, func()) {
	switch cfg.DocumentStore {
	case "memory":
		return datastore.NewMemory(), func() {}
	case "postgres":
		return pginfra.NewDocumentStore(pool), func() {}
	case "firestore":
		// same service account as GCS when a key file is configured
		client, err := fsinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init firestore: %v", err)
		}
		return fsinfra.NewDocumentStore(client), func() { _ = client.Close() }
	}
	log.Fatalf("unknown DOCUMENT_STORE %q", cfg.DocumentStore)
	return nil, nil
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	// Open sql DB via pgx stdlib
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}
