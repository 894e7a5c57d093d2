package router

import (
	"github.com/oksasatya/go-storefront-session/internal/container"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/cache"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/elasticsearch"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/localauth"
	handlers "github.com/oksasatya/go-storefront-session/internal/interface/http"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
	"github.com/oksasatya/go-storefront-session/internal/router/modules"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

type HandlerDeps struct {
	Auth    *handlers.AuthHandler
	Session *handlers.SessionHandler
	Admin   *handlers.AdminHandler
	Health  *handlers.HealthHandler
}

func buildHandlers() HandlerDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	// optional collaborators stay untyped nil when their backend is off
	var confirmer handlers.Confirmer
	if d := container.GetDirectory(); d != nil {
		confirmer = d
	}
	var search handlers.ProfileSearcher
	if es := container.GetES(); es != nil {
		search = elasticsearch.NewProfileIndex(es, cfg.ESProfilesIndex, logger)
	}
	var sessions handlers.SessionLookup
	if rdb := container.GetRedis(); rdb != nil {
		sessions = cache.NewSessionMirror(rdb)
	}

	return HandlerDeps{
		Auth:    handlers.NewAuthHandler(logger, confirmer, localauth.ErrInvalidToken),
		Session: handlers.NewSessionHandler(logger, helpers.NewAvatarUploader(container.GetGCS(), cfg.GCSBucket)),
		Admin:   handlers.NewAdminHandler(container.GetProfiles(), search, sessions, logger),
		Health:  handlers.NewHealthHandler(container.GetStore()),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	deps := buildHandlers()
	device := middleware.Device(container.GetRegistry(), container.GetDeviceTokens(), container.GetCookies())

	r.Add(modules.NewHealthModule(deps.Health))
	r.Add(modules.NewAuthModule(deps.Auth, device))
	r.Add(modules.NewSessionModule(deps.Session, device))
	r.Add(modules.NewAdminModule(deps.Admin, device))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
