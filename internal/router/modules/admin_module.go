package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/internal/container"
	handlers "github.com/oksasatya/go-storefront-session/internal/interface/http"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
)

// AdminModule serves the admin_home destination. Every route requires an
// admin session on the calling device.
type AdminModule struct {
	Handler *handlers.AdminHandler
	Device  gin.HandlerFunc
}

func NewAdminModule(h *handlers.AdminHandler, device gin.HandlerFunc) *AdminModule {
	return &AdminModule{Handler: h, Device: device}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(m.Device, middleware.RequireAdmin())
	admin.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByDevice(), nil))
	{
		admin.GET("/profiles", m.Handler.ListProfiles)
		admin.GET("/profiles/search", m.Handler.SearchProfiles)
		admin.GET("/devices/:id/session", m.Handler.DeviceSession)
	}
}
