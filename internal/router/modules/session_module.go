package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/internal/container"
	handlers "github.com/oksasatya/go-storefront-session/internal/interface/http"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
)

// SessionModule exposes the device's session state.
// GET /api/session, POST /api/session/foreground, DELETE /api/session/verification-event
// Signed in: PATCH /api/session/profile, POST /api/session/avatar
type SessionModule struct {
	Handler *handlers.SessionHandler
	Device  gin.HandlerFunc
}

func NewSessionModule(h *handlers.SessionHandler, device gin.HandlerFunc) *SessionModule {
	return &SessionModule{Handler: h, Device: device}
}

func (m *SessionModule) Register(rg *gin.RouterGroup) {
	s := rg.Group("/session")
	s.Use(m.Device)
	s.Use(middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByDevice(), nil))
	{
		s.GET("", m.Handler.Get)
		s.POST("/foreground", m.Handler.Foreground)
		s.DELETE("/verification-event", m.Handler.ClearVerificationEvent)
		s.PATCH("/profile", middleware.RequireSession(), m.Handler.UpdateProfile)
		s.POST("/avatar", middleware.RequireSession(), m.Handler.UploadAvatar)
	}
}
