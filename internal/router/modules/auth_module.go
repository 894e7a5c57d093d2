package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/internal/container"
	handlers "github.com/oksasatya/go-storefront-session/internal/interface/http"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
)

// AuthModule wires the account lifecycle endpoints.
// Public: POST /api/auth/verify/confirm
// Device-bound: signup, login, logout, verification resend and check
type AuthModule struct {
	Handler *handlers.AuthHandler
	Device  gin.HandlerFunc
}

func NewAuthModule(h *handlers.AuthHandler, device gin.HandlerFunc) *AuthModule {
	return &AuthModule{Handler: h, Device: device}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	verifyConfirmLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	rg.POST("/auth/verify/confirm", verifyConfirmLimiter, m.Handler.VerifyConfirm)

	auth := rg.Group("/auth")
	auth.Use(m.Device)
	// credentials are tried per IP and per device
	auth.Use(
		middleware.RateLimit(rdb, 20, time.Minute, middleware.KeyByIPAndPath(), nil),
		middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByDevice(), nil),
	)
	{
		auth.POST("/signup", m.Handler.Signup)
		auth.POST("/login", m.Handler.Login)
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/verification/resend", m.Handler.ResendVerification)
		auth.POST("/verification/check", m.Handler.CheckVerification)
	}
}
