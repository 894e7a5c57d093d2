package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const DeviceCookie = "device_token"

type Manager struct {
	Domain string
	Secure bool
}

func NewCookie(domain string, secure bool) *Manager {
	return &Manager{Domain: domain, Secure: secure}
}

// SetDevice stores the signed device token.
func (m *Manager) SetDevice(c *gin.Context, token string, exp time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(DeviceCookie, token, maxAgeFrom(exp), "/", m.Domain, m.Secure, true)
}

func (m *Manager) ClearDevice(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(DeviceCookie, "", -1, "/", m.Domain, m.Secure, true)
}

func maxAgeFrom(exp time.Time) int {
	sec := int(time.Until(exp).Seconds())
	if sec < 0 {
		return 0
	}
	return sec
}
