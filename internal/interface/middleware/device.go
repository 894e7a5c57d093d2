package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
	"github.com/oksasatya/go-storefront-session/pkg/response"
)

const (
	CtxDeviceIDKey = "deviceID"
	ctxDeviceKey   = "device"
)

// DeviceSource hands out the live device for an id; *application.DeviceRegistry
// satisfies it.
type DeviceSource interface {
	Get(ctx context.Context, id string) *application.Device
}

// Device resolves the device cookie to a live device, minting a new device id
// when the cookie is missing or invalid. The cookie is re-signed on every
// request so an active device never expires.
func Device(devices DeviceSource, tokens *helpers.DeviceTokenManager, cookies *helpers.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id string
		if tok, err := c.Cookie(helpers.DeviceCookie); err == nil && tok != "" {
			if claims, err := tokens.Parse(tok); err == nil {
				id = claims.DeviceID
			}
		}

		var (
			token string
			exp   time.Time
			err   error
		)
		if id == "" {
			token, id, exp, err = tokens.Issue()
		} else {
			token, exp, err = tokens.Sign(id)
		}
		if err != nil {
			response.Error[any](c, http.StatusInternalServerError, "could not issue device token", nil)
			c.Abort()
			return
		}
		cookies.SetDevice(c, token, exp)

		c.Set(CtxDeviceIDKey, id)
		c.Set(ctxDeviceKey, devices.Get(c.Request.Context(), id))
		c.Next()
	}
}

// DeviceFrom returns the device attached by Device, or nil.
func DeviceFrom(c *gin.Context) *application.Device {
	v, ok := c.Get(ctxDeviceKey)
	if !ok {
		return nil
	}
	d, _ := v.(*application.Device)
	return d
}
