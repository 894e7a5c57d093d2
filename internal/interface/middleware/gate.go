package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/internal/domain/policy"
	"github.com/oksasatya/go-storefront-session/pkg/response"
)

const readyTimeout = 3 * time.Second

// ReadySnapshot waits for the device's initial load, bounded by the request
// context and a short timeout, then returns its snapshot.
func ReadySnapshot(c *gin.Context, d *application.Device) application.Snapshot {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	d.Manager.WaitReady(ctx)
	return d.Manager.Snapshot()
}

// RequireDestination lets the request through only when the device's routing
// decision is one of allowed. Everything else gets 401 when signed out and
// 403 otherwise.
func RequireDestination(allowed ...policy.Destination) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := DeviceFrom(c)
		if d == nil {
			response.Error[any](c, http.StatusUnauthorized, "no device session", nil)
			c.Abort()
			return
		}
		snap := ReadySnapshot(c, d)
		for _, a := range allowed {
			if snap.Destination == a {
				c.Next()
				return
			}
		}
		switch snap.Destination {
		case policy.DestinationLogin:
			response.Error[any](c, http.StatusUnauthorized, "sign in required", gin.H{"destination": snap.Destination})
		case policy.DestinationLoading:
			response.Error[any](c, http.StatusServiceUnavailable, "session is still loading", gin.H{"destination": snap.Destination})
		default:
			response.Error[any](c, http.StatusForbidden, "not allowed", gin.H{"destination": snap.Destination})
		}
		c.Abort()
	}
}

// RequireSession admits any active session that cleared the verification gate.
func RequireSession() gin.HandlerFunc {
	return RequireDestination(policy.DestinationStorefront, policy.DestinationAdminHome)
}

// RequireAdmin admits verified admin sessions only.
func RequireAdmin() gin.HandlerFunc {
	return RequireDestination(policy.DestinationAdminHome)
}
