package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/pkg/response"
)

// ConnectivityProbe reports the data layer's offline flag;
// *datastore.Store satisfies it.
type ConnectivityProbe interface {
	Offline() bool
	TestConnection(ctx context.Context) bool
}

type HealthHandler struct {
	Probe ConnectivityProbe
}

func NewHealthHandler(probe ConnectivityProbe) *HealthHandler {
	return &HealthHandler{Probe: probe}
}

type connectivityStatus struct {
	Offline bool `json:"offline"`
	Probed  bool `json:"probed"`
}

// Connectivity - GET /api/health/connectivity[?probe=true]
// A probe issues one read against the document store and updates the flag.
func (h *HealthHandler) Connectivity(c *gin.Context) {
	out := connectivityStatus{}
	if c.Query("probe") == "true" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		h.Probe.TestConnection(ctx)
		out.Probed = true
	}
	out.Offline = h.Probe.Offline()
	status := http.StatusOK
	msg := "online"
	if out.Offline {
		status = http.StatusServiceUnavailable
		msg = "offline"
	}
	response.Success(c, status, out, msg, nil)
}
