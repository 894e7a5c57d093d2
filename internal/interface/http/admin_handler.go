package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/cache"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/elasticsearch"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
	"github.com/oksasatya/go-storefront-session/pkg/response"
)

// ProfileSearcher is the full-text profile lookup.
type ProfileSearcher interface {
	Search(ctx context.Context, q string, size int) ([]elasticsearch.ProfileHit, error)
}

// SessionLookup reads mirrored device sessions.
type SessionLookup interface {
	Load(ctx context.Context, deviceID string) (*cache.MirroredSession, error)
}

type AdminHandler struct {
	Profiles repo.ProfileRepository
	Search   ProfileSearcher
	Sessions SessionLookup
	Logger   *logrus.Logger
}

func NewAdminHandler(profiles repo.ProfileRepository, search ProfileSearcher, sessions SessionLookup, logger *logrus.Logger) *AdminHandler {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &AdminHandler{Profiles: profiles, Search: search, Sessions: sessions, Logger: logger}
}

// ListProfiles - GET /api/admin/profiles?role=&verified=&limit=
func (h *AdminHandler) ListProfiles(c *gin.Context) {
	var f repo.ProfileFilter
	if r := c.Query("role"); r != "" {
		role, err := entity.ParseRole(r)
		if err != nil {
			response.Error[any](c, http.StatusBadRequest, "unknown role", gin.H{"role": r})
			return
		}
		f.Role = role
	}
	if v := c.Query("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.Error[any](c, http.StatusBadRequest, "verified must be true or false", nil)
			return
		}
		f.Verified = &b
	}
	f.Limit = queryInt(c, "limit", 50, 200)

	profiles, err := h.Profiles.List(c.Request.Context(), f)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, profiles, "profiles", gin.H{"count": len(profiles)})
}

// SearchProfiles - GET /api/admin/profiles/search?q=&size=
func (h *AdminHandler) SearchProfiles(c *gin.Context) {
	if h.Search == nil {
		response.Error[any](c, http.StatusNotFound, "profile search disabled", nil)
		return
	}
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "q is required", nil)
		return
	}
	hits, err := h.Search.Search(c.Request.Context(), q, queryInt(c, "size", 10, 50))
	if err != nil {
		h.Logger.WithError(err).Warn("profile search failed")
		response.Error[any](c, http.StatusBadGateway, "search unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", gin.H{"count": len(hits)})
}

// DeviceSession - GET /api/admin/devices/:id/session
func (h *AdminHandler) DeviceSession(c *gin.Context) {
	if h.Sessions == nil {
		response.Error[any](c, http.StatusNotFound, "session mirror disabled", nil)
		return
	}
	rec, err := h.Sessions.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Logger.WithError(err).Warn("load mirrored session failed")
		response.Error[any](c, http.StatusBadGateway, "session mirror unavailable", nil)
		return
	}
	if rec == nil {
		response.Error[any](c, http.StatusNotFound, "no session for device", nil)
		return
	}
	response.Success(c, http.StatusOK, rec, "device session", nil)
}

func queryInt(c *gin.Context, key string, def, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
