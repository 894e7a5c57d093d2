package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
	"github.com/oksasatya/go-storefront-session/pkg/response"
	"github.com/oksasatya/go-storefront-session/pkg/validation"
)

const maxAvatarBytes = 5 << 20

// AvatarStore uploads a profile picture and returns its public URL;
// *helpers.AvatarUploader satisfies it.
type AvatarStore interface {
	Upload(ctx context.Context, uid, filename, contentType string, r io.Reader) (string, error)
}

type SessionHandler struct {
	Logger  *logrus.Logger
	Avatars AvatarStore
}

func NewSessionHandler(logger *logrus.Logger, avatars AvatarStore) *SessionHandler {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &SessionHandler{Logger: logger, Avatars: avatars}
}

// Get - GET /api/session
func (h *SessionHandler) Get(c *gin.Context) {
	d := middleware.DeviceFrom(c)
	response.Success(c, http.StatusOK, middleware.ReadySnapshot(c, d), "session", nil)
}

// ClearVerificationEvent - DELETE /api/session/verification-event
func (h *SessionHandler) ClearVerificationEvent(c *gin.Context) {
	d := middleware.DeviceFrom(c)
	d.Manager.ClearVerificationEvent()
	response.Success(c, http.StatusOK, d.Manager.Snapshot(), "verification event cleared", nil)
}

// Foreground - POST /api/session/foreground
// The client calls this when the app returns to the foreground.
func (h *SessionHandler) Foreground(c *gin.Context) {
	d := middleware.DeviceFrom(c)
	d.Foreground(c.Request.Context())
	response.Success(c, http.StatusOK, d.Manager.Snapshot(), "session refreshed", nil)
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,displayname"`
	PhotoURL    *string `json:"photo_url" binding:"omitempty,url"`
}

// UpdateProfile - PATCH /api/session/profile
// Changes stay on this device's session and are not persisted.
func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	d := middleware.DeviceFrom(c)
	id, err := d.Manager.UpdateUserProfile(application.ProfilePatch{DisplayName: req.DisplayName, PhotoURL: req.PhotoURL})
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, id, "profile updated", nil)
}

// UploadAvatar - POST /api/session/avatar (multipart field "avatar")
func (h *SessionHandler) UploadAvatar(c *gin.Context) {
	d := middleware.DeviceFrom(c)
	current := d.Manager.Snapshot().Identity
	if current == nil {
		fail(c, h.Logger, &application.OperationError{Op: "upload avatar", Message: "You need to be logged in to update your profile.", Err: application.ErrNotSignedIn})
		return
	}

	fh, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file is required", nil)
		return
	}
	if fh.Size > maxAvatarBytes {
		response.Error[any](c, http.StatusRequestEntityTooLarge, "avatar must be 5MB or smaller", nil)
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		response.Error[any](c, http.StatusUnsupportedMediaType, "avatar must be an image", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "could not read avatar", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Avatars.Upload(c.Request.Context(), current.UID, fh.Filename, contentType, f)
	if err != nil {
		if errors.Is(err, helpers.ErrStorageNotConfigured) {
			response.Error[any](c, http.StatusServiceUnavailable, "avatar uploads are not configured", nil)
			return
		}
		h.Logger.WithError(err).WithField("uid", current.UID).Error("avatar upload failed")
		response.Error[any](c, http.StatusBadGateway, "avatar upload failed", nil)
		return
	}
	id, err := d.Manager.UpdateUserProfile(application.ProfilePatch{PhotoURL: &url})
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, id, "avatar uploaded", nil)
}
