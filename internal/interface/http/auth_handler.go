package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
	"github.com/oksasatya/go-storefront-session/pkg/response"
	"github.com/oksasatya/go-storefront-session/pkg/validation"
)

// Confirmer redeems emailed verification tokens. Only the self-hosted
// identity provider has one.
type Confirmer interface {
	ConfirmVerification(ctx context.Context, token string) (*entity.Identity, error)
}

type AuthHandler struct {
	Logger    *logrus.Logger
	Confirmer Confirmer
	// ErrInvalidToken is what Confirmer returns for unknown or used tokens.
	ErrInvalidToken error
}

func NewAuthHandler(logger *logrus.Logger, confirmer Confirmer, errInvalidToken error) *AuthHandler {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &AuthHandler{Logger: logger, Confirmer: confirmer, ErrInvalidToken: errInvalidToken}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,pwd"`
	DisplayName string `json:"display_name" binding:"omitempty,displayname"`
	// accounts created here are always customers; admins are seeded
	Role        string `json:"role" binding:"omitempty,oneof=customer"`
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Signup - POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	d := middleware.DeviceFrom(c)
	res, err := d.Manager.Signup(c.Request.Context(), req.Email, req.Password, req.DisplayName, entity.RoleCustomer)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, res, res.Message, nil)
}

// Login - POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	d := middleware.DeviceFrom(c)
	snap, err := d.Manager.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, snap, "login successful", nil)
}

// Logout - POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	d := middleware.DeviceFrom(c)
	if err := d.Manager.Logout(c.Request.Context()); err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, d.Manager.Snapshot(), "logged out", nil)
}

// ResendVerification - POST /api/auth/verification/resend
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	d := middleware.DeviceFrom(c)
	res, err := d.Manager.ResendVerificationEmail(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, res, res.Message, nil)
}

// CheckVerification - POST /api/auth/verification/check
func (h *AuthHandler) CheckVerification(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	d := middleware.DeviceFrom(c)
	res, err := d.Manager.CheckEmailVerification(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, res, res.Message, nil)
}

// VerifyConfirm - POST /api/auth/verify/confirm {token}
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.Confirmer == nil {
		response.Error[any](c, http.StatusNotFound, "verification links are handled by the identity provider", nil)
		return
	}
	id, err := h.Confirmer.ConfirmVerification(c.Request.Context(), req.Token)
	if err != nil {
		if h.ErrInvalidToken != nil && errors.Is(err, h.ErrInvalidToken) {
			response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
			return
		}
		fail(c, h.Logger, err)
		return
	}
	h.Logger.WithField("uid", id.UID).Info("email verified via link")
	response.Success[any](c, http.StatusOK, gin.H{"verified": true, "email": id.Email}, "email verified", nil)
}
