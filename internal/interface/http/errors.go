package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/pkg/response"
)

// statusFor maps an operation failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrVerificationRequired):
		return http.StatusForbidden
	case errors.Is(err, application.ErrVerificationEmailNotSent):
		return http.StatusAccepted
	case errors.Is(err, application.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrNotSignedIn):
		return http.StatusUnauthorized
	}
	if code, ok := identity.CodeOf(err); ok {
		switch code {
		case identity.CodeUnknownAccount, identity.CodeWrongCredentials:
			return http.StatusUnauthorized
		case identity.CodeEmailInUse:
			return http.StatusConflict
		case identity.CodeWeakPassword, identity.CodeInvalidEmail:
			return http.StatusBadRequest
		case identity.CodeTooManyRequests:
			return http.StatusTooManyRequests
		case identity.CodeNetwork:
			return http.StatusServiceUnavailable
		}
	}
	if errors.Is(err, repo.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorCode is the machine-readable part of an error envelope.
func errorCode(err error) string {
	switch {
	case errors.Is(err, application.ErrVerificationRequired):
		return "verification-required"
	case errors.Is(err, application.ErrVerificationEmailNotSent):
		return "verification-email-not-sent"
	case errors.Is(err, application.ErrInvalidRole):
		return "invalid-role"
	case errors.Is(err, application.ErrNotSignedIn):
		return "not-signed-in"
	}
	if code, ok := identity.CodeOf(err); ok {
		return string(code)
	}
	if errors.Is(err, repo.ErrUnavailable) {
		return "unavailable"
	}
	return "internal"
}

func fail(c *gin.Context, logger *logrus.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request failed")
	}
	response.Error[any](c, status, application.UserMessage(err), gin.H{"code": errorCode(err)})
}
