package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vmail/backend/internal/domain"
)

// Fixed messages for failures whose error text must not reach clients.
const (
	MsgInvalidRequest     = "invalid request body"
	MsgInternalError      = "internal server error"
	MsgInvalidCredentials = "invalid credentials"
)

// statusFor maps directory errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidEmailFormat),
		errors.Is(err, domain.ErrEncoding):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDomainNotFound),
		errors.Is(err, domain.ErrMailUserNotFound),
		errors.Is(err, domain.ErrAliasNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, domain.ErrDomainInUse):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIncorrectPassword),
		errors.Is(err, domain.ErrInactive):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError replies with the mapped status. Unmapped errors are logged and
// hidden behind a generic message.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		Error(c, status, MsgInternalError)
		return
	}
	Error(c, status, err.Error())
}
