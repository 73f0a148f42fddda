package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/service"
)

// AuthHandler answers credential checks for the mail server.
type AuthHandler struct {
	directory *service.DirectoryService
	log       *zap.Logger
}

// NewAuthHandler creates the handler.
func NewAuthHandler(directory *service.DirectoryService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{directory: directory, log: log}
}

type verifyRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

// Verify godoc
// @Summary Verify mailbox credentials
// @Description Every failure other than rate limiting reports 401 without detail.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body verifyRequest true "credentials"
// @Success 200 {object} domain.MailUserView
// @Failure 401 {object} Response
// @Failure 429 {object} Response
// @Router /v1/auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	u, err := h.directory.Authenticate(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		Success(c, u.View())
	case errors.Is(err, domain.ErrTooManyAttempts):
		Error(c, http.StatusTooManyRequests, err.Error())
	case statusFor(err) == http.StatusInternalServerError:
		writeError(c, h.log, err)
	default:
		Error(c, http.StatusUnauthorized, MsgInvalidCredentials)
	}
}
