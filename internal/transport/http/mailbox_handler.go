package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vmail/backend/internal/domain"
	"vmail/backend/internal/service"
)

// MailboxHandler serves /v1/admin/mailboxes.
type MailboxHandler struct {
	directory *service.DirectoryService
	log       *zap.Logger
}

// NewMailboxHandler creates the handler.
func NewMailboxHandler(directory *service.DirectoryService, log *zap.Logger) *MailboxHandler {
	return &MailboxHandler{directory: directory, log: log}
}

type createMailboxRequest struct {
	Email        string  `json:"email" binding:"required"`
	Password     *string `json:"password"`
	CreateDomain bool    `json:"createDomain"`
}

type setPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func views(users []domain.MailUser) []domain.MailUserView {
	out := make([]domain.MailUserView, 0, len(users))
	for i := range users {
		out = append(out, users[i].View())
	}
	return out
}

// List godoc
// @Summary List mailboxes
// @Tags Mailboxes
// @Produce json
// @Param domain query string false "restrict to one domain"
// @Success 200 {array} domain.MailUserView
// @Router /v1/admin/mailboxes [get]
func (h *MailboxHandler) List(c *gin.Context) {
	users, err := h.directory.ListMailUsers(c.Request.Context(), c.Query("domain"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, views(users))
}

// Create godoc
// @Summary Create a mailbox
// @Description Creates username@domain. With createDomain the domain is added first when missing.
// @Tags Mailboxes
// @Accept json
// @Produce json
// @Param request body createMailboxRequest true "mailbox"
// @Success 201 {object} domain.MailUserView
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /v1/admin/mailboxes [post]
func (h *MailboxHandler) Create(c *gin.Context) {
	var req createMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	u, err := h.directory.AddMailbox(c.Request.Context(), req.Email, req.CreateDomain, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Created(c, u.View())
}

// Get returns one mailbox.
func (h *MailboxHandler) Get(c *gin.Context) {
	u, err := h.directory.ResolveMailUser(c.Request.Context(), c.Param("email"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, u.View())
}

// SetActive toggles the active flag.
func (h *MailboxHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	u, err := h.directory.SetMailUserActive(c.Request.Context(), c.Param("email"), *req.Active)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, u.View())
}

// Delete removes a mailbox.
func (h *MailboxHandler) Delete(c *gin.Context) {
	if err := h.directory.DeleteMailUser(c.Request.Context(), c.Param("email")); err != nil {
		writeError(c, h.log, err)
		return
	}
	NoContent(c)
}

// SetPassword replaces the password without checking the old one.
func (h *MailboxHandler) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.directory.SetPassword(c.Request.Context(), c.Param("email"), req.Password); err != nil {
		writeError(c, h.log, err)
		return
	}
	NoContent(c)
}

// ChangePassword replaces the password after verifying the current one.
func (h *MailboxHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.directory.ChangePassword(c.Request.Context(), c.Param("email"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	NoContent(c)
}
