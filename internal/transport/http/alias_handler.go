package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vmail/backend/internal/service"
)

// AliasHandler serves /v1/admin/aliases.
type AliasHandler struct {
	directory *service.DirectoryService
	log       *zap.Logger
}

// NewAliasHandler creates the handler.
func NewAliasHandler(directory *service.DirectoryService, log *zap.Logger) *AliasHandler {
	return &AliasHandler{directory: directory, log: log}
}

type createAliasRequest struct {
	Domain       string `json:"domain" binding:"required"`
	Source       string `json:"source"`
	Destination  string `json:"destination" binding:"required"`
	CreateDomain bool   `json:"createDomain"`
}

// List returns aliases, optionally for one owning domain.
func (h *AliasHandler) List(c *gin.Context) {
	aliases, err := h.directory.ListAliases(c.Request.Context(), c.Query("domain"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, aliases)
}

// Create godoc
// @Summary Create an alias
// @Description An empty source local part makes a catch-all.
// @Tags Aliases
// @Accept json
// @Produce json
// @Param request body createAliasRequest true "alias"
// @Success 201 {object} domain.Alias
// @Router /v1/admin/aliases [post]
func (h *AliasHandler) Create(c *gin.Context) {
	var req createAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	a, err := h.directory.AddAlias(c.Request.Context(), req.Domain, req.Source, req.Destination, req.CreateDomain)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Created(c, a)
}

// Get returns one alias.
func (h *AliasHandler) Get(c *gin.Context) {
	a, err := h.directory.GetAlias(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, a)
}

// SetActive toggles the active flag.
func (h *AliasHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	a, err := h.directory.SetAliasActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, a)
}

// Delete removes an alias.
func (h *AliasHandler) Delete(c *gin.Context) {
	if err := h.directory.DeleteAlias(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	NoContent(c)
}
