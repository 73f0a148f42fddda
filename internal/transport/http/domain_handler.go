package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vmail/backend/internal/service"
)

// DomainHandler serves /v1/admin/domains.
type DomainHandler struct {
	directory *service.DirectoryService
	log       *zap.Logger
}

// NewDomainHandler creates the handler.
func NewDomainHandler(directory *service.DirectoryService, log *zap.Logger) *DomainHandler {
	return &DomainHandler{directory: directory, log: log}
}

type createDomainRequest struct {
	Fqdn string `json:"fqdn" binding:"required"`
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// List godoc
// @Summary List domains
// @Tags Domains
// @Produce json
// @Success 200 {array} domain.DomainSummary
// @Router /v1/admin/domains [get]
func (h *DomainHandler) List(c *gin.Context) {
	domains, err := h.directory.ListDomains(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, domains)
}

// Create godoc
// @Summary Create a domain
// @Tags Domains
// @Accept json
// @Produce json
// @Param request body createDomainRequest true "domain"
// @Success 201 {object} domain.Domain
// @Failure 409 {object} Response
// @Router /v1/admin/domains [post]
func (h *DomainHandler) Create(c *gin.Context) {
	var req createDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	d, err := h.directory.CreateDomain(c.Request.Context(), req.Fqdn)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Created(c, d)
}

// Get returns one domain.
func (h *DomainHandler) Get(c *gin.Context) {
	d, err := h.directory.GetDomain(c.Request.Context(), c.Param("fqdn"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, d)
}

// SetActive toggles the active flag.
func (h *DomainHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	d, err := h.directory.SetDomainActive(c.Request.Context(), c.Param("fqdn"), *req.Active)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Success(c, d)
}

// Delete removes a domain that owns nothing.
func (h *DomainHandler) Delete(c *gin.Context) {
	if err := h.directory.DeleteDomain(c.Request.Context(), c.Param("fqdn")); err != nil {
		writeError(c, h.log, err)
		return
	}
	NoContent(c)
}
