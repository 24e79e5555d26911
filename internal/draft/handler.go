package draft

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pigeon/internal/constants"
	"pigeon/internal/logger"
	"pigeon/pkg/errors"
)

type Handler struct {
	Service *Service
	Logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	drafts := router.Group("/drafts")
	{
		drafts.GET("", h.ListDrafts)
		drafts.POST("", h.CreateDraft)
		drafts.POST("/generate", h.GenerateDrafts)
		drafts.GET("/:id", h.GetDraft)
		drafts.POST("/:id/approve", h.ApproveDraft)
		drafts.POST("/:id/reject", h.RejectDraft)
	}
}

// ListDrafts godoc
// @Summary      List drafts
// @Tags         drafts
// @Produce      json
// @Param        campaign_id  query      string  false  "Filter by campaign"
// @Param        status       query      string  false  "Filter by status"
// @Param        limit        query      int     false  "Page size"
// @Param        offset       query      int     false  "Page offset"
// @Success      200          {array}    Draft
// @Failure      400          {object}   errors.ErrorResponse
// @Router       /drafts [get]
func (h *Handler) ListDrafts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultLimit)))
	if err != nil || limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	drafts, err := h.Service.List(c.Request.Context(), c.Query("campaign_id"), Status(c.Query("status")), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if drafts == nil {
		drafts = []Draft{}
	}
	c.JSON(http.StatusOK, drafts)
}

// CreateDraft godoc
// @Summary      Create a draft
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        draft  body       CreateDraftRequest  true  "Draft data"
// @Success      201    {object}   Draft
// @Failure      400    {object}   errors.ErrorResponse
// @Router       /drafts [post]
func (h *Handler) CreateDraft(c *gin.Context) {
	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err).WithMessage("invalid request body: %v", err))
		return
	}

	created, err := h.Service.Create(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GenerateDrafts godoc
// @Summary      Generate drafts for a campaign
// @Description  Create one pending-approval draft per recipient in the campaign's filtered audience
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        request  body       GenerateDraftsRequest  true  "Campaign reference"
// @Success      201      {array}    Draft
// @Failure      400      {object}   errors.ErrorResponse
// @Failure      404      {object}   errors.ErrorResponse
// @Router       /drafts/generate [post]
func (h *Handler) GenerateDrafts(c *gin.Context) {
	var req GenerateDraftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err).WithMessage("invalid request body: %v", err))
		return
	}

	drafts, err := h.Service.GenerateForCampaign(c.Request.Context(), req.CampaignID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, drafts)
}

// GetDraft godoc
// @Summary      Get a draft
// @Tags         drafts
// @Produce      json
// @Param        id   path       string  true  "Draft ID"
// @Success      200  {object}   Draft
// @Failure      404  {object}   errors.ErrorResponse
// @Router       /drafts/{id} [get]
func (h *Handler) GetDraft(c *gin.Context) {
	d, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ApproveDraft godoc
// @Summary      Approve a draft
// @Description  Approve a draft; drafts can be decided only once
// @Tags         drafts
// @Produce      json
// @Param        id   path       string  true  "Draft ID"
// @Success      200  {object}   Draft
// @Failure      404  {object}   errors.ErrorResponse
// @Failure      409  {object}   errors.ErrorResponse
// @Router       /drafts/{id}/approve [post]
func (h *Handler) ApproveDraft(c *gin.Context) {
	d, err := h.Service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// RejectDraft godoc
// @Summary      Reject a draft
// @Description  Reject a draft; drafts can be decided only once
// @Tags         drafts
// @Produce      json
// @Param        id   path       string  true  "Draft ID"
// @Success      200  {object}   Draft
// @Failure      404  {object}   errors.ErrorResponse
// @Failure      409  {object}   errors.ErrorResponse
// @Router       /drafts/{id}/reject [post]
func (h *Handler) RejectDraft(c *gin.Context) {
	d, err := h.Service.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
