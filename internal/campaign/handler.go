package campaign

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pigeon/internal/logger"
	"pigeon/pkg/errors"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
	Service *Service
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		Service:     service,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	campaigns := router.Group("/campaigns")
	{
		campaigns.GET("", h.ListCampaigns)
		campaigns.POST("", h.CreateCampaign)
		campaigns.GET("/:id", h.GetCampaign)
		campaigns.PUT("/:id", h.UpdateCampaign)
		campaigns.DELETE("/:id", h.DeleteCampaign)
		campaigns.POST("/:id/schedule", h.ScheduleCampaign)
		campaigns.POST("/:id/pause", h.PauseCampaign)
		campaigns.POST("/:id/resume", h.ResumeCampaign)
		campaigns.GET("/:id/metrics", h.GetCampaignMetrics)
	}
}

// ListCampaigns godoc
// @Summary      List campaigns
// @Description  Get all campaigns, optionally filtered by status
// @Tags         campaigns
// @Produce      json
// @Param        status  query      string  false  "Filter by status"
// @Success      200     {array}    Campaign
// @Failure      400     {object}   errors.ErrorResponse
// @Router       /campaigns [get]
func (h *Handler) ListCampaigns(c *gin.Context) {
	status := Status(c.Query("status"))
	if status != "" && !status.Valid() {
		h.HandleError(c, errors.ErrValidation.WithMessage("unknown status: %s", status))
		return
	}
	c.JSON(http.StatusOK, h.Service.List(c.Request.Context(), status))
}

// CreateCampaign godoc
// @Summary      Create a campaign
// @Description  Create a new campaign in draft status
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        campaign  body       CreateCampaignRequest  true  "Campaign data"
// @Success      201       {object}   Campaign
// @Failure      400       {object}   errors.ErrorResponse
// @Failure      409       {object}   errors.ErrorResponse
// @Router       /campaigns [post]
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err).WithMessage("invalid request body: %v", err))
		return
	}

	created, err := h.Service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetCampaign godoc
// @Summary      Get a campaign
// @Tags         campaigns
// @Produce      json
// @Param        id   path       string  true  "Campaign ID"
// @Success      200  {object}   Campaign
// @Failure      404  {object}   errors.ErrorResponse
// @Router       /campaigns/{id} [get]
func (h *Handler) GetCampaign(c *gin.Context) {
	campaign, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// UpdateCampaign godoc
// @Summary      Update a campaign
// @Description  Update campaign content, audience or approval; status is not updatable here
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id        path       string                 true  "Campaign ID"
// @Param        campaign  body       UpdateCampaignRequest  true  "Fields to update"
// @Success      200       {object}   Campaign
// @Failure      400       {object}   errors.ErrorResponse
// @Failure      404       {object}   errors.ErrorResponse
// @Failure      409       {object}   errors.ErrorResponse
// @Router       /campaigns/{id} [put]
func (h *Handler) UpdateCampaign(c *gin.Context) {
	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err).WithMessage("invalid request body: %v", err))
		return
	}

	updated, err := h.Service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteCampaign godoc
// @Summary      Delete a campaign
// @Description  Cancel all queued jobs, mark the campaign cancelled and remove it
// @Tags         campaigns
// @Param        id  path  string  true  "Campaign ID"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /campaigns/{id} [delete]
func (h *Handler) DeleteCampaign(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ScheduleCampaign godoc
// @Summary      Schedule a campaign
// @Description  Attach a schedule and submit jobs; past start dates execute immediately
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id        path       string                   true  "Campaign ID"
// @Param        schedule  body       ScheduleCampaignRequest  true  "Schedule"
// @Success      200       {object}   Campaign
// @Failure      400       {object}   errors.ErrorResponse
// @Failure      404       {object}   errors.ErrorResponse
// @Failure      409       {object}   errors.ErrorResponse
// @Router       /campaigns/{id}/schedule [post]
func (h *Handler) ScheduleCampaign(c *gin.Context) {
	var req ScheduleCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err).WithMessage("invalid request body: %v", err))
		return
	}

	scheduled, err := h.Service.Schedule(c.Request.Context(), c.Param("id"), req.Schedule)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, scheduled)
}

// PauseCampaign godoc
// @Summary      Pause a campaign
// @Description  Remove queued jobs and set status to paused
// @Tags         campaigns
// @Produce      json
// @Param        id   path       string  true  "Campaign ID"
// @Success      200  {object}   Campaign
// @Failure      404  {object}   errors.ErrorResponse
// @Failure      409  {object}   errors.ErrorResponse
// @Router       /campaigns/{id}/pause [post]
func (h *Handler) PauseCampaign(c *gin.Context) {
	paused, err := h.Service.Pause(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, paused)
}

// ResumeCampaign godoc
// @Summary      Resume a paused campaign
// @Description  Re-derive jobs from the stored schedule and set status to active
// @Tags         campaigns
// @Produce      json
// @Param        id   path       string  true  "Campaign ID"
// @Success      200  {object}   Campaign
// @Failure      404  {object}   errors.ErrorResponse
// @Failure      409  {object}   errors.ErrorResponse
// @Router       /campaigns/{id}/resume [post]
func (h *Handler) ResumeCampaign(c *gin.Context) {
	resumed, err := h.Service.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resumed)
}

// GetCampaignMetrics godoc
// @Summary      Get campaign metrics
// @Tags         campaigns
// @Produce      json
// @Param        id   path       string  true  "Campaign ID"
// @Success      200  {object}   Metrics
// @Failure      404  {object}   errors.ErrorResponse
// @Router       /campaigns/{id}/metrics [get]
func (h *Handler) GetCampaignMetrics(c *gin.Context) {
	campaign, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign.Metrics)
}
