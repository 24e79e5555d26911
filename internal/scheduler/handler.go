package scheduler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pigeon/internal/constants"
	"pigeon/internal/logger"
	"pigeon/pkg/errors"
)

// Handler exposes read-only job inspection. Jobs are mutated through
// campaign operations, never directly through this surface.
type Handler struct {
	Queue  JobQueue
	Logger logger.Logger
}

func NewHandler(queue JobQueue, log logger.Logger) *Handler {
	return &Handler{Queue: queue, Logger: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	jobs := router.Group("/jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/counts", h.GetJobCounts)
		jobs.GET("/:id", h.GetJob)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// ListJobs godoc
// @Summary      List scheduled jobs
// @Description  List queued jobs in a given state, soonest run time first
// @Tags         jobs
// @Produce      json
// @Param        state  query      string  false  "Job state (delayed, recurring, failed)"  default(delayed)
// @Param        limit  query      int     false  "Maximum number of jobs"
// @Success      200    {array}    Job
// @Failure      400    {object}   errors.ErrorResponse
// @Router       /jobs [get]
func (h *Handler) ListJobs(c *gin.Context) {
	state := JobState(c.DefaultQuery("state", string(JobDelayed)))
	if !state.Valid() {
		h.handleError(c, errors.ErrValidation.WithMessage("unknown job state: %s", state))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultLimit)))
	if err != nil || limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}

	jobs, err := h.Queue.ListByState(c.Request.Context(), state, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJobCounts godoc
// @Summary      Queue depth per state
// @Tags         jobs
// @Produce      json
// @Success      200  {object}   map[string]int64
// @Router       /jobs/counts [get]
func (h *Handler) GetJobCounts(c *gin.Context) {
	counts, err := h.Queue.Counts(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// GetJob godoc
// @Summary      Get a job
// @Tags         jobs
// @Produce      json
// @Param        id   path       string  true  "Job ID"
// @Success      200  {object}   Job
// @Failure      404  {object}   errors.ErrorResponse
// @Router       /jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
