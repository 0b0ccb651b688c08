package server

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"story-video-worker/constant"
	"story-video-worker/dto"
	"story-video-worker/entities"
	"story-video-worker/jobstore"
	"story-video-worker/pkg/rabbitmq"
	"story-video-worker/service"
)

const (
	serviceName    = "Bible Story Video Generator API"
	serviceVersion = "1.0.0"
)

type API struct {
	store     jobstore.Store
	publisher rabbitmq.Publisher
	workDir   string
}

func NewAPI(store jobstore.Store, publisher rabbitmq.Publisher, workDir string) *API {
	return &API{
		store:     store,
		publisher: publisher,
		workDir:   workDir,
	}
}

func (a *API) RegisterRoutes(r *gin.Engine) {
	r.GET("/", a.Index)
	r.GET("/stories", a.Stories)
	r.POST("/generate", a.Generate)
	r.GET("/status/:job_id", a.Status)
	r.GET("/download/:job_id", a.Download)
}

func (a *API) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (a *API) Stories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stories": constant.Stories})
}

// Generate validates the submission, creates a queued job record, and
// enqueues the task. The job id is returned immediately; generation happens
// asynchronously on the worker pool.
func (a *API) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if msg, ok := validate(&req); !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
		return
	}

	jobId := uuid.New()
	job := &entities.Job{
		ID:         jobId.String(),
		Story:      *req.Story,
		Duration:   *req.Duration,
		Resolution: *req.Resolution,
		TikTok:     *req.TikTok,
	}

	if err := a.store.Create(c.Request.Context(), job); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to create job record")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
		return
	}

	if err := a.publisher.Publish(c.Request.Context(), dto.JobMessage{
		JobId:      jobId,
		Story:      job.Story,
		Duration:   job.Duration,
		Resolution: job.Resolution,
		TikTok:     job.TikTok,
	}); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to enqueue job")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, dto.GenerateResponse{
		JobId:   jobId.String(),
		Status:  string(constant.JobStatusQueued),
		Message: "Video generation started",
	})
}

func (a *API) Status(c *gin.Context) {
	job, err := a.store.Get(c.Request.Context(), c.Param("job_id"))
	if errors.Is(err, jobstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found"})
		return
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to read job record")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
		return
	}

	var errMsg *string
	if job.Error != "" {
		errMsg = &job.Error
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		JobId:     job.ID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		Error:     errMsg,
	})
}

func (a *API) Download(c *gin.Context) {
	job, err := a.store.Get(c.Request.Context(), c.Param("job_id"))
	if errors.Is(err, jobstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found"})
		return
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to read job record")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
		return
	}

	if job.Status != constant.JobStatusCompleted {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Video not ready for download"})
		return
	}

	path := service.ArtifactPath(a.workDir, job.ID)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Video file not found"})
		return
	}

	c.FileAttachment(path, job.Story+".mp4")
}

func validate(req *dto.GenerateRequest) (string, bool) {
	if req.Story == nil {
		return "Missing required field: story", false
	}
	if req.Duration == nil {
		return "Missing required field: duration", false
	}
	if req.Resolution == nil {
		return "Missing required field: resolution", false
	}
	if req.TikTok == nil {
		return "Missing required field: tiktok", false
	}
	if !constant.ValidStory(*req.Story) {
		return "Invalid story selection", false
	}
	if *req.Duration < constant.DurationMinMinutes || *req.Duration > constant.DurationMaxMinutes {
		return "Duration must be between 10 and 25 minutes", false
	}
	if _, ok := constant.Resolutions[*req.Resolution]; !ok {
		return "Invalid resolution", false
	}
	return "", true
}
