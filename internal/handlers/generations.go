package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/models"
)

// GenerationStarter records and dispatches generation jobs.
type GenerationStarter interface {
	Start(ctx context.Context, userID uuid.UUID, projectID, sceneID uuid.NullUUID, req jobs.Request) (*models.ProcessingJob, error)
	StartBatch(ctx context.Context, userID uuid.UUID, projectID uuid.NullUUID, scene string, images []jobs.Image, base jobs.Request) (*models.ProcessingJob, error)
}

// ProjectChecker confirms the caller owns a project.
type ProjectChecker interface {
	GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
}

type GenerationsHandler struct {
	starter  GenerationStarter
	projects ProjectChecker
}

func NewGenerationsHandler(starter GenerationStarter, projects ProjectChecker) *GenerationsHandler {
	return &GenerationsHandler{starter: starter, projects: projects}
}

func toImage(in *models.ImageInput) *jobs.Image {
	if in == nil || len(in.Data) == 0 {
		return nil
	}
	return &jobs.Image{Data: in.Data, MimeType: in.MimeType}
}

func toImages(in []models.ImageInput) []jobs.Image {
	out := make([]jobs.Image, 0, len(in))
	for i := range in {
		if img := toImage(&in[i]); img != nil {
			out = append(out, *img)
		}
	}
	return out
}

// project parses and authorizes an optional project id.
func (h *GenerationsHandler) project(c *gin.Context, userID uuid.UUID, raw string) (uuid.NullUUID, bool) {
	projectID, ok := optionalUUID(c, "project_id", raw)
	if !ok || !projectID.Valid || h.projects == nil {
		return projectID, ok
	}
	if _, err := h.projects.GetProject(c.Request.Context(), projectID.UUID, userID); err != nil {
		respondError(c, "failed to start generation", err)
		return uuid.NullUUID{}, false
	}
	return projectID, true
}

func (h *GenerationsHandler) start(c *gin.Context, userID uuid.UUID, projectID, sceneID uuid.NullUUID, req jobs.Request) {
	job, err := h.starter.Start(c.Request.Context(), userID, projectID, sceneID, req)
	if err != nil {
		respondError(c, "failed to start generation", err)
		return
	}
	c.JSON(http.StatusAccepted, job.Response())
}

// GenerateImages godoc
// @Summary     Generate images
// @Description Starts an image job; poll /jobs/{job_id} or listen on /events for the result
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateImagesRequest true "Image request"
// @Success     202 {object} models.JobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Router      /generations/images [post]
func (h *GenerationsHandler) GenerateImages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	var req models.GenerateImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	projectID, ok := h.project(c, userID, req.ProjectID)
	if !ok {
		return
	}

	refs := toImages(req.References)
	jr := jobs.Request{
		Kind:        jobs.KindImage,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Count:       req.Count,
	}
	// the first reference is the composition sketch
	if len(refs) > 0 {
		jr.Image = &refs[0]
		jr.References = refs[1:]
	}
	h.start(c, userID, projectID, uuid.NullUUID{}, jr)
}

// GenerateVideo godoc
// @Summary     Generate a video
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateVideoRequest true "Video request"
// @Success     202 {object} models.JobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Router      /generations/video [post]
func (h *GenerationsHandler) GenerateVideo(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	var req models.GenerateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	projectID, ok := h.project(c, userID, req.ProjectID)
	if !ok {
		return
	}
	sceneID, ok := optionalUUID(c, "scene_id", req.SceneID)
	if !ok {
		return
	}

	h.start(c, userID, projectID, sceneID, jobs.Request{
		Kind:          jobs.KindVideo,
		Prompt:        req.Prompt,
		Image:         toImage(req.Image),
		ImageURL:      req.ImageURL,
		AspectRatio:   req.AspectRatio,
		Duration:      req.Duration,
		Resolution:    req.Resolution,
		GenerateAudio: req.GenerateAudio,
	})
}

// UpscaleImage godoc
// @Summary     Upscale an image
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.UpscaleRequest true "Upscale request"
// @Success     202 {object} models.JobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Router      /generations/upscale [post]
func (h *GenerationsHandler) UpscaleImage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	var req models.UpscaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	projectID, ok := h.project(c, userID, req.ProjectID)
	if !ok {
		return
	}

	h.start(c, userID, projectID, uuid.NullUUID{}, jobs.Request{
		Kind:     jobs.KindUpscale,
		Image:    toImage(req.Image),
		ImageURL: req.ImageURL,
		Scale:    req.Scale,
	})
}

// StitchVideos godoc
// @Summary     Stitch videos into one
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.StitchRequest true "Videos in order"
// @Success     202 {object} models.JobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Router      /generations/stitch [post]
func (h *GenerationsHandler) StitchVideos(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	var req models.StitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	projectID, ok := h.project(c, userID, req.ProjectID)
	if !ok {
		return
	}

	h.start(c, userID, projectID, uuid.NullUUID{}, jobs.Request{
		Kind:      jobs.KindStitch,
		VideoURLs: req.VideoURLs,
	})
}

// GenerateVideoBatch godoc
// @Summary     Generate one video per image
// @Description Items run concurrently; the job reports completed and failed counts
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.BatchVideoRequest true "Batch request"
// @Success     202 {object} models.JobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Router      /generations/video/batch [post]
func (h *GenerationsHandler) GenerateVideoBatch(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	var req models.BatchVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	projectID, ok := h.project(c, userID, req.ProjectID)
	if !ok {
		return
	}

	job, err := h.starter.StartBatch(c.Request.Context(), userID, projectID, req.SceneDescription, toImages(req.Images), jobs.Request{
		AspectRatio: req.AspectRatio,
		Duration:    req.Duration,
	})
	if err != nil {
		respondError(c, "failed to start batch", err)
		return
	}
	c.JSON(http.StatusAccepted, job.Response())
}
