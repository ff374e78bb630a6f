package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/models"
)

// SceneStore also covers the read-only asset and job listings of a project.
type SceneStore interface {
	CreateScene(ctx context.Context, projectID, userID uuid.UUID, req models.CreateSceneRequest) (*models.Scene, error)
	ListScenes(ctx context.Context, projectID, userID uuid.UUID) ([]models.Scene, error)
	ListVideoAssets(ctx context.Context, projectID, userID uuid.UUID) ([]models.VideoAsset, error)
	ListProcessingJobs(ctx context.Context, projectID, userID uuid.UUID) ([]models.ProcessingJob, error)
	GetProcessingJob(ctx context.Context, jobID, userID uuid.UUID) (*models.ProcessingJob, error)
}

type ScenesHandler struct {
	store SceneStore
}

func NewScenesHandler(store SceneStore) *ScenesHandler {
	return &ScenesHandler{store: store}
}

func (h *ScenesHandler) CreateScene(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	var req models.CreateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	scene, err := h.store.CreateScene(c.Request.Context(), projectID, userID, req)
	if err != nil {
		respondError(c, "failed to create scene", err)
		return
	}
	c.JSON(http.StatusCreated, scene.Response())
}

func (h *ScenesHandler) ListScenes(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	scenes, err := h.store.ListScenes(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, "failed to list scenes", err)
		return
	}

	out := make([]models.SceneResponse, len(scenes))
	for i := range scenes {
		out[i] = scenes[i].Response()
	}
	c.JSON(http.StatusOK, gin.H{"scenes": out})
}

func (h *ScenesHandler) ListAssets(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	assets, err := h.store.ListVideoAssets(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, "failed to list assets", err)
		return
	}

	out := make([]models.VideoAssetResponse, len(assets))
	for i := range assets {
		out[i] = assets[i].Response()
	}
	c.JSON(http.StatusOK, gin.H{"assets": out})
}

func (h *ScenesHandler) ListJobs(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	list, err := h.store.ListProcessingJobs(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, "failed to list jobs", err)
		return
	}

	out := make([]models.JobResponse, len(list))
	for i := range list {
		out[i] = list[i].Response()
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

// GetJob godoc
// @Summary     Get a generation job
// @Tags        jobs
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.JobResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /jobs/{job_id} [get]
func (h *ScenesHandler) GetJob(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	jobID, ok := uuidParam(c, "job_id")
	if !ok {
		return
	}

	job, err := h.store.GetProcessingJob(c.Request.Context(), jobID, userID)
	if err != nil {
		respondError(c, "failed to get job", err)
		return
	}
	c.JSON(http.StatusOK, job.Response())
}
