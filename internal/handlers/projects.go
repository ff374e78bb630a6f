package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/models"
)

// ProjectStore is the project table surface the handlers need.
type ProjectStore interface {
	CreateProject(ctx context.Context, userID uuid.UUID, req models.CreateProjectRequest) (*models.Project, error)
	GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID, userID uuid.UUID, req models.UpdateProjectRequest) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error
}

// ProjectFiles removes a project's stored media.
type ProjectFiles interface {
	DeleteProjectFiles(userID, projectID uuid.UUID) error
}

type ProjectsHandler struct {
	store  ProjectStore
	files  ProjectFiles
	logger *slog.Logger
}

func NewProjectsHandler(store ProjectStore, files ProjectFiles, logger *slog.Logger) *ProjectsHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ProjectsHandler{
		store:  store,
		files:  files,
		logger: logging.WithComponent(logger, "projects"),
	}
}

// CreateProject godoc
// @Summary     Create a project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateProjectRequest true "Project"
// @Success     201 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.Normalize(); err != nil {
		respondError(c, "failed to create project", err)
		return
	}

	project, err := h.store.CreateProject(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, "failed to create project", err)
		return
	}

	c.JSON(http.StatusCreated, project.Response())
}

// ListProjects godoc
// @Summary     List the caller's projects
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	projects, err := h.store.ListProjects(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "failed to list projects", err)
		return
	}

	out := make([]models.ProjectResponse, len(projects))
	for i := range projects {
		out[i] = projects[i].Response()
	}
	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: out})
}

// GetProject godoc
// @Summary     Get a project
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.ProjectResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	project, err := h.store.GetProject(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, "failed to get project", err)
		return
	}
	c.JSON(http.StatusOK, project.Response())
}

// UpdateProject godoc
// @Summary     Update a project
// @Description Partial update; omitted fields keep their value
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Param       request body models.UpdateProjectRequest true "Fields to change"
// @Success     200 {object} models.ProjectResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [patch]
func (h *ProjectsHandler) UpdateProject(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.Normalize(); err != nil {
		respondError(c, "failed to update project", err)
		return
	}

	project, err := h.store.UpdateProject(c.Request.Context(), projectID, userID, req)
	if err != nil {
		respondError(c, "failed to update project", err)
		return
	}
	c.JSON(http.StatusOK, project.Response())
}

// DeleteProject godoc
// @Summary     Delete a project
// @Tags        projects
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     204
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	if err := h.store.DeleteProject(c.Request.Context(), projectID, userID); err != nil {
		respondError(c, "failed to delete project", err)
		return
	}

	if h.files != nil {
		if err := h.files.DeleteProjectFiles(userID, projectID); err != nil {
			h.logger.Warn("failed to delete project files", "project_id", projectID, "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}
