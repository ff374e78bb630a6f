package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"banana-studio-backend/internal/adpackage"
	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/middleware"
)

type AdPackageGenerator interface {
	Generate(ctx context.Context, brief adpackage.Brief, variantCount int) (*adpackage.Package, error)
}

type GenerateAdPackageRequest struct {
	Brief        adpackage.Brief `json:"brief"`
	VariantCount int             `json:"variant_count,omitempty" example:"3"`
}

type ExportSRTRequest struct {
	Script adpackage.Script `json:"script"`
}

type AdPackagesHandler struct {
	generator AdPackageGenerator
	logger    *slog.Logger
}

func NewAdPackagesHandler(generator AdPackageGenerator, logger *slog.Logger) *AdPackagesHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AdPackagesHandler{
		generator: generator,
		logger:    logging.WithComponent(logger, "adpackages"),
	}
}

// GenerateAdPackage godoc
// @Summary     Generate an ad package from a brief
// @Tags        ad-packages
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body GenerateAdPackageRequest true "Brief"
// @Success     200 {object} adpackage.Package
// @Failure     400 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /ad-packages [post]
func (h *AdPackagesHandler) GenerateAdPackage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var req GenerateAdPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := adpackage.ValidateBrief(req.Brief); err != nil {
		respondError(c, "invalid brief", err)
		return
	}

	pkg, err := h.generator.Generate(c.Request.Context(), req.Brief, req.VariantCount)
	if err != nil {
		h.logger.Warn("ad package generation failed", "user_id", userID, "error", err)
		respondUpstream(c, "failed to generate ad package", err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// ExportJSON returns the package as a downloadable JSON file.
func (h *AdPackagesHandler) ExportJSON(c *gin.Context) {
	var pkg adpackage.Package
	if err := c.ShouldBindJSON(&pkg); err != nil {
		bindError(c, err)
		return
	}

	data, err := adpackage.ExportJSON(&pkg)
	if err != nil {
		respondError(c, "failed to export ad package", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+adpackage.JSONFileName(&pkg)+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ExportSRT returns the voiceover beats of a script as SubRip subtitles.
func (h *AdPackagesHandler) ExportSRT(c *gin.Context) {
	var req ExportSRTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+adpackage.SRTFileName()+`"`)
	c.Data(http.StatusOK, "application/x-subrip; charset=utf-8", []byte(adpackage.ExportSRT(req.Script)))
}

func (h *AdPackagesHandler) ListPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": adpackage.AllConstraints()})
}
