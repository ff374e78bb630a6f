package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/models"
)

type ProfileReader interface {
	GetProfile(userID uuid.UUID) (*models.Profile, error)
}

type ProfilesHandler struct {
	profiles ProfileReader
}

func NewProfilesHandler(profiles ProfileReader) *ProfilesHandler {
	return &ProfilesHandler{profiles: profiles}
}

// GetProfile godoc
// @Summary     Get the caller's profile
// @Description Reads the profiles row maintained by Supabase Auth
// @Tags        profiles
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.Profile
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /profile [get]
func (h *ProfilesHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(userID)
	if err != nil {
		respondError(c, "failed to get profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
