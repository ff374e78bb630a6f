package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"banana-studio-backend/internal/adpackage"
	"banana-studio-backend/internal/frames"
	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/models"
	"banana-studio-backend/internal/supabase"
)

// respondError maps a service error to its HTTP status. what names the
// failed operation for the error field.
func respondError(c *gin.Context, what string, err error) {
	var remote *jobs.RemoteError
	switch {
	case errors.Is(err, supabase.ErrNotFound), errors.Is(err, frames.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Message: err.Error()})
	case errors.Is(err, models.ErrNameRequired),
		errors.Is(err, jobs.ErrInvalidRequest),
		errors.Is(err, adpackage.ErrInvalidBrief),
		errors.Is(err, frames.ErrInvalidOptions),
		errors.Is(err, frames.ErrFrameOutOfRange):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
	case errors.Is(err, frames.ErrLoad):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "failed to load video", Message: err.Error()})
	case errors.As(err, &remote):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: what, Message: remote.Message})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: what, Message: err.Error()})
	}
}

// respondUpstream reports a failed synchronous provider call.
func respondUpstream(c *gin.Context, what string, err error) {
	if errors.Is(err, jobs.ErrInvalidRequest) || errors.Is(err, adpackage.ErrInvalidBrief) {
		respondError(c, what, err)
		return
	}
	c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: what, Message: err.Error()})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses an optional id from a request body.
func optionalUUID(c *gin.Context, field, raw string) (uuid.NullUUID, bool) {
	if raw == "" {
		return uuid.NullUUID{}, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + field})
		return uuid.NullUUID{}, false
	}
	return uuid.NullUUID{UUID: id, Valid: true}, true
}
