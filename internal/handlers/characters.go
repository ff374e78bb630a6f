package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/models"
)

type CharacterStore interface {
	CreateCharacter(ctx context.Context, projectID, userID uuid.UUID, req models.CharacterRequest) (*models.Character, error)
	ListCharacters(ctx context.Context, projectID, userID uuid.UUID) ([]models.Character, error)
	UpdateCharacter(ctx context.Context, characterID, userID uuid.UUID, req models.UpdateCharacterRequest) (*models.Character, error)
	DeleteCharacter(ctx context.Context, characterID, userID uuid.UUID) error
}

type CharactersHandler struct {
	store CharacterStore
}

func NewCharactersHandler(store CharacterStore) *CharactersHandler {
	return &CharactersHandler{store: store}
}

func (h *CharactersHandler) CreateCharacter(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	var req models.CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.Normalize(); err != nil {
		respondError(c, "failed to create character", err)
		return
	}

	character, err := h.store.CreateCharacter(c.Request.Context(), projectID, userID, req)
	if err != nil {
		respondError(c, "failed to create character", err)
		return
	}
	c.JSON(http.StatusCreated, character.Response())
}

func (h *CharactersHandler) ListCharacters(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	projectID, ok := uuidParam(c, "project_id")
	if !ok {
		return
	}

	characters, err := h.store.ListCharacters(c.Request.Context(), projectID, userID)
	if err != nil {
		respondError(c, "failed to list characters", err)
		return
	}

	out := make([]models.CharacterResponse, len(characters))
	for i := range characters {
		out[i] = characters[i].Response()
	}
	c.JSON(http.StatusOK, gin.H{"characters": out})
}

func (h *CharactersHandler) UpdateCharacter(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	characterID, ok := uuidParam(c, "character_id")
	if !ok {
		return
	}

	var req models.UpdateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.Normalize(); err != nil {
		respondError(c, "failed to update character", err)
		return
	}

	character, err := h.store.UpdateCharacter(c.Request.Context(), characterID, userID, req)
	if err != nil {
		respondError(c, "failed to update character", err)
		return
	}
	c.JSON(http.StatusOK, character.Response())
}

func (h *CharactersHandler) DeleteCharacter(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	characterID, ok := uuidParam(c, "character_id")
	if !ok {
		return
	}

	if err := h.store.DeleteCharacter(c.Request.Context(), characterID, userID); err != nil {
		respondError(c, "failed to delete character", err)
		return
	}
	c.Status(http.StatusNoContent)
}
