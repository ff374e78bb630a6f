package models

import (
	"errors"
	"strings"
)

var ErrNameRequired = errors.New("name is required")

type CreateProjectRequest struct {
	Name        string  `json:"name" example:"Summer launch"`
	Description *string `json:"description,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty" example:"16:9"`
	VideoStyle  string  `json:"video_style,omitempty" example:"Cinematic"`
}

// Normalize trims the name, rejects an empty one and fills defaults.
func (r *CreateProjectRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(r.AspectRatio) == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	if strings.TrimSpace(r.VideoStyle) == "" {
		r.VideoStyle = DefaultVideoStyle
	}
	return nil
}

// UpdateProjectRequest is a partial update; nil fields are left alone.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AspectRatio *string `json:"aspect_ratio,omitempty"`
	VideoStyle  *string `json:"video_style,omitempty"`
}

func (r *UpdateProjectRequest) Normalize() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return ErrNameRequired
		}
		r.Name = &name
	}
	return nil
}

type CharacterRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

func (r *CharacterRequest) Normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrNameRequired
	}
	return nil
}

type UpdateCharacterRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

func (r *UpdateCharacterRequest) Normalize() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return ErrNameRequired
		}
		r.Name = &name
	}
	return nil
}

type CreateSceneRequest struct {
	SceneNumber int      `json:"scene_number" binding:"gte=1"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImagePrompt *string  `json:"image_prompt,omitempty"`
	VideoPrompt *string  `json:"video_prompt,omitempty"`
	Dialogue    *string  `json:"dialogue,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// ImageInput is an inline image sent as base64 in JSON.
type ImageInput struct {
	Data     []byte `json:"data" binding:"required"`
	MimeType string `json:"mime_type" example:"image/png"`
}

type GenerateImagesRequest struct {
	ProjectID   string       `json:"project_id,omitempty"`
	Prompt      string       `json:"prompt" binding:"required"`
	References  []ImageInput `json:"references,omitempty"`
	AspectRatio string       `json:"aspect_ratio,omitempty"`
	Count       int          `json:"count,omitempty" binding:"omitempty,min=1,max=5"`
}

type GenerateVideoRequest struct {
	ProjectID     string      `json:"project_id,omitempty"`
	SceneID       string      `json:"scene_id,omitempty"`
	Prompt        string      `json:"prompt" binding:"required"`
	Image         *ImageInput `json:"image,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
	AspectRatio   string      `json:"aspect_ratio,omitempty"`
	Duration      string      `json:"duration,omitempty" example:"8s"`
	Resolution    string      `json:"resolution,omitempty" example:"720p"`
	GenerateAudio bool        `json:"generate_audio,omitempty"`
}

type UpscaleRequest struct {
	ProjectID string      `json:"project_id,omitempty"`
	Image     *ImageInput `json:"image,omitempty"`
	ImageURL  string      `json:"image_url,omitempty"`
	Scale     int         `json:"scale,omitempty" binding:"omitempty,min=1,max=4"`
}

type StitchRequest struct {
	ProjectID string   `json:"project_id,omitempty"`
	VideoURLs []string `json:"video_urls" binding:"required,min=2,dive,url"`
}

type BatchVideoRequest struct {
	ProjectID        string       `json:"project_id,omitempty"`
	SceneDescription string       `json:"scene_description" binding:"required"`
	Images           []ImageInput `json:"images" binding:"required,min=1,dive"`
	AspectRatio      string       `json:"aspect_ratio,omitempty"`
	Duration         string       `json:"duration,omitempty"`
}

type EditFrameRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type AnalyzeFramesRequest struct {
	Indices []int `json:"indices,omitempty"`
}
