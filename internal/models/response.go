package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ProjectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	AspectRatio string    `json:"aspect_ratio"`
	VideoStyle  string    `json:"video_style"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

func (p *Project) Response() ProjectResponse {
	r := ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		AspectRatio: p.AspectRatio,
		VideoStyle:  p.VideoStyle,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	r.Description = nullString(p.Description)
	return r
}

type CharacterResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ch *Character) Response() CharacterResponse {
	r := CharacterResponse{
		ID:        ch.ID.String(),
		ProjectID: ch.ProjectID.String(),
		Name:      ch.Name,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
	r.Description = nullString(ch.Description)
	r.ImageURL = nullString(ch.ImageURL)
	return r
}

type SceneResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	SceneNumber int       `json:"scene_number"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	ImagePrompt *string   `json:"image_prompt,omitempty"`
	VideoPrompt *string   `json:"video_prompt,omitempty"`
	Dialogue    *string   `json:"dialogue,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	VideoURL    *string   `json:"video_url,omitempty"`
	Duration    *float64  `json:"duration,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Scene) Response() SceneResponse {
	r := SceneResponse{
		ID:          s.ID.String(),
		ProjectID:   s.ProjectID.String(),
		SceneNumber: s.SceneNumber,
		Title:       nullString(s.Title),
		Description: nullString(s.Description),
		ImagePrompt: nullString(s.ImagePrompt),
		VideoPrompt: nullString(s.VideoPrompt),
		Dialogue:    nullString(s.Dialogue),
		ImageURL:    nullString(s.ImageURL),
		VideoURL:    nullString(s.VideoURL),
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.Duration.Valid {
		r.Duration = &s.Duration.Float64
	}
	return r
}

type VideoAssetResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	SceneID   *string   `json:"scene_id,omitempty"`
	AssetType string    `json:"asset_type"`
	FileURL   string    `json:"file_url"`
	FileSize  *int64    `json:"file_size,omitempty"`
	Duration  *float64  `json:"duration,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *VideoAsset) Response() VideoAssetResponse {
	r := VideoAssetResponse{
		ID:        a.ID.String(),
		ProjectID: a.ProjectID.String(),
		AssetType: a.AssetType,
		FileURL:   a.FileURL,
		CreatedAt: a.CreatedAt,
	}
	if a.SceneID.Valid {
		s := a.SceneID.UUID.String()
		r.SceneID = &s
	}
	if a.FileSize.Valid {
		r.FileSize = &a.FileSize.Int64
	}
	if a.Duration.Valid {
		r.Duration = &a.Duration.Float64
	}
	return r
}

type JobResponse struct {
	ID           string          `json:"id"`
	ProjectID    *string         `json:"project_id,omitempty"`
	JobType      string          `json:"job_type"`
	Status       string          `json:"status"`
	Progress     int             `json:"progress"`
	InputData    json.RawMessage `json:"input_data,omitempty"`
	OutputData   json.RawMessage `json:"output_data,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (j *ProcessingJob) Response() JobResponse {
	r := JobResponse{
		ID:           j.ID.String(),
		JobType:      j.JobType,
		Status:       j.Status,
		Progress:     j.Progress,
		InputData:    j.InputData,
		ErrorMessage: nullString(j.ErrorMessage),
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
	if j.ProjectID.Valid {
		s := j.ProjectID.UUID.String()
		r.ProjectID = &s
	}
	if len(j.OutputData) > 0 {
		r.OutputData = json.RawMessage(j.OutputData)
	}
	return r
}

type FrameSuggestion struct {
	FrameIndex int    `json:"frame_index"`
	Suggestion string `json:"suggestion"`
}

type AnalyzeFramesResponse struct {
	Suggestions []FrameSuggestion `json:"suggestions"`
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
