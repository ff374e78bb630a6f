package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAspectRatio = "16:9"
	DefaultVideoStyle  = "Cinematic"
)

type Project struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Name        string         `json:"name"`
	Description sql.NullString `json:"description,omitempty"`
	AspectRatio string         `json:"aspect_ratio"`
	VideoStyle  string         `json:"video_style"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Character struct {
	ID          uuid.UUID      `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	Name        string         `json:"name"`
	Description sql.NullString `json:"description,omitempty"`
	ImageURL    sql.NullString `json:"image_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Scene struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	SceneNumber int             `json:"scene_number"`
	Title       sql.NullString  `json:"title,omitempty"`
	Description sql.NullString  `json:"description,omitempty"`
	ImagePrompt sql.NullString  `json:"image_prompt,omitempty"`
	VideoPrompt sql.NullString  `json:"video_prompt,omitempty"`
	Dialogue    sql.NullString  `json:"dialogue,omitempty"`
	ImageURL    sql.NullString  `json:"image_url,omitempty"`
	VideoURL    sql.NullString  `json:"video_url,omitempty"`
	Duration    sql.NullFloat64 `json:"duration,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const (
	AssetTypeVideo         = "video"
	AssetTypeImage         = "image"
	AssetTypeStitchedVideo = "stitched_video"
	AssetTypeUpscaledImage = "upscaled_image"
)

type VideoAsset struct {
	ID        uuid.UUID       `json:"id"`
	ProjectID uuid.UUID       `json:"project_id"`
	SceneID   uuid.NullUUID   `json:"scene_id,omitempty"`
	AssetType string          `json:"asset_type"`
	FileURL   string          `json:"file_url"`
	FileSize  sql.NullInt64   `json:"file_size,omitempty"`
	Duration  sql.NullFloat64 `json:"duration,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	JobTypeImage      = "image"
	JobTypeVideo      = "video"
	JobTypeUpscale    = "upscale"
	JobTypeStitch     = "stitch"
	JobTypeBatchVideo = "batch_video"
)

type ProcessingJob struct {
	ID           uuid.UUID       `json:"id"`
	ProjectID    uuid.NullUUID   `json:"project_id,omitempty"`
	UserID       uuid.UUID       `json:"user_id"`
	JobType      string          `json:"job_type"`
	Status       string          `json:"status"`
	Progress     int             `json:"progress"`
	InputData    json.RawMessage `json:"input_data"`
	OutputData   []byte          `json:"output_data,omitempty"`
	ErrorMessage sql.NullString  `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Profile mirrors the profiles table maintained by Supabase Auth hooks.
type Profile struct {
	UserID    string  `json:"user_id"`
	Email     *string `json:"email"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}
