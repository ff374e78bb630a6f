package jobs

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindUpscale Kind = "upscale"
	KindStitch  Kind = "stitch"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Image is an inline encoded image.
type Image struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// DataURI renders the image as a base64 data URI.
func (i Image) DataURI() string {
	mime := i.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Request describes one generation. Which fields matter depends on Kind.
type Request struct {
	Kind          Kind     `json:"kind"`
	Prompt        string   `json:"prompt,omitempty"`
	Image         *Image   `json:"image,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	References    []Image  `json:"references,omitempty"`
	AspectRatio   string   `json:"aspect_ratio,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	Resolution    string   `json:"resolution,omitempty"`
	GenerateAudio bool     `json:"generate_audio,omitempty"`
	Scale         int      `json:"scale,omitempty"`
	VideoURLs     []string `json:"video_urls,omitempty"`
	Count         int      `json:"count,omitempty"`
}

// Validate rejects requests that could never succeed remotely.
func (r Request) Validate() error {
	switch r.Kind {
	case KindImage:
		if strings.TrimSpace(r.Prompt) == "" {
			return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
		}
	case KindVideo:
		if strings.TrimSpace(r.Prompt) == "" {
			return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
		}
	case KindUpscale:
		if (r.Image == nil || len(r.Image.Data) == 0) && r.ImageURL == "" {
			return fmt.Errorf("%w: an image is required", ErrInvalidRequest)
		}
	case KindStitch:
		if len(r.VideoURLs) < 2 {
			return fmt.Errorf("%w: at least two videos are required to stitch", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// Output is a provider result. Hosted media carries a URL; inline results
// carry Images.
type Output struct {
	URL         string          `json:"url,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	FileName    string          `json:"file_name,omitempty"`
	Images      []Image         `json:"images,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

type Job struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"kind"`
	Status    Status  `json:"status"`
	Progress  int     `json:"progress"`
	Attempts  int     `json:"attempts"`
	RequestID string  `json:"request_id,omitempty"`
	Result    *Output `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
}
