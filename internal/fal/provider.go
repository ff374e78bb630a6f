package fal

import (
	"context"
	"fmt"

	"banana-studio-backend/internal/jobs"
)

const (
	ModelVideo             = "fal-ai/veo3/fast"
	ModelVideoFromImage    = "fal-ai/veo3/fast/image-to-video"
	ModelUpscale           = "fal-ai/clarity-upscaler"
	ModelStitch            = "fal-ai/ffmpeg-api/merge-videos"
	defaultAspectRatio     = "16:9"
	defaultVideoDuration   = "8s"
	defaultVideoResolution = "720p"
	defaultUpscale         = 2
	stitchResolution       = "landscape_16_9"
)

type videoInput struct {
	Prompt        string `json:"prompt"`
	ImageURL      string `json:"image_url,omitempty"`
	AspectRatio   string `json:"aspect_ratio"`
	Duration      string `json:"duration"`
	Resolution    string `json:"resolution"`
	GenerateAudio bool   `json:"generate_audio"`
	EnhancePrompt bool   `json:"enhance_prompt"`
	AutoFix       bool   `json:"auto_fix"`
}

type upscaleInput struct {
	ImageURL    string  `json:"image_url"`
	Prompt      string  `json:"prompt,omitempty"`
	Scale       int     `json:"scale"`
	Dynamic     float64 `json:"dynamic"`
	Creativity  float64 `json:"creativity"`
	Resemblance float64 `json:"resemblance"`
	Fractality  float64 `json:"fractality"`
}

type stitchInput struct {
	VideoURLs  []string `json:"video_urls"`
	Resolution string   `json:"resolution"`
}

// Provider runs video, upscale and stitch jobs on the fal queue.
type Provider struct {
	client *Client
}

func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Payload picks the model and request body for req.
func Payload(req jobs.Request) (string, any, error) {
	switch req.Kind {
	case jobs.KindVideo:
		in := videoInput{
			Prompt:        req.Prompt,
			AspectRatio:   orDefault(req.AspectRatio, defaultAspectRatio),
			Duration:      orDefault(req.Duration, defaultVideoDuration),
			Resolution:    orDefault(req.Resolution, defaultVideoResolution),
			GenerateAudio: req.GenerateAudio,
			EnhancePrompt: true,
			AutoFix:       true,
		}
		model := ModelVideo
		if url := imageURL(req); url != "" {
			in.ImageURL = url
			model = ModelVideoFromImage
		}
		return model, in, nil
	case jobs.KindUpscale:
		scale := req.Scale
		if scale <= 0 {
			scale = defaultUpscale
		}
		return ModelUpscale, upscaleInput{
			ImageURL:    imageURL(req),
			Prompt:      req.Prompt,
			Scale:       scale,
			Dynamic:     6,
			Creativity:  0.35,
			Resemblance: 0.6,
			Fractality:  0.8,
		}, nil
	case jobs.KindStitch:
		return ModelStitch, stitchInput{
			VideoURLs:  req.VideoURLs,
			Resolution: stitchResolution,
		}, nil
	default:
		return "", nil, fmt.Errorf("%w: fal does not run %q jobs", jobs.ErrInvalidRequest, req.Kind)
	}
}

func (p *Provider) Submit(ctx context.Context, req jobs.Request) (jobs.Submission, error) {
	model, payload, err := Payload(req)
	if err != nil {
		return nil, err
	}
	return p.client.Submit(ctx, model, payload)
}

func (p *Provider) Poll(ctx context.Context, handle jobs.Handle) (jobs.PollResult, error) {
	status, err := p.client.GetStatus(ctx, handle)
	if err != nil {
		return jobs.PollResult{}, err
	}

	switch status.Status {
	case "IN_QUEUE":
		return jobs.PollResult{State: jobs.RemotePending}, nil
	case "COMPLETED":
		out, failure, err := p.client.GetResult(ctx, handle)
		if err != nil {
			return jobs.PollResult{}, err
		}
		if failure != "" {
			return jobs.PollResult{State: jobs.RemoteFailed, Error: failure}, nil
		}
		return jobs.PollResult{State: jobs.RemoteCompleted, Output: out}, nil
	case "FAILED", "ERROR":
		return jobs.PollResult{State: jobs.RemoteFailed, Error: status.Error}, nil
	default:
		return jobs.PollResult{State: jobs.RemoteInProgress}, nil
	}
}

func imageURL(req jobs.Request) string {
	if req.ImageURL != "" {
		return req.ImageURL
	}
	if req.Image != nil && len(req.Image.Data) > 0 {
		return req.Image.DataURI()
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
