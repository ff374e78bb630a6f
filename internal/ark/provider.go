package ark

import (
	"context"
	"fmt"
	"strings"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"

	"banana-studio-backend/internal/jobs"
)

const (
	DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultModel   = "doubao-seedance-1-0-pro-250528"
)

// Task is the part of a content generation task the provider reads.
type Task struct {
	ID       string
	Status   string // queued, running, succeeded, failed, cancelled
	VideoURL string

	// ErrorMessage is the provider's failure text, empty unless failed.
	ErrorMessage string
}

// TaskAPI is the Ark content generation surface.
type TaskAPI interface {
	CreateTask(ctx context.Context, req model.CreateContentGenerationTaskRequest) (string, error)
	GetTask(ctx context.Context, id string) (Task, error)
}

type sdkTasks struct {
	client *arkruntime.Client
}

func NewTaskAPI(apiKey, baseURL string) TaskAPI {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &sdkTasks{
		client: arkruntime.NewClientWithApiKey(apiKey, arkruntime.WithBaseUrl(baseURL)),
	}
}

func (s *sdkTasks) CreateTask(ctx context.Context, req model.CreateContentGenerationTaskRequest) (string, error) {
	resp, err := s.client.CreateContentGenerationTask(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create content generation task: %w", err)
	}
	return resp.ID, nil
}

func (s *sdkTasks) GetTask(ctx context.Context, id string) (Task, error) {
	req := model.GetContentGenerationTaskRequest{}
	req.ID = id

	resp, err := s.client.GetContentGenerationTask(ctx, req)
	if err != nil {
		return Task{}, fmt.Errorf("failed to get content generation task: %w", err)
	}
	task := Task{
		ID:       resp.ID,
		Status:   resp.Status,
		VideoURL: resp.Content.VideoURL,
	}
	if resp.Error != nil {
		task.ErrorMessage = resp.Error.Message
		if task.ErrorMessage == "" {
			task.ErrorMessage = resp.Error.Code
		}
	}
	return task, nil
}

// Provider runs video jobs on Volcengine Ark (Seedance).
type Provider struct {
	api   TaskAPI
	model string
}

func NewProvider(api TaskAPI, modelEp string) *Provider {
	if modelEp == "" {
		modelEp = DefaultModel
	}
	return &Provider{api: api, model: modelEp}
}

// CreateRequest builds the task request for a video job. Resolution and
// aspect ratio travel as prompt flags.
func (p *Provider) CreateRequest(req jobs.Request) (model.CreateContentGenerationTaskRequest, error) {
	if req.Kind != jobs.KindVideo {
		return model.CreateContentGenerationTaskRequest{}, fmt.Errorf("%w: ark does not run %q jobs", jobs.ErrInvalidRequest, req.Kind)
	}

	text := req.Prompt
	if req.Resolution != "" {
		text += " --resolution " + req.Resolution
	}
	if req.AspectRatio != "" {
		text += " --ratio " + req.AspectRatio
	}

	content := []*model.CreateContentGenerationContentItem{
		{
			Type: model.ContentGenerationContentItemTypeText,
			Text: volcengine.String(text),
		},
	}

	image := req.ImageURL
	if image == "" && req.Image != nil && len(req.Image.Data) > 0 {
		image = req.Image.DataURI()
	}
	if image != "" {
		content = append(content, &model.CreateContentGenerationContentItem{
			Type:     model.ContentGenerationContentItemTypeImage,
			ImageURL: &model.ImageURL{URL: image},
		})
	}

	return model.CreateContentGenerationTaskRequest{
		Model:   p.model,
		Content: content,
	}, nil
}

func (p *Provider) Submit(ctx context.Context, req jobs.Request) (jobs.Submission, error) {
	createReq, err := p.CreateRequest(req)
	if err != nil {
		return nil, err
	}
	id, err := p.api.CreateTask(ctx, createReq)
	if err != nil {
		return nil, err
	}
	return jobs.Queued{Handle: jobs.Handle{RequestID: id, Model: p.model}}, nil
}

func (p *Provider) Poll(ctx context.Context, handle jobs.Handle) (jobs.PollResult, error) {
	task, err := p.api.GetTask(ctx, handle.RequestID)
	if err != nil {
		return jobs.PollResult{}, err
	}

	switch strings.ToLower(task.Status) {
	case "queued":
		return jobs.PollResult{State: jobs.RemotePending}, nil
	case "succeeded":
		return jobs.PollResult{
			State:  jobs.RemoteCompleted,
			Output: &jobs.Output{URL: task.VideoURL, ContentType: "video/mp4"},
		}, nil
	case "failed", "cancelled":
		msg := task.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("video task %s %s", handle.RequestID, strings.ToLower(task.Status))
		}
		return jobs.PollResult{State: jobs.RemoteFailed, Error: msg}, nil
	default:
		return jobs.PollResult{State: jobs.RemoteInProgress}, nil
	}
}
