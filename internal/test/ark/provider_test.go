package ark_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"banana-studio-backend/internal/ark"
	"banana-studio-backend/internal/jobs"
)

type fakeTasks struct {
	created []model.CreateContentGenerationTaskRequest
	task    ark.Task
	err     error
}

func (f *fakeTasks) CreateTask(_ context.Context, req model.CreateContentGenerationTaskRequest) (string, error) {
	f.created = append(f.created, req)
	if f.err != nil {
		return "", f.err
	}
	return "cgt-123", nil
}

func (f *fakeTasks) GetTask(_ context.Context, id string) (ark.Task, error) {
	if f.err != nil {
		return ark.Task{}, f.err
	}
	t := f.task
	t.ID = id
	return t, nil
}

func TestCreateRequest_PromptFlagsAndImage(t *testing.T) {
	p := ark.NewProvider(&fakeTasks{}, "")

	req, err := p.CreateRequest(jobs.Request{
		Kind:        jobs.KindVideo,
		Prompt:      "a banana dancing",
		Resolution:  "1080p",
		AspectRatio: "9:16",
		ImageURL:    "https://cdn/first.png",
	})
	require.NoError(t, err)

	assert.Equal(t, ark.DefaultModel, req.Model)
	require.Len(t, req.Content, 2)
	assert.Equal(t, model.ContentGenerationContentItemTypeText, req.Content[0].Type)
	assert.Equal(t, "a banana dancing --resolution 1080p --ratio 9:16", *req.Content[0].Text)
	assert.Equal(t, model.ContentGenerationContentItemTypeImage, req.Content[1].Type)
	assert.Equal(t, "https://cdn/first.png", req.Content[1].ImageURL.URL)
}

func TestCreateRequest_RejectsOtherKinds(t *testing.T) {
	p := ark.NewProvider(&fakeTasks{}, "seedance-lite")

	_, err := p.CreateRequest(jobs.Request{Kind: jobs.KindStitch, VideoURLs: []string{"a", "b"}})
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)
}

func TestSubmit_ReturnsQueuedHandle(t *testing.T) {
	api := &fakeTasks{}
	p := ark.NewProvider(api, "seedance-lite")

	sub, err := p.Submit(context.Background(), jobs.Request{Kind: jobs.KindVideo, Prompt: "x"})
	require.NoError(t, err)

	q, ok := sub.(jobs.Queued)
	require.True(t, ok)
	assert.Equal(t, "cgt-123", q.Handle.RequestID)
	assert.Equal(t, "seedance-lite", q.Handle.Model)
	require.Len(t, api.created, 1)
	assert.Equal(t, "x", *api.created[0].Content[0].Text)
}

func TestPoll_MapsTaskStatus(t *testing.T) {
	cases := []struct {
		status string
		want   jobs.RemoteState
	}{
		{"queued", jobs.RemotePending},
		{"running", jobs.RemoteInProgress},
		{"succeeded", jobs.RemoteCompleted},
		{"failed", jobs.RemoteFailed},
		{"cancelled", jobs.RemoteFailed},
	}
	for _, tc := range cases {
		api := &fakeTasks{task: ark.Task{Status: tc.status, VideoURL: "https://cdn/v.mp4"}}
		p := ark.NewProvider(api, "")

		res, err := p.Poll(context.Background(), jobs.Handle{RequestID: "cgt-1"})
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.State, tc.status)
	}
}

func TestPoll_SucceededCarriesVideo(t *testing.T) {
	api := &fakeTasks{task: ark.Task{Status: "succeeded", VideoURL: "https://cdn/v.mp4"}}
	res, err := ark.NewProvider(api, "").Poll(context.Background(), jobs.Handle{RequestID: "cgt-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v.mp4", res.Output.URL)
	assert.Equal(t, "video/mp4", res.Output.ContentType)
}

func TestPoll_FailedMessage(t *testing.T) {
	api := &fakeTasks{task: ark.Task{Status: "failed"}}
	res, err := ark.NewProvider(api, "").Poll(context.Background(), jobs.Handle{RequestID: "cgt-1"})
	require.NoError(t, err)
	assert.Equal(t, "video task cgt-1 failed", res.Error)
}

func TestPoll_FailedKeepsProviderMessage(t *testing.T) {
	api := &fakeTasks{task: ark.Task{Status: "failed", ErrorMessage: "InputTextSensitiveContentDetected"}}
	o := jobs.NewOrchestrator(ark.NewProvider(api, ""), jobs.VideoPolicy)

	job, err := o.Run(context.Background(), jobs.Request{Kind: jobs.KindVideo, Prompt: "a banana surfing"})
	var remote *jobs.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "InputTextSensitiveContentDetected", remote.Message)
	assert.Equal(t, jobs.StatusFailed, job.Status)
}

func TestPoll_TransportError(t *testing.T) {
	api := &fakeTasks{err: errors.New("dial tcp: timeout")}
	_, err := ark.NewProvider(api, "").Poll(context.Background(), jobs.Handle{RequestID: "cgt-1"})
	assert.Error(t, err)
}
