package jobs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"banana-studio-backend/internal/jobs"
)

func TestRequestValidate(t *testing.T) {
	valid := []jobs.Request{
		{Kind: jobs.KindImage, Prompt: "banana"},
		{Kind: jobs.KindVideo, Prompt: "banana"},
		{Kind: jobs.KindUpscale, ImageURL: "https://cdn/a.png"},
		{Kind: jobs.KindUpscale, Image: &jobs.Image{Data: []byte{1}}},
		{Kind: jobs.KindStitch, VideoURLs: []string{"a", "b"}},
	}
	for _, r := range valid {
		assert.NoError(t, r.Validate(), r.Kind)
	}

	invalid := []jobs.Request{
		{Kind: jobs.KindImage, Prompt: "   "},
		{Kind: jobs.KindVideo},
		{Kind: jobs.KindUpscale},
		{Kind: jobs.KindStitch, VideoURLs: []string{"a"}},
		{Kind: "podcast"},
	}
	for _, r := range invalid {
		assert.ErrorIs(t, r.Validate(), jobs.ErrInvalidRequest, r.Kind)
	}
}

func TestImageDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQID", jobs.Image{Data: []byte{1, 2, 3}, MimeType: "image/png"}.DataURI())
	assert.Equal(t, "data:image/jpeg;base64,", jobs.Image{}.DataURI())
}

func TestRemoteErrorMessage(t *testing.T) {
	assert.Equal(t, "nope", (&jobs.RemoteError{Kind: jobs.KindVideo, Message: "nope"}).Error())
	assert.Equal(t, "video generation failed", (&jobs.RemoteError{Kind: jobs.KindVideo}).Error())
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, jobs.StatusCompleted.IsTerminal())
	assert.True(t, jobs.StatusFailed.IsTerminal())
	assert.False(t, jobs.StatusPending.IsTerminal())
	assert.False(t, jobs.StatusInProgress.IsTerminal())
}
