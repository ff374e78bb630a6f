package adpackage_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banana-studio-backend/internal/adpackage"
	"banana-studio-backend/internal/logging"
)

type fakeText struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeText) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

const modelReply = "```json\n" + `{
  "base_script": {
    "hook": "Still peeling by hand?",
    "beats": [
      {"t_start": -1, "t_end": 3, "voiceover": "Still peeling?"},
      {"t_start": 12, "t_end": 40, "voiceover": "Get Peel Pro."}
    ],
    "cta": "Shop now",
    "captions": "` + "%CAPTION%" + `",
    "hashtags": ["#banana"]
  },
  "variants": [
    {"tone": "bold", "hook_rewrite": "Stop peeling.", "script": {"hook": "a", "beats": [], "cta": "b", "captions": "c"}},
    {"tone": "sarcastic", "script": {"hook": "a", "beats": [], "cta": "b", "captions": "c"}},
    {"script": {"hook": "a", "beats": [], "cta": "b", "captions": "c"}},
    {"script": {"hook": "a", "beats": [], "cta": "b", "captions": "c"}}
  ]
}` + "\n```"

func TestGenerate_NormalizesModelOutput(t *testing.T) {
	text := &fakeText{reply: strings.Replace(modelReply, "%CAPTION%", strings.Repeat("é", 200), 1)}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	gen := adpackage.NewGeneratorWithClock(text, func() time.Time { return now }, logging.Discard())

	pkg, err := gen.Generate(context.Background(), validBrief(), 3)
	require.NoError(t, err)
	require.Len(t, text.prompts, 1)
	assert.Contains(t, text.prompts[0], "Peel Pro")
	assert.Contains(t, text.prompts[0], "at most 150 characters")

	beats := pkg.BaseScript.Beats
	require.Len(t, beats, 2)
	assert.Equal(t, 0.0, beats[0].TStart)
	assert.Equal(t, 15.0, beats[1].TEnd)
	assert.NotNil(t, beats[0].Overlay)
	assert.Equal(t, 150, len([]rune(pkg.BaseScript.Captions)))
	assert.NotNil(t, pkg.BaseScript.ComplianceNotes)

	require.Len(t, pkg.Variants, 3)
	assert.Equal(t, "variant-1", pkg.Variants[0].ID)
	assert.Equal(t, adpackage.ToneBold, pkg.Variants[0].Tone)
	assert.Equal(t, adpackage.ToneBold, pkg.Variants[1].Tone)
	assert.Equal(t, adpackage.ToneAuthoritative, pkg.Variants[2].Tone)
	for _, v := range pkg.Variants {
		assert.Equal(t, adpackage.PlatformTikTok, v.Platform)
	}
	assert.Equal(t, now, pkg.CreatedAt)
}

func TestGenerate_InvalidBriefNeverCallsModel(t *testing.T) {
	text := &fakeText{}
	gen := adpackage.NewGenerator(text, nil)

	brief := validBrief()
	brief.Objective = "virality"
	_, err := gen.Generate(context.Background(), brief, 3)
	assert.ErrorIs(t, err, adpackage.ErrInvalidBrief)
	assert.Empty(t, text.prompts)
}

func TestGenerate_ModelError(t *testing.T) {
	gen := adpackage.NewGenerator(&fakeText{err: errors.New("quota exceeded")}, nil)

	_, err := gen.Generate(context.Background(), validBrief(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerate_MalformedReply(t *testing.T) {
	gen := adpackage.NewGenerator(&fakeText{reply: "I cannot help with that"}, nil)

	_, err := gen.Generate(context.Background(), validBrief(), 2)
	assert.Error(t, err)
}

func TestGenerate_ClampsVariantCount(t *testing.T) {
	text := &fakeText{reply: `{"base_script":{"hook":"h","beats":[],"cta":"c","captions":"x"},"variants":[]}`}
	gen := adpackage.NewGenerator(text, nil)

	pkg, err := gen.Generate(context.Background(), validBrief(), 12)
	require.NoError(t, err)
	assert.Contains(t, text.prompts[0], "exactly 5 variants")
	assert.NotNil(t, pkg.Variants)
	assert.Empty(t, pkg.Variants)
}
