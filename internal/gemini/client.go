package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/logging"
)

var ErrNoImage = errors.New("no image was returned from the model")

// ContentGenerator is the genai call this package makes.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Models struct {
	Image string
	Edit  string
	Text  string
}

type Client struct {
	gen    ContentGenerator
	models Models
	logger *slog.Logger
}

// NewClient connects to the Gemini API with apiKey.
func NewClient(ctx context.Context, apiKey string, models Models, logger *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewClientWithGenerator(client.Models, models, logger), nil
}

func NewClientWithGenerator(gen ContentGenerator, models Models, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		gen:    gen,
		models: models,
		logger: logging.WithComponent(logger, "gemini"),
	}
}

// EditFrame applies a text instruction to one image and returns the edited
// image.
func (c *Client) EditFrame(ctx context.Context, img jobs.Image, prompt string) (*jobs.Image, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(img.Data, mimeOrJPEG(img.MimeType)),
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := c.gen.GenerateContent(ctx, c.models.Edit, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit frame: %w", err)
	}

	images := inlineImages(result)
	if len(images) == 0 {
		return nil, ErrNoImage
	}
	return &images[0], nil
}

const analyzePrompt = "You are a creative video editor's assistant. Analyze these video frames and provide suggestions for edits that would make a short video clip more engaging for marketing. Identify key moments or objects. Provide a list of suggestions in JSON format with frameIndex and suggestion fields."

type Suggestion struct {
	FrameIndex int    `json:"frameIndex"`
	Suggestion string `json:"suggestion"`
}

// AnalyzeFrames asks the text model for edit suggestions on frames. A reply
// that is not valid JSON yields one generic suggestion per frame.
func (c *Client) AnalyzeFrames(ctx context.Context, frames []jobs.Image) ([]Suggestion, error) {
	parts := []*genai.Part{genai.NewPartFromText(analyzePrompt)}
	for _, f := range frames {
		parts = append(parts, genai.NewPartFromBytes(f.Data, mimeOrJPEG(f.MimeType)))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := c.gen.GenerateContent(ctx, c.models.Text, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze frames: %w", err)
	}

	suggestions, ok := ParseSuggestions(result.Text())
	if !ok {
		c.logger.Warn("unparseable frame analysis, using fallback suggestions", "frames", len(frames))
		return FallbackSuggestions(len(frames)), nil
	}
	return suggestions, nil
}

// ParseSuggestions accepts either a bare array or an object with a
// "suggestions" array.
func ParseSuggestions(text string) ([]Suggestion, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var list []Suggestion
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, true
	}

	var wrapped struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.Suggestions != nil {
		return wrapped.Suggestions, true
	}
	return nil, false
}

func FallbackSuggestions(n int) []Suggestion {
	out := make([]Suggestion, n)
	for i := range out {
		out[i] = Suggestion{
			FrameIndex: i,
			Suggestion: fmt.Sprintf("Consider enhancing frame %d with creative effects or text overlays", i+1),
		}
	}
	return out
}

// GenerateJSON runs prompt against the text model in JSON mode and returns
// the raw reply.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	result, err := c.gen.GenerateContent(ctx, c.models.Text, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}

func inlineImages(result *genai.GenerateContentResponse) []jobs.Image {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil
	}
	var out []jobs.Image
	for _, part := range result.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		out = append(out, jobs.Image{
			Data:     part.InlineData.Data,
			MimeType: part.InlineData.MIMEType,
		})
	}
	return out
}

func mimeOrJPEG(mime string) string {
	if mime == "" {
		return "image/jpeg"
	}
	return mime
}
