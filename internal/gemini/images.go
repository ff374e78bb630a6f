package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"banana-studio-backend/internal/jobs"
)

var variationFocus = []string{
	"Focus on the main subject with dramatic lighting and close-up details.",
	"Emphasize the environment and atmosphere with wide composition.",
	"Highlight the composition and spatial relationships between elements.",
	"Focus on color harmony and mood with artistic lighting effects.",
	"Emphasize texture and material details with sharp focus.",
}

// MaxVariations is the most images one request can produce.
var MaxVariations = len(variationFocus)

// ImageProvider generates still images. Results are always immediate.
type ImageProvider struct {
	client *Client
}

func NewImageProvider(client *Client) *ImageProvider {
	return &ImageProvider{client: client}
}

// VariationPrompt is the instruction for variation i (zero based).
func VariationPrompt(brief string, i int, hasSketch bool) string {
	var b strings.Builder
	b.WriteString("Generate a photorealistic advertising image that matches the brief below.\n\n")
	b.WriteString(strings.TrimSpace(brief))
	b.WriteString("\n\nInstructions:\n")
	if hasSketch {
		b.WriteString("- Use the first image as the composition guide.\n")
		b.WriteString("- Take color, lighting and style cues from the reference image.\n")
	}
	fmt.Fprintf(&b, "- This is VARIATION %d.\n", i+1)
	fmt.Fprintf(&b, "- %s\n", variationFocus[i%len(variationFocus)])
	b.WriteString("- Return the image in high resolution.")
	return b.String()
}

func (p *ImageProvider) Submit(ctx context.Context, req jobs.Request) (jobs.Submission, error) {
	count := req.Count
	if count <= 0 || count > MaxVariations {
		count = MaxVariations
	}

	var images []jobs.Image
	var lastErr error
	for i := 0; i < count; i++ {
		parts := []*genai.Part{genai.NewPartFromText(VariationPrompt(req.Prompt, i, req.Image != nil))}
		if req.Image != nil {
			parts = append(parts, genai.NewPartFromBytes(req.Image.Data, mimeOrJPEG(req.Image.MimeType)))
		}
		if n := len(req.References); n > 0 {
			ref := req.References[i%n]
			parts = append(parts, genai.NewPartFromBytes(ref.Data, mimeOrJPEG(ref.MimeType)))
		}

		result, err := p.client.gen.GenerateContent(ctx, p.client.models.Image,
			[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
			&genai.GenerateContentConfig{
				Temperature:        genai.Ptr[float32](0.8),
				ResponseModalities: []string{"IMAGE", "TEXT"},
			})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.client.logger.Warn("image variation failed", "variation", i+1, "error", err)
			lastErr = err
			continue
		}

		generated := inlineImages(result)
		if len(generated) == 0 {
			p.client.logger.Warn("image variation returned no image", "variation", i+1)
			continue
		}
		images = append(images, generated[0])
	}

	if len(images) == 0 {
		msg := "the model did not generate any images; try adjusting the prompt or reference images"
		if lastErr != nil {
			msg = lastErr.Error()
		}
		return nil, &jobs.RemoteError{Kind: jobs.KindImage, Message: msg}
	}
	return jobs.Immediate{Output: jobs.Output{Images: images, ContentType: images[0].MimeType}}, nil
}

func (p *ImageProvider) Poll(ctx context.Context, handle jobs.Handle) (jobs.PollResult, error) {
	return jobs.PollResult{}, fmt.Errorf("image jobs complete on submit; nothing to poll for %s", handle.RequestID)
}
