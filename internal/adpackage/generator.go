package adpackage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"banana-studio-backend/internal/logging"
)

const (
	DefaultVariants = 3
	MaxVariants     = 5
)

// TextGenerator returns a JSON document for a prompt.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type Generator struct {
	text   TextGenerator
	now    func() time.Time
	logger *slog.Logger
}

func NewGenerator(text TextGenerator, logger *slog.Logger) *Generator {
	return NewGeneratorWithClock(text, time.Now, logger)
}

func NewGeneratorWithClock(text TextGenerator, now func() time.Time, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Generator{
		text:   text,
		now:    now,
		logger: logging.WithComponent(logger, "adpackage"),
	}
}

type generated struct {
	BaseScript Script    `json:"base_script"`
	Variants   []Variant `json:"variants"`
}

// Generate builds a package for brief with up to variantCount variants. The
// brief is validated before the model is called.
func (g *Generator) Generate(ctx context.Context, brief Brief, variantCount int) (*Package, error) {
	if err := ValidateBrief(brief); err != nil {
		return nil, err
	}
	if variantCount <= 0 {
		variantCount = DefaultVariants
	}
	if variantCount > MaxVariants {
		variantCount = MaxVariants
	}

	reply, err := g.text.GenerateJSON(ctx, Prompt(brief, variantCount))
	if err != nil {
		return nil, fmt.Errorf("failed to generate ad package: %w", err)
	}

	var out generated
	if err := json.Unmarshal([]byte(stripFence(reply)), &out); err != nil {
		g.logger.Warn("model returned malformed ad package", "error", err)
		return nil, fmt.Errorf("failed to decode generated ad package: %w", err)
	}

	pkg := &Package{
		Brief:      brief,
		BaseScript: out.BaseScript,
		Variants:   out.Variants,
		CreatedAt:  g.now().UTC(),
	}
	Normalize(pkg, variantCount)
	g.logger.Info("ad package generated", "platform", brief.Platform, "variants", len(pkg.Variants), "beats", len(pkg.BaseScript.Beats))
	return pkg, nil
}

// Normalize fits a generated package to its brief: beats inside the
// duration, captions within the platform limit, variants labelled.
func Normalize(pkg *Package, variantCount int) {
	duration := float64(pkg.Brief.DurationSec)
	maxCaption := 0
	if c, ok := Constraints(pkg.Brief.Platform); ok {
		maxCaption = c.MaxCaptionLength
	}

	normalizeScript(&pkg.BaseScript, duration, maxCaption)

	if variantCount > 0 && len(pkg.Variants) > variantCount {
		pkg.Variants = pkg.Variants[:variantCount]
	}
	for i := range pkg.Variants {
		v := &pkg.Variants[i]
		v.ID = fmt.Sprintf("variant-%d", i+1)
		if v.Tone == "" || !validTone(v.Tone) {
			v.Tone = Tones[i%len(Tones)]
		}
		v.Platform = pkg.Brief.Platform
		normalizeScript(&v.Script, duration, maxCaption)
	}
	if pkg.Variants == nil {
		pkg.Variants = []Variant{}
	}
}

func normalizeScript(s *Script, duration float64, maxCaption int) {
	for i := range s.Beats {
		b := &s.Beats[i]
		b.TStart = clamp(b.TStart, 0, duration)
		b.TEnd = clamp(b.TEnd, 0, duration)
		if b.TEnd < b.TStart {
			b.TEnd = b.TStart
		}
		if b.Overlay == nil {
			b.Overlay = []string{}
		}
	}
	if s.Beats == nil {
		s.Beats = []Beat{}
	}
	if maxCaption > 0 {
		s.Captions = truncateRunes(s.Captions, maxCaption)
	}
	if s.Hashtags == nil {
		s.Hashtags = []string{}
	}
	if s.ComplianceNotes == nil {
		s.ComplianceNotes = []string{}
	}
}

func validTone(t Tone) bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// stripFence removes a markdown code fence around a JSON reply.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Prompt is the instruction sent to the text model for brief.
func Prompt(brief Brief, variantCount int) string {
	c, _ := Constraints(brief.Platform)

	var b strings.Builder
	b.WriteString("You are an ad-creative writer for short-form vertical video.\n\n")
	b.WriteString("BRIEF:\n")
	fmt.Fprintf(&b, "- Brand: %s\n", brief.Brand)
	fmt.Fprintf(&b, "- Product: %s\n", brief.Product)
	fmt.Fprintf(&b, "- Value proposition: %s\n", brief.ValueProp)
	fmt.Fprintf(&b, "- Audience: %s\n", brief.Audience)
	fmt.Fprintf(&b, "- Objective: %s\n", brief.Objective)
	fmt.Fprintf(&b, "- Platform: %s\n", brief.Platform)
	fmt.Fprintf(&b, "- Duration: %d seconds\n", brief.DurationSec)
	if brief.BriefContext != "" {
		fmt.Fprintf(&b, "\nUSER_BRIEF_CONTEXT:\n%s\n", brief.BriefContext)
	}

	b.WriteString("\nCONSTRAINTS:\n")
	fmt.Fprintf(&b, "- Captions must be at most %d characters.\n", c.MaxCaptionLength)
	fmt.Fprintf(&b, "- Keep on-screen text inside the central %.0f%% safe area.\n", c.SafeAreaPercent*100)
	fmt.Fprintf(&b, "- Beat times are seconds within [0, %d].\n", brief.DurationSec)
	if brief.SensitiveClaims {
		b.WriteString("- The brief contains sensitive claims; add compliance notes for each one.\n")
	}

	b.WriteString("\nReturn only JSON with this shape:\n")
	b.WriteString(`{"base_script": {"hook": "", "beats": [{"t_start": 0, "t_end": 0, "voiceover": "", "on_screen_text": "", "overlay": [], "shot_notes": ""}], "cta": "", "captions": "", "hashtags": [], "compliance_notes": []}, "variants": [{"tone": "playful|bold|authoritative|friendly|luxury", "hook_rewrite": "", "cta_rewrite": "", "script": {}}]}`)
	fmt.Fprintf(&b, "\n\nWrite exactly %d variants, each with a different tone.", variantCount)
	return b.String()
}
