package adpackage

import "time"

type Platform string

const (
	PlatformTikTok         Platform = "tiktok"
	PlatformInstagramReels Platform = "instagram_reels"
	PlatformYouTubeShorts  Platform = "youtube_shorts"
)

type Objective string

const (
	ObjectiveAwareness  Objective = "awareness"
	ObjectiveTraffic    Objective = "traffic"
	ObjectiveConversion Objective = "conversion"
)

type Tone string

const (
	TonePlayful       Tone = "playful"
	ToneBold          Tone = "bold"
	ToneAuthoritative Tone = "authoritative"
	ToneFriendly      Tone = "friendly"
	ToneLuxury        Tone = "luxury"
)

// Tones in the order variants cycle through them.
var Tones = []Tone{TonePlayful, ToneBold, ToneAuthoritative, ToneFriendly, ToneLuxury}

// Brief is the structured input for one ad package.
type Brief struct {
	Brand           string    `json:"brand" validate:"required"`
	Product         string    `json:"product" validate:"required"`
	ValueProp       string    `json:"value_prop" validate:"required"`
	Audience        string    `json:"audience" validate:"required"`
	Objective       Objective `json:"objective" validate:"required,oneof=awareness traffic conversion"`
	Platform        Platform  `json:"platform" validate:"required,oneof=tiktok instagram_reels youtube_shorts"`
	DurationSec     int       `json:"duration_sec" validate:"min=6,max=60"`
	BriefContext    string    `json:"brief_context,omitempty"`
	SensitiveClaims bool      `json:"sensitive_claims"`
}

type Beat struct {
	TStart       float64  `json:"t_start" validate:"min=0"`
	TEnd         float64  `json:"t_end" validate:"min=0"`
	Voiceover    string   `json:"voiceover,omitempty"`
	OnScreenText string   `json:"on_screen_text,omitempty"`
	Overlay      []string `json:"overlay"`
	ShotNotes    string   `json:"shot_notes,omitempty"`
}

type Script struct {
	Hook            string   `json:"hook"`
	Beats           []Beat   `json:"beats" validate:"dive"`
	CTA             string   `json:"cta"`
	Captions        string   `json:"captions"`
	Hashtags        []string `json:"hashtags"`
	ComplianceNotes []string `json:"compliance_notes"`
}

type Variant struct {
	ID          string   `json:"id"`
	Tone        Tone     `json:"tone,omitempty" validate:"omitempty,oneof=playful bold authoritative friendly luxury"`
	HookRewrite string   `json:"hook_rewrite,omitempty"`
	CTARewrite  string   `json:"cta_rewrite,omitempty"`
	Platform    Platform `json:"platform,omitempty"`
	Script      Script   `json:"script"`
}

type Package struct {
	Brief      Brief     `json:"brief"`
	BaseScript Script    `json:"base_script"`
	Variants   []Variant `json:"variants" validate:"dive"`
	CreatedAt  time.Time `json:"created_at"`
}

type PlatformConstraints struct {
	Platform             Platform `json:"platform"`
	MaxCaptionLength     int      `json:"max_caption_length"`
	SafeAreaPercent      float64  `json:"safe_area_percent"`
	RecommendedDurations []int    `json:"recommended_durations"`
}

var platformConstraints = map[Platform]PlatformConstraints{
	PlatformTikTok: {
		Platform:             PlatformTikTok,
		MaxCaptionLength:     150,
		SafeAreaPercent:      0.8,
		RecommendedDurations: []int{6, 15, 30},
	},
	PlatformInstagramReels: {
		Platform:             PlatformInstagramReels,
		MaxCaptionLength:     2200,
		SafeAreaPercent:      0.85,
		RecommendedDurations: []int{15, 30, 60},
	},
	PlatformYouTubeShorts: {
		Platform:             PlatformYouTubeShorts,
		MaxCaptionLength:     100,
		SafeAreaPercent:      0.9,
		RecommendedDurations: []int{15, 30, 60},
	},
}

// Constraints returns the publishing limits for p.
func Constraints(p Platform) (PlatformConstraints, bool) {
	c, ok := platformConstraints[p]
	if !ok {
		return PlatformConstraints{}, false
	}
	c.RecommendedDurations = append([]int(nil), c.RecommendedDurations...)
	return c, true
}

// AllConstraints lists every platform in a stable order.
func AllConstraints() []PlatformConstraints {
	out := make([]PlatformConstraints, 0, len(platformConstraints))
	for _, p := range []Platform{PlatformTikTok, PlatformInstagramReels, PlatformYouTubeShorts} {
		c, _ := Constraints(p)
		out = append(out, c)
	}
	return out
}
