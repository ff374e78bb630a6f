package adpackage

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ExportJSON renders pkg as indented JSON. ParseJSON reverses it exactly.
func ExportJSON(pkg *Package) ([]byte, error) {
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode ad package: %w", err)
	}
	return data, nil
}

func ParseJSON(data []byte) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to decode ad package: %w", err)
	}
	if err := validate.Struct(pkg); err != nil {
		return nil, fmt.Errorf("invalid ad package: %s", describe(err))
	}
	return &pkg, nil
}

// ExportSRT writes one subtitle entry per beat that has a voiceover. Entry
// numbers follow the beat position, so skipped beats leave gaps.
func ExportSRT(script Script) string {
	var b strings.Builder
	for i, beat := range script.Beats {
		if beat.Voiceover == "" {
			continue
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, SRTTimestamp(beat.TStart), SRTTimestamp(beat.TEnd), beat.Voiceover)
	}
	return b.String()
}

// SRTTimestamp formats seconds as HH:MM:SS,mmm. Milliseconds are truncated.
func SRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := math.Floor(seconds)
	total := int(whole)
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	ms := int(math.Floor((seconds - whole) * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hrs, mins, secs, ms)
}

// SRTFileName is the download name for a package's subtitles.
func SRTFileName() string {
	return "script_captions.srt"
}

func JSONFileName(pkg *Package) string {
	brand := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, pkg.Brief.Brand)
	if brand == "" {
		brand = "ad"
	}
	return brand + "_ad_package.json"
}
