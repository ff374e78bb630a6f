package frames

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegDecoder probes with ffprobe and rasterizes single frames with ffmpeg.
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	quality     int
	logger      *slog.Logger
}

// NewFFmpegDecoder creates a decoder. quality is the ffmpeg mjpeg qscale
// (2 best, 31 worst).
func NewFFmpegDecoder(ffmpegPath, ffprobePath string, quality int, logger *slog.Logger) *FFmpegDecoder {
	return &FFmpegDecoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		quality:     quality,
		logger:      logger,
	}
}

func (d *FFmpegDecoder) Open(ctx context.Context, path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat video: %w", err)
	}

	duration, err := d.probeDuration(ctx, path)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("probed video", "path", path, "duration", duration)

	return &ffmpegSource{decoder: d, path: path, duration: duration}, nil
}

func (d *FFmpegDecoder) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, d.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return ParseDuration(string(out))
}

// ParseDuration reads the duration printed by ffprobe.
func ParseDuration(out string) (float64, error) {
	value := strings.TrimSpace(out)
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("video has no duration")
	}
	duration, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", value, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("video has no duration")
	}
	return duration, nil
}

// FrameArgs builds the ffmpeg arguments that seek to seconds and write one
// JPEG frame to stdout.
func FrameArgs(path string, seconds float64, quality int) []string {
	return []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(quality),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}
}

type ffmpegSource struct {
	decoder  *FFmpegDecoder
	path     string
	duration float64
}

func (s *ffmpegSource) Duration() float64 {
	return s.duration
}

func (s *ffmpegSource) FrameAt(ctx context.Context, seconds float64) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.decoder.ffmpegPath, FrameArgs(s.path, seconds, s.decoder.quality)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no image at %.3fs", seconds)
	}
	return stdout.Bytes(), nil
}

func (s *ffmpegSource) Close() error {
	return nil
}
