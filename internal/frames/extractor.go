package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"banana-studio-backend/internal/metrics"
	"banana-studio-backend/internal/tracing"
)

const MimeTypeJPEG = "image/jpeg"

var (
	ErrLoad           = errors.New("failed to load video")
	ErrInvalidOptions = errors.New("invalid extraction options")
)

// Frame is one still sampled from a video. ID is the dense ordinal of the
// frame within its extraction run.
type Frame struct {
	ID               int     `json:"id"`
	ImageData        []byte  `json:"image_data"`
	MimeType         string  `json:"mime_type"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
}

// Window is a half-open trim range [Start, End) in seconds.
type Window struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

type Options struct {
	FramesPerSecond float64
	Trim            *Window
}

// Decoder opens a video for random-access rasterization.
type Decoder interface {
	Open(ctx context.Context, path string) (Source, error)
}

// Source is a single decode cursor over an opened video. Calls to FrameAt
// move the cursor and must not run concurrently.
type Source interface {
	Duration() float64
	FrameAt(ctx context.Context, seconds float64) ([]byte, error)
	Close() error
}

type Extractor struct {
	decoder Decoder
	tempDir string
	logger  *slog.Logger
}

func NewExtractor(decoder Decoder, tempDir string, logger *slog.Logger) *Extractor {
	return &Extractor{
		decoder: decoder,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Timestamps returns the sampling plan start, start+1/fps, ... strictly below end.
func Timestamps(start, end, fps float64) []float64 {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) || end <= start {
		return nil
	}

	const epsilon = 1e-9
	var times []float64
	for i := 0; ; i++ {
		t := start + float64(i)/fps
		if t >= end-epsilon {
			break
		}
		times = append(times, t)
	}
	return times
}

func validate(opts Options) error {
	fps := opts.FramesPerSecond
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return fmt.Errorf("%w: frames per second must be positive, got %v", ErrInvalidOptions, fps)
	}
	if opts.Trim != nil {
		if opts.Trim.Start < 0 {
			return fmt.Errorf("%w: start time must not be negative", ErrInvalidOptions)
		}
		if opts.Trim.End < opts.Trim.Start {
			return fmt.Errorf("%w: end time %.3f is before start time %.3f", ErrInvalidOptions, opts.Trim.End, opts.Trim.Start)
		}
	}
	return nil
}

// clampWindow bounds the requested trim to the source duration.
func clampWindow(trim *Window, duration float64) (float64, float64) {
	if trim == nil {
		return 0, duration
	}
	return math.Min(trim.Start, duration), math.Min(trim.End, duration)
}

// Extract samples frames from the video at path. A zero-length window yields no
// frames and no error. Any decode failure discards the frames gathered so far.
func (e *Extractor) Extract(ctx context.Context, path string, opts Options) ([]Frame, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	ctx, span := tracing.Tracer("frames").Start(ctx, "frames.Extract")
	defer span.End()

	src, err := e.decoder.Open(ctx, path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			e.logger.Warn("failed to release decode source", "path", path, "error", cerr)
		}
	}()

	start, end := clampWindow(opts.Trim, src.Duration())
	times := Timestamps(start, end, opts.FramesPerSecond)
	span.SetAttributes(
		attribute.Float64("frames.fps", opts.FramesPerSecond),
		attribute.Float64("frames.start", start),
		attribute.Float64("frames.end", end),
		attribute.Int("frames.count", len(times)),
	)

	frames := make([]Frame, 0, len(times))
	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := src.FrameAt(ctx, t)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: frame %d at %.3fs: %w", ErrLoad, i, t, err)
		}
		frames = append(frames, Frame{
			ID:               i,
			ImageData:        data,
			MimeType:         MimeTypeJPEG,
			TimestampSeconds: t,
		})
	}

	metrics.FramesExtractedTotal.Add(float64(len(frames)))
	e.logger.Debug("frames extracted",
		"count", len(frames),
		"fps", opts.FramesPerSecond,
		"start", start,
		"end", end,
	)
	return frames, nil
}

// ExtractReader spools r to a temporary file, extracts from it and removes the
// file again on every path.
func (e *Extractor) ExtractReader(ctx context.Context, r io.Reader, ext string, opts Options) ([]Frame, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(e.tempDir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if rerr := os.Remove(tmp.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			e.logger.Warn("failed to remove temp file", "path", tmp.Name(), "error", rerr)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}

	return e.Extract(ctx, tmp.Name(), opts)
}
