package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"banana-studio-backend/internal/frames"
	"banana-studio-backend/internal/gemini"
	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/models"
)

const defaultFramesPerSecond = 1.0

type FrameExtractor interface {
	ExtractReader(ctx context.Context, r io.Reader, ext string, opts frames.Options) ([]frames.Frame, error)
}

// FrameEditor edits and reviews frames with a generative model.
type FrameEditor interface {
	EditFrame(ctx context.Context, img jobs.Image, prompt string) (*jobs.Image, error)
	AnalyzeFrames(ctx context.Context, images []jobs.Image) ([]gemini.Suggestion, error)
}

type FrameResponse struct {
	Index            int     `json:"index"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	MimeType         string  `json:"mime_type"`
	ImageData        []byte  `json:"image_data"`
	Edited           bool    `json:"edited"`
}

type FrameSessionResponse struct {
	SessionID  string          `json:"session_id"`
	SourceName string          `json:"source_name,omitempty"`
	FrameCount int             `json:"frame_count"`
	Frames     []FrameResponse `json:"frames"`
	CreatedAt  time.Time       `json:"created_at"`
}

func sessionResponse(s *frames.Session) FrameSessionResponse {
	current := s.Current()
	out := make([]FrameResponse, len(current))
	for i, f := range current {
		_, edited := s.Overlay.Get(i)
		out[i] = FrameResponse{
			Index:            f.ID,
			TimestampSeconds: f.TimestampSeconds,
			MimeType:         f.MimeType,
			ImageData:        f.ImageData,
			Edited:           edited,
		}
	}
	return FrameSessionResponse{
		SessionID:  s.ID.String(),
		SourceName: s.SourceName,
		FrameCount: len(out),
		Frames:     out,
		CreatedAt:  s.CreatedAt,
	}
}

type FramesHandler struct {
	extractor FrameExtractor
	sessions  *frames.SessionStore
	editor    FrameEditor
	maxUpload int64
	logger    *slog.Logger
}

func NewFramesHandler(extractor FrameExtractor, sessions *frames.SessionStore, editor FrameEditor, maxUpload int64, logger *slog.Logger) *FramesHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FramesHandler{
		extractor: extractor,
		sessions:  sessions,
		editor:    editor,
		maxUpload: maxUpload,
		logger:    logging.WithComponent(logger, "frames"),
	}
}

// ParseExtractOptions reads fps, start_time and end_time form values. A trim
// window is set when either bound is given; a missing end runs to the end of
// the video.
func ParseExtractOptions(fps, start, end string) (frames.Options, error) {
	opts := frames.Options{FramesPerSecond: defaultFramesPerSecond}
	if fps != "" {
		v, err := strconv.ParseFloat(fps, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: fps must be a number", frames.ErrInvalidOptions)
		}
		opts.FramesPerSecond = v
	}
	if start == "" && end == "" {
		return opts, nil
	}

	w := frames.Window{Start: 0, End: math.Inf(1)}
	if start != "" {
		v, err := strconv.ParseFloat(start, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: start_time must be a number", frames.ErrInvalidOptions)
		}
		w.Start = v
	}
	if end != "" {
		v, err := strconv.ParseFloat(end, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: end_time must be a number", frames.ErrInvalidOptions)
		}
		w.End = v
	}
	opts.Trim = &w
	return opts, nil
}

// ExtractFrames godoc
// @Summary     Extract frames from a video
// @Description Samples frames at a fixed rate over an optional trim window and opens an editing session
// @Tags        frames
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       video      formData file   true  "Video file"
// @Param       fps        formData number false "Frames per second (default 1)"
// @Param       start_time formData number false "Trim start in seconds"
// @Param       end_time   formData number false "Trim end in seconds"
// @Success     201 {object} FrameSessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /frames/extract [post]
func (h *FramesHandler) ExtractFrames(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "video file is required", Message: err.Error()})
		return
	}

	opts, err := ParseExtractOptions(c.PostForm("fps"), c.PostForm("start_time"), c.PostForm("end_time"))
	if err != nil {
		respondError(c, "invalid extraction options", err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read upload", Message: err.Error()})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	extracted, err := h.extractor.ExtractReader(c.Request.Context(), file, ext, opts)
	if err != nil {
		h.logger.Warn("frame extraction failed", "file", fileHeader.Filename, "error", err)
		respondError(c, "failed to extract frames", err)
		return
	}

	session := h.sessions.Create(userID, fileHeader.Filename, extracted)
	h.logger.Info("frame session created", "session_id", session.ID, "frames", len(extracted))
	c.JSON(http.StatusCreated, sessionResponse(session))
}

func (h *FramesHandler) session(c *gin.Context) (*frames.Session, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return nil, false
	}
	sessionID, ok := uuidParam(c, "session_id")
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Get(sessionID, userID)
	if err != nil {
		respondError(c, "failed to get frame session", err)
		return nil, false
	}
	return s, true
}

func (h *FramesHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

func (h *FramesHandler) DeleteSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}
	if err := h.sessions.Delete(sessionID, userID); err != nil {
		respondError(c, "failed to delete frame session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EditFrame godoc
// @Summary     Edit one frame with a text instruction
// @Tags        frames
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       index      path int    true "Frame index"
// @Param       request body models.EditFrameRequest true "Edit instruction"
// @Success     200 {object} FrameResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /frames/sessions/{session_id}/frames/{index}/edit [post]
func (h *FramesHandler) EditFrame(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid index"})
		return
	}

	var req models.EditFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	frame, err := s.Frame(index)
	if err != nil {
		respondError(c, "failed to edit frame", err)
		return
	}

	edited, err := h.editor.EditFrame(c.Request.Context(), jobs.Image{Data: frame.ImageData, MimeType: frame.MimeType}, req.Prompt)
	if err != nil {
		h.logger.Warn("frame edit failed", "session_id", s.ID, "index", index, "error", err)
		respondUpstream(c, "failed to edit frame", err)
		return
	}

	updated := frames.Frame{
		ImageData:        edited.Data,
		MimeType:         edited.MimeType,
		TimestampSeconds: frame.TimestampSeconds,
	}
	if err := s.Overlay.Set(index, updated); err != nil {
		respondError(c, "failed to edit frame", err)
		return
	}

	c.JSON(http.StatusOK, FrameResponse{
		Index:            index,
		TimestampSeconds: updated.TimestampSeconds,
		MimeType:         updated.MimeType,
		ImageData:        updated.ImageData,
		Edited:           true,
	})
}

// RevertFrame drops the edit of one frame.
func (h *FramesHandler) RevertFrame(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid index"})
		return
	}
	if err := s.Overlay.Revert(index); err != nil {
		respondError(c, "failed to revert frame", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AnalyzeFrames godoc
// @Summary     Suggest edits for frames
// @Tags        frames
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       request body models.AnalyzeFramesRequest false "Frame indices; all frames when empty"
// @Success     200 {object} models.AnalyzeFramesResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /frames/sessions/{session_id}/analyze [post]
func (h *FramesHandler) AnalyzeFrames(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req models.AnalyzeFramesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	indices := req.Indices
	if len(indices) == 0 {
		indices = make([]int, len(s.Frames))
		for i := range indices {
			indices[i] = i
		}
	}
	if len(indices) == 0 {
		c.JSON(http.StatusOK, models.AnalyzeFramesResponse{Suggestions: []models.FrameSuggestion{}})
		return
	}

	images := make([]jobs.Image, len(indices))
	for i, idx := range indices {
		f, err := s.Frame(idx)
		if err != nil {
			respondError(c, "failed to analyze frames", err)
			return
		}
		images[i] = jobs.Image{Data: f.ImageData, MimeType: f.MimeType}
	}

	suggestions, err := h.editor.AnalyzeFrames(c.Request.Context(), images)
	if err != nil {
		respondUpstream(c, "failed to analyze frames", err)
		return
	}

	// the model numbers frames by their position in the request
	out := make([]models.FrameSuggestion, 0, len(suggestions))
	for _, sg := range suggestions {
		if sg.FrameIndex < 0 || sg.FrameIndex >= len(indices) {
			h.logger.Debug("dropping suggestion for unknown frame", "frame_index", sg.FrameIndex, "sent", len(indices))
			continue
		}
		out = append(out, models.FrameSuggestion{FrameIndex: indices[sg.FrameIndex], Suggestion: sg.Suggestion})
	}
	c.JSON(http.StatusOK, models.AnalyzeFramesResponse{Suggestions: out})
}

// SweepSessions drops sessions idle longer than maxAge every interval until
// ctx ends.
func SweepSessions(ctx context.Context, sessions *frames.SessionStore, interval, maxAge time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(maxAge); n > 0 {
				logger.Info("swept idle frame sessions", "count", n)
			}
		}
	}
}
