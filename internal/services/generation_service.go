package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"banana-studio-backend/internal/batch"
	"banana-studio-backend/internal/events"
	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/models"
)

// JobStore persists processing_jobs and video_assets rows and the video of
// the scene a job was generated for.
type JobStore interface {
	GetScene(ctx context.Context, sceneID, userID uuid.UUID) (*models.Scene, error)
	UpdateSceneVideo(ctx context.Context, sceneID, userID uuid.UUID, videoURL string) (*models.Scene, error)
	CreateProcessingJob(ctx context.Context, userID uuid.UUID, projectID uuid.NullUUID, jobType string, input any) (*models.ProcessingJob, error)
	UpdateProcessingJobProgress(ctx context.Context, jobID uuid.UUID, status string, progress int) error
	CompleteProcessingJob(ctx context.Context, jobID uuid.UUID, output any) error
	FailProcessingJob(ctx context.Context, jobID uuid.UUID, errorMsg string, output any) error
	CreateVideoAsset(ctx context.Context, userID uuid.UUID, asset models.VideoAsset) (*models.VideoAsset, error)
}

// Uploader stores inline results and returns their public URL.
type Uploader interface {
	UploadFile(userID uuid.UUID, projectID uuid.NullUUID, filename, contentType string, data []byte) (string, string, error)
}

// Task is one unit of dispatched work. It carries everything a worker needs,
// so it can cross a message queue.
type Task struct {
	JobID     uuid.UUID      `json:"job_id"`
	UserID    uuid.UUID      `json:"user_id"`
	ProjectID uuid.NullUUID  `json:"project_id"`
	SceneID   uuid.NullUUID  `json:"scene_id"`
	JobType   string         `json:"job_type"`
	Requests  []jobs.Request `json:"requests"`
}

// Dispatcher hands a task to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// GenerationOutput is stored in processing_jobs.output_data.
type GenerationOutput struct {
	URL         string              `json:"url,omitempty"`
	URLs        []string            `json:"urls,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	RequestID   string              `json:"request_id,omitempty"`
	Attempts    int                 `json:"attempts,omitempty"`
	Total       int                 `json:"total,omitempty"`
	Completed   int                 `json:"completed,omitempty"`
	Failed      int                 `json:"failed,omitempty"`
	Failures    []batch.ItemFailure `json:"failures,omitempty"`
}

type GenerationService struct {
	store         JobStore
	uploader      Uploader
	publisher     events.Publisher
	orchestrators map[jobs.Kind]*jobs.Orchestrator
	batchLimit    int
	dispatcher    Dispatcher
	logger        *slog.Logger
}

func NewGenerationService(
	store JobStore,
	uploader Uploader,
	publisher events.Publisher,
	orchestrators map[jobs.Kind]*jobs.Orchestrator,
	batchLimit int,
	logger *slog.Logger,
) *GenerationService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &GenerationService{
		store:         store,
		uploader:      uploader,
		publisher:     publisher,
		orchestrators: orchestrators,
		batchLimit:    batchLimit,
		logger:        logging.WithComponent(logger, "generation"),
	}
}

// SetDispatcher wires the executor. It must be called before Start.
func (s *GenerationService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Start records a pending job row for req and dispatches it. A scene must
// belong to the user and, when one is given, to the project. A scene without
// a project attaches the job to the scene's project.
func (s *GenerationService) Start(ctx context.Context, userID uuid.UUID, projectID, sceneID uuid.NullUUID, req jobs.Request) (*models.ProcessingJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, ok := s.orchestrators[req.Kind]; !ok {
		return nil, fmt.Errorf("%w: no provider configured for %s", jobs.ErrInvalidRequest, req.Kind)
	}
	if sceneID.Valid {
		scene, err := s.store.GetScene(ctx, sceneID.UUID, userID)
		if err != nil {
			return nil, err
		}
		if !projectID.Valid {
			projectID = uuid.NullUUID{UUID: scene.ProjectID, Valid: true}
		} else if scene.ProjectID != projectID.UUID {
			return nil, fmt.Errorf("%w: scene %s does not belong to project %s", jobs.ErrInvalidRequest, sceneID.UUID, projectID.UUID)
		}
	}
	return s.start(ctx, Task{
		UserID:    userID,
		ProjectID: projectID,
		SceneID:   sceneID,
		JobType:   string(req.Kind),
		Requests:  []jobs.Request{req},
	})
}

// BatchPrompt is the prompt for the i-th item (zero based) of a batch.
func BatchPrompt(scene string, i int) string {
	return fmt.Sprintf("%s - Dynamic video scene %d", scene, i+1)
}

// StartBatch records one batch_video row and dispatches a video job per
// image.
func (s *GenerationService) StartBatch(ctx context.Context, userID uuid.UUID, projectID uuid.NullUUID, scene string, images []jobs.Image, base jobs.Request) (*models.ProcessingJob, error) {
	if strings.TrimSpace(scene) == "" {
		return nil, fmt.Errorf("%w: scene description is required", jobs.ErrInvalidRequest)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", jobs.ErrInvalidRequest)
	}
	if _, ok := s.orchestrators[jobs.KindVideo]; !ok {
		return nil, fmt.Errorf("%w: no provider configured for %s", jobs.ErrInvalidRequest, jobs.KindVideo)
	}

	reqs := make([]jobs.Request, len(images))
	for i := range images {
		req := base
		req.Kind = jobs.KindVideo
		req.Prompt = BatchPrompt(scene, i)
		img := images[i]
		req.Image = &img
		reqs[i] = req
	}

	return s.start(ctx, Task{
		UserID:    userID,
		ProjectID: projectID,
		JobType:   models.JobTypeBatchVideo,
		Requests:  reqs,
	})
}

func (s *GenerationService) start(ctx context.Context, task Task) (*models.ProcessingJob, error) {
	if s.dispatcher == nil {
		return nil, errors.New("generation dispatcher is not configured")
	}

	row, err := s.store.CreateProcessingJob(ctx, task.UserID, task.ProjectID, task.JobType, inputSummary(task))
	if err != nil {
		return nil, fmt.Errorf("failed to create processing job: %w", err)
	}
	task.JobID = row.ID

	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		msg := fmt.Sprintf("failed to dispatch job: %v", err)
		if ferr := s.store.FailProcessingJob(context.WithoutCancel(ctx), row.ID, msg, nil); ferr != nil {
			s.logger.Error("failed to mark undispatched job failed", "job_id", row.ID, "error", ferr)
		}
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	s.logger.Info("job dispatched", "job_id", row.ID, "job_type", task.JobType, "items", len(task.Requests))
	return row, nil
}

// inputSummary is the request as stored in input_data, without inline image
// bytes.
func inputSummary(task Task) any {
	type item struct {
		jobs.Request
		HasImage       bool `json:"has_image,omitempty"`
		ReferenceCount int  `json:"reference_count,omitempty"`
	}
	items := make([]item, len(task.Requests))
	for i, req := range task.Requests {
		it := item{
			Request:        req,
			HasImage:       req.Image != nil,
			ReferenceCount: len(req.References),
		}
		it.Request.Image = nil
		it.Request.References = nil
		items[i] = it
	}
	if len(items) == 1 && task.JobType != models.JobTypeBatchVideo {
		return items[0]
	}
	return map[string]any{"items": items, "total": len(items)}
}

// Execute runs a dispatched task to completion and records the outcome. A
// failed generation is recorded on the row and is not an error here.
func (s *GenerationService) Execute(ctx context.Context, task Task) error {
	if len(task.Requests) == 0 {
		return fmt.Errorf("task %s has no requests", task.JobID)
	}
	if task.JobType == models.JobTypeBatchVideo {
		return s.executeBatch(ctx, task)
	}
	return s.executeSingle(ctx, task)
}

func (s *GenerationService) executeSingle(ctx context.Context, task Task) error {
	req := task.Requests[0]
	logger := logging.WithJobID(s.logger, task.JobID.String()).With("kind", req.Kind)

	orch, ok := s.orchestrators[req.Kind]
	if !ok {
		return s.fail(ctx, task, fmt.Sprintf("no provider configured for %s", req.Kind), nil)
	}

	var last jobs.Job
	observer := func(j jobs.Job) {
		if j.Status.IsTerminal() || (j.Status == last.Status && j.Progress == last.Progress) {
			return
		}
		last = j
		if err := s.store.UpdateProcessingJobProgress(ctx, task.JobID, string(j.Status), j.Progress); err != nil {
			logger.Warn("failed to record job progress", "error", err)
		}
		s.publish(task, events.TypeJobProgress, events.JobEvent{
			JobID:    task.JobID.String(),
			JobType:  task.JobType,
			Status:   string(j.Status),
			Progress: j.Progress,
		})
	}

	job, err := orch.RunJob(ctx, task.JobID.String(), req, observer)
	if err != nil {
		return s.fail(ctx, task, job.Error, &GenerationOutput{RequestID: job.RequestID, Attempts: job.Attempts})
	}

	out, err := s.persistOutput(ctx, task, task.SceneID, req.Kind, job.Result)
	if err != nil {
		logger.Error("failed to store generation output", "error", err)
		return s.fail(ctx, task, err.Error(), nil)
	}
	out.RequestID = job.RequestID
	out.Attempts = job.Attempts

	if req.Kind == jobs.KindVideo && task.SceneID.Valid && out.URL != "" {
		if _, err := s.store.UpdateSceneVideo(context.WithoutCancel(ctx), task.SceneID.UUID, task.UserID, out.URL); err != nil {
			logger.Warn("failed to record scene video", "scene_id", task.SceneID.UUID, "error", err)
		}
	}
	return s.complete(ctx, task, out)
}

func (s *GenerationService) executeBatch(ctx context.Context, task Task) error {
	orch := s.orchestrators[jobs.KindVideo]
	if orch == nil {
		return s.fail(ctx, task, "no provider configured for video", nil)
	}
	logger := logging.WithJobID(s.logger, task.JobID.String())

	if err := s.store.UpdateProcessingJobProgress(ctx, task.JobID, string(jobs.StatusInProgress), 0); err != nil {
		logger.Warn("failed to record job progress", "error", err)
	}

	runner := batch.NewRunner(orch, s.batchLimit, logger)
	run := runner.Run(ctx, task.Requests, func(st batch.Settled) {
		progress := (st.Completed + st.Failed) * 100 / st.Total
		if progress >= 100 {
			progress = 99
		}
		ev := events.BatchItemEvent{
			JobID:     task.JobID.String(),
			Index:     st.Index,
			Status:    string(jobs.StatusCompleted),
			Completed: st.Completed,
			Failed:    st.Failed,
			Total:     st.Total,
		}
		if st.Err != nil {
			ev.Status = string(jobs.StatusFailed)
			ev.Error = st.Err.Error()
		}
		s.publish(task, events.TypeBatchItem, ev)
		if err := s.store.UpdateProcessingJobProgress(ctx, task.JobID, string(jobs.StatusInProgress), progress); err != nil {
			logger.Warn("failed to record batch progress", "error", err)
		}
	})

	out := &GenerationOutput{
		Total:     run.Total,
		Completed: run.Completed,
		Failed:    run.Failed,
		Failures:  run.Failures,
	}
	for _, r := range run.Results {
		item, err := s.persistOutput(ctx, task, uuid.NullUUID{}, jobs.KindVideo, r.Job.Result)
		if err != nil {
			logger.Warn("failed to store batch item output", "index", r.Index, "error", err)
			continue
		}
		if item.URL != "" {
			out.URLs = append(out.URLs, item.URL)
		}
	}

	if run.Completed == 0 {
		labels := make([]string, len(run.Failures))
		for i, f := range run.Failures {
			labels[i] = f.Label()
		}
		return s.fail(ctx, task, "all batch items failed: "+strings.Join(labels, "; "), out)
	}
	return s.complete(ctx, task, out)
}

// persistOutput uploads inline images and records an asset row when the job
// belongs to a project.
func (s *GenerationService) persistOutput(ctx context.Context, task Task, sceneID uuid.NullUUID, kind jobs.Kind, result *jobs.Output) (*GenerationOutput, error) {
	out := &GenerationOutput{}
	if result == nil {
		return out, nil
	}
	out.URL = result.URL
	out.ContentType = result.ContentType

	for i, img := range result.Images {
		name := fmt.Sprintf("%s_%d%s", task.JobID.String(), i+1, extensionFor(img.MimeType))
		_, publicURL, err := s.uploader.UploadFile(task.UserID, task.ProjectID, name, img.MimeType, img.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image %d: %w", i+1, err)
		}
		out.URLs = append(out.URLs, publicURL)
	}
	if out.URL == "" && len(out.URLs) > 0 {
		out.URL = out.URLs[0]
	}

	if task.ProjectID.Valid {
		urls := out.URLs
		if len(urls) == 0 && out.URL != "" {
			urls = []string{out.URL}
		}
		for _, u := range urls {
			_, err := s.store.CreateVideoAsset(ctx, task.UserID, models.VideoAsset{
				ProjectID: task.ProjectID.UUID,
				SceneID:   sceneID,
				AssetType: assetType(kind),
				FileURL:   u,
			})
			if err != nil {
				s.logger.Warn("failed to record asset", "job_id", task.JobID, "error", err)
			}
		}
	}
	return out, nil
}

func (s *GenerationService) complete(ctx context.Context, task Task, out *GenerationOutput) error {
	if err := s.store.CompleteProcessingJob(context.WithoutCancel(ctx), task.JobID, out); err != nil {
		return fmt.Errorf("failed to complete processing job: %w", err)
	}
	s.publish(task, events.TypeJobCompleted, events.JobEvent{
		JobID:    task.JobID.String(),
		JobType:  task.JobType,
		Status:   string(jobs.StatusCompleted),
		Progress: 100,
		Result:   out,
	})
	return nil
}

func (s *GenerationService) fail(ctx context.Context, task Task, msg string, out *GenerationOutput) error {
	var output any
	if out != nil {
		output = out
	}
	if err := s.store.FailProcessingJob(context.WithoutCancel(ctx), task.JobID, msg, output); err != nil {
		return fmt.Errorf("failed to fail processing job: %w", err)
	}
	s.publish(task, events.TypeJobFailed, events.JobEvent{
		JobID:   task.JobID.String(),
		JobType: task.JobType,
		Status:  string(jobs.StatusFailed),
		Error:   msg,
	})
	return nil
}

func (s *GenerationService) publish(task Task, typ string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(events.UserTopic(task.UserID), events.Event{Type: typ, Data: data}); err != nil {
		s.logger.Debug("event not delivered", "type", typ, "job_id", task.JobID, "error", err)
	}
}

func assetType(kind jobs.Kind) string {
	switch kind {
	case jobs.KindImage:
		return models.AssetTypeImage
	case jobs.KindUpscale:
		return models.AssetTypeUpscaledImage
	case jobs.KindStitch:
		return models.AssetTypeStitchedVideo
	default:
		return models.AssetTypeVideo
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".png"
	}
}
