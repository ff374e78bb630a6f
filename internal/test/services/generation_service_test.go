package services_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banana-studio-backend/internal/events"
	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/models"
	"banana-studio-backend/internal/services"
	"banana-studio-backend/internal/supabase"
)

type jobRecord struct {
	row      models.ProcessingJob
	input    any
	status   string
	progress []int
	output   any
	errorMsg string
}

type memoryStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*jobRecord
	assets []models.VideoAsset
	scenes map[uuid.UUID]*models.Scene
	owners map[uuid.UUID]uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		jobs:   make(map[uuid.UUID]*jobRecord),
		scenes: make(map[uuid.UUID]*models.Scene),
		owners: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memoryStore) addScene(userID, projectID uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene := &models.Scene{ID: uuid.New(), ProjectID: projectID, SceneNumber: 1, Status: "pending"}
	s.scenes[scene.ID] = scene
	s.owners[scene.ID] = userID
	return scene.ID
}

func (s *memoryStore) scene(id uuid.UUID) models.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.scenes[id]
}

func (s *memoryStore) GetScene(_ context.Context, sceneID, userID uuid.UUID) (*models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok || s.owners[sceneID] != userID {
		return nil, fmt.Errorf("failed to get scene: scene: %w", supabase.ErrNotFound)
	}
	cp := *scene
	return &cp, nil
}

func (s *memoryStore) UpdateSceneVideo(_ context.Context, sceneID, userID uuid.UUID, videoURL string) (*models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene, ok := s.scenes[sceneID]
	if !ok || s.owners[sceneID] != userID {
		return nil, fmt.Errorf("failed to update scene: scene: %w", supabase.ErrNotFound)
	}
	scene.VideoURL = sql.NullString{String: videoURL, Valid: true}
	scene.Status = "completed"
	cp := *scene
	return &cp, nil
}

func (s *memoryStore) CreateProcessingJob(_ context.Context, userID uuid.UUID, projectID uuid.NullUUID, jobType string, input any) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := models.ProcessingJob{ID: uuid.New(), UserID: userID, ProjectID: projectID, JobType: jobType, Status: "pending"}
	s.jobs[row.ID] = &jobRecord{row: row, input: input, status: "pending"}
	return &row, nil
}

func (s *memoryStore) UpdateProcessingJobProgress(_ context.Context, jobID uuid.UUID, status string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.jobs[jobID]
	rec.status = status
	rec.progress = append(rec.progress, progress)
	return nil
}

func (s *memoryStore) CompleteProcessingJob(_ context.Context, jobID uuid.UUID, output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.jobs[jobID]
	rec.status = "completed"
	rec.output = output
	return nil
}

func (s *memoryStore) FailProcessingJob(_ context.Context, jobID uuid.UUID, errorMsg string, output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.jobs[jobID]
	rec.status = "failed"
	rec.errorMsg = errorMsg
	rec.output = output
	return nil
}

func (s *memoryStore) CreateVideoAsset(_ context.Context, _ uuid.UUID, asset models.VideoAsset) (*models.VideoAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset.ID = uuid.New()
	s.assets = append(s.assets, asset)
	return &asset, nil
}

func (s *memoryStore) record(id uuid.UUID) jobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type fakeUploader struct {
	mu    sync.Mutex
	names []string
}

func (u *fakeUploader) UploadFile(userID uuid.UUID, _ uuid.NullUUID, filename, _ string, _ []byte) (string, string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, filename)
	path := "users/" + userID.String() + "/generations/" + filename
	return path, "https://storage.example/" + path, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	types  []string
}

func (p *recordingPublisher) Publish(topic string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.types = append(p.types, ev.Type)
	return nil
}

// recordingDispatcher keeps tasks for the test to execute explicitly.
type recordingDispatcher struct {
	tasks []services.Task
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, task services.Task) error {
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, task)
	return nil
}

// funcProvider answers every submit immediately through fn.
type funcProvider struct {
	fn func(req jobs.Request) (jobs.Submission, error)
}

func (p funcProvider) Submit(_ context.Context, req jobs.Request) (jobs.Submission, error) {
	return p.fn(req)
}

func (p funcProvider) Poll(context.Context, jobs.Handle) (jobs.PollResult, error) {
	return jobs.PollResult{}, errors.New("not queued")
}

type fixture struct {
	store      *memoryStore
	uploader   *fakeUploader
	publisher  *recordingPublisher
	dispatcher *recordingDispatcher
	svc        *services.GenerationService
}

func newFixture(providers map[jobs.Kind]jobs.Provider) *fixture {
	f := &fixture{
		store:      newMemoryStore(),
		uploader:   &fakeUploader{},
		publisher:  &recordingPublisher{},
		dispatcher: &recordingDispatcher{},
	}
	orchestrators := make(map[jobs.Kind]*jobs.Orchestrator)
	for kind, p := range providers {
		orchestrators[kind] = jobs.NewOrchestrator(p, jobs.VideoPolicy)
	}
	f.svc = services.NewGenerationService(f.store, f.uploader, f.publisher, orchestrators, 2, nil)
	f.svc.SetDispatcher(f.dispatcher)
	return f
}

func imageProvider() funcProvider {
	return funcProvider{fn: func(jobs.Request) (jobs.Submission, error) {
		return jobs.Immediate{Output: jobs.Output{
			ContentType: "image/png",
			Images: []jobs.Image{
				{Data: []byte("a"), MimeType: "image/png"},
				{Data: []byte("b"), MimeType: "image/png"},
			},
		}}, nil
	}}
}

func TestStart_RejectsInvalidRequest(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindImage: imageProvider()})

	_, err := f.svc.Start(context.Background(), uuid.New(), uuid.NullUUID{}, uuid.NullUUID{}, jobs.Request{Kind: jobs.KindImage})
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)
	assert.Empty(t, f.dispatcher.tasks)
	assert.Empty(t, f.store.jobs)
}

func TestStart_RejectsUnconfiguredKind(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindImage: imageProvider()})

	_, err := f.svc.Start(context.Background(), uuid.New(), uuid.NullUUID{}, uuid.NullUUID{},
		jobs.Request{Kind: jobs.KindStitch, VideoURLs: []string{"a", "b"}})
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)
}

func TestStart_DispatchFailureMarksJobFailed(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindImage: imageProvider()})
	f.dispatcher.err = errors.New("broker down")

	_, err := f.svc.Start(context.Background(), uuid.New(), uuid.NullUUID{}, uuid.NullUUID{},
		jobs.Request{Kind: jobs.KindImage, Prompt: "banana"})
	require.Error(t, err)

	require.Len(t, f.store.jobs, 1)
	for _, rec := range f.store.jobs {
		assert.Equal(t, "failed", rec.status)
		assert.Contains(t, rec.errorMsg, "broker down")
	}
}

func TestStart_StoresInputWithoutImageBytes(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindImage: imageProvider()})

	row, err := f.svc.Start(context.Background(), uuid.New(), uuid.NullUUID{}, uuid.NullUUID{}, jobs.Request{
		Kind:       jobs.KindImage,
		Prompt:     "banana",
		Image:      &jobs.Image{Data: []byte("sketch-bytes")},
		References: []jobs.Image{{Data: []byte("ref")}},
	})
	require.NoError(t, err)

	encoded, err := json.Marshal(f.store.record(row.ID).input)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"has_image":true`)
	assert.Contains(t, string(encoded), `"reference_count":1`)
	assert.NotContains(t, string(encoded), `"data"`)
}

func TestExecute_ImageJobUploadsAndRecordsAssets(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindImage: imageProvider()})
	userID := uuid.New()
	projectID := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	row, err := f.svc.Start(context.Background(), userID, projectID, uuid.NullUUID{}, jobs.Request{Kind: jobs.KindImage, Prompt: "banana"})
	require.NoError(t, err)
	require.Len(t, f.dispatcher.tasks, 1)
	assert.Equal(t, row.ID, f.dispatcher.tasks[0].JobID)

	require.NoError(t, f.svc.Execute(context.Background(), f.dispatcher.tasks[0]))

	rec := f.store.record(row.ID)
	assert.Equal(t, "completed", rec.status)
	out := rec.output.(*services.GenerationOutput)
	require.Len(t, out.URLs, 2)
	assert.Equal(t, out.URLs[0], out.URL)
	assert.Equal(t, []string{row.ID.String() + "_1.png", row.ID.String() + "_2.png"}, f.uploader.names)

	require.Len(t, f.store.assets, 2)
	assert.Equal(t, models.AssetTypeImage, f.store.assets[0].AssetType)
	assert.Equal(t, projectID.UUID, f.store.assets[0].ProjectID)

	assert.Contains(t, f.publisher.types, events.TypeJobCompleted)
	assert.Equal(t, events.UserTopic(userID), f.publisher.topics[len(f.publisher.topics)-1])
}

func TestExecute_RemoteFailureIsRecordedVerbatim(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: funcProvider{fn: func(jobs.Request) (jobs.Submission, error) {
		return nil, &jobs.RemoteError{Kind: jobs.KindVideo, Message: "content policy violation"}
	}}})

	row, err := f.svc.Start(context.Background(), uuid.New(), uuid.NullUUID{}, uuid.NullUUID{}, jobs.Request{Kind: jobs.KindVideo, Prompt: "x"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Execute(context.Background(), f.dispatcher.tasks[0]))

	rec := f.store.record(row.ID)
	assert.Equal(t, "failed", rec.status)
	assert.Contains(t, rec.errorMsg, "content policy violation")
	assert.Contains(t, f.publisher.types, events.TypeJobFailed)
	assert.Empty(t, f.store.assets)
}

func videoProvider(url string) funcProvider {
	return funcProvider{fn: func(jobs.Request) (jobs.Submission, error) {
		return jobs.Immediate{Output: jobs.Output{URL: url, ContentType: "video/mp4"}}, nil
	}}
}

func TestStart_RejectsSceneOfAnotherUser(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: videoProvider("https://cdn/v.mp4")})
	sceneID := f.store.addScene(uuid.New(), uuid.New())

	_, err := f.svc.Start(context.Background(), uuid.New(), uuid.NullUUID{},
		uuid.NullUUID{UUID: sceneID, Valid: true}, jobs.Request{Kind: jobs.KindVideo, Prompt: "x"})
	assert.ErrorIs(t, err, supabase.ErrNotFound)
	assert.Empty(t, f.dispatcher.tasks)
	assert.Empty(t, f.store.jobs)
}

func TestStart_RejectsSceneOfAnotherProject(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: videoProvider("https://cdn/v.mp4")})
	userID := uuid.New()
	sceneID := f.store.addScene(userID, uuid.New())

	_, err := f.svc.Start(context.Background(), userID, uuid.NullUUID{UUID: uuid.New(), Valid: true},
		uuid.NullUUID{UUID: sceneID, Valid: true}, jobs.Request{Kind: jobs.KindVideo, Prompt: "x"})
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)
	assert.Empty(t, f.dispatcher.tasks)
}

func TestExecute_VideoJobUpdatesScene(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: videoProvider("https://cdn/scene.mp4")})
	userID := uuid.New()
	projectID := uuid.New()
	sceneID := f.store.addScene(userID, projectID)

	row, err := f.svc.Start(context.Background(), userID, uuid.NullUUID{},
		uuid.NullUUID{UUID: sceneID, Valid: true}, jobs.Request{Kind: jobs.KindVideo, Prompt: "x"})
	require.NoError(t, err)
	task := f.dispatcher.tasks[0]
	assert.Equal(t, projectID, task.ProjectID.UUID)

	require.NoError(t, f.svc.Execute(context.Background(), task))

	assert.Equal(t, "completed", f.store.record(row.ID).status)
	scene := f.store.scene(sceneID)
	assert.Equal(t, "completed", scene.Status)
	assert.Equal(t, "https://cdn/scene.mp4", scene.VideoURL.String)

	require.Len(t, f.store.assets, 1)
	assert.Equal(t, sceneID, f.store.assets[0].SceneID.UUID)
	assert.Equal(t, models.AssetTypeVideo, f.store.assets[0].AssetType)
}

func TestStartBatch_Validation(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: imageProvider()})
	img := []jobs.Image{{Data: []byte("a")}}

	_, err := f.svc.StartBatch(context.Background(), uuid.New(), uuid.NullUUID{}, "  ", img, jobs.Request{})
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)

	_, err = f.svc.StartBatch(context.Background(), uuid.New(), uuid.NullUUID{}, "beach", nil, jobs.Request{})
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)
}

func TestStartBatch_BuildsOneVideoRequestPerImage(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: imageProvider()})

	row, err := f.svc.StartBatch(context.Background(), uuid.New(), uuid.NullUUID{}, "Beach party",
		[]jobs.Image{{Data: []byte("a")}, {Data: []byte("b")}},
		jobs.Request{AspectRatio: "9:16", Duration: "8s"})
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeBatchVideo, row.JobType)

	task := f.dispatcher.tasks[0]
	require.Len(t, task.Requests, 2)
	for i, req := range task.Requests {
		assert.Equal(t, jobs.KindVideo, req.Kind)
		assert.Equal(t, fmt.Sprintf("Beach party - Dynamic video scene %d", i+1), req.Prompt)
		assert.Equal(t, "9:16", req.AspectRatio)
		require.NotNil(t, req.Image)
	}
	assert.Equal(t, []byte("a"), task.Requests[0].Image.Data)
	assert.Equal(t, []byte("b"), task.Requests[1].Image.Data)
}

func TestExecute_BatchPartialFailure(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: funcProvider{fn: func(req jobs.Request) (jobs.Submission, error) {
		if strings.HasSuffix(req.Prompt, "scene 2") {
			return nil, &jobs.RemoteError{Kind: jobs.KindVideo, Message: "bad frame"}
		}
		return jobs.Immediate{Output: jobs.Output{URL: "https://cdn/" + req.Prompt[len(req.Prompt)-1:] + ".mp4"}}, nil
	}}})

	row, err := f.svc.StartBatch(context.Background(), uuid.New(), uuid.NullUUID{}, "Beach",
		[]jobs.Image{{Data: []byte("a")}, {Data: []byte("b")}, {Data: []byte("c")}}, jobs.Request{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Execute(context.Background(), f.dispatcher.tasks[0]))

	rec := f.store.record(row.ID)
	assert.Equal(t, "completed", rec.status)
	out := rec.output.(*services.GenerationOutput)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 2, out.Completed)
	assert.Equal(t, 1, out.Failed)
	assert.ElementsMatch(t, []string{"https://cdn/1.mp4", "https://cdn/3.mp4"}, out.URLs)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, 1, out.Failures[0].Index)

	for _, p := range rec.progress {
		assert.Less(t, p, 100)
	}
	assert.Contains(t, f.publisher.types, events.TypeBatchItem)
}

func TestExecute_BatchAllFailed(t *testing.T) {
	f := newFixture(map[jobs.Kind]jobs.Provider{jobs.KindVideo: funcProvider{fn: func(jobs.Request) (jobs.Submission, error) {
		return nil, &jobs.RemoteError{Kind: jobs.KindVideo, Message: "quota"}
	}}})

	row, err := f.svc.StartBatch(context.Background(), uuid.New(), uuid.NullUUID{}, "Beach",
		[]jobs.Image{{Data: []byte("a")}, {Data: []byte("b")}}, jobs.Request{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Execute(context.Background(), f.dispatcher.tasks[0]))

	rec := f.store.record(row.ID)
	assert.Equal(t, "failed", rec.status)
	assert.True(t, strings.HasPrefix(rec.errorMsg, "all batch items failed: Image 1: "))
	assert.Contains(t, rec.errorMsg, "; Image 2: ")
}

func TestExecute_EmptyTask(t *testing.T) {
	f := newFixture(nil)
	assert.Error(t, f.svc.Execute(context.Background(), services.Task{JobID: uuid.New()}))
}

func TestBatchPrompt(t *testing.T) {
	assert.Equal(t, "Sunset - Dynamic video scene 1", services.BatchPrompt("Sunset", 0))
}
