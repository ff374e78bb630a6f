package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"banana-studio-backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// Projects

const projectColumns = `id, user_id, name, description, aspect_ratio, video_style, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.AspectRatio, &p.VideoStyle, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DatabaseClient) CreateProject(ctx context.Context, userID uuid.UUID, req models.CreateProjectRequest) (*models.Project, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	project, err := scanProject(d.db.QueryRowContext(ctx, `
		INSERT INTO projects (user_id, name, description, aspect_ratio, video_style)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+projectColumns,
		userID, req.Name, req.Description, req.AspectRatio, req.VideoStyle,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (d *DatabaseClient) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	project, err := scanProject(d.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", notFound(err, "project"))
	}
	return project, nil
}

func (d *DatabaseClient) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject applies the non-nil fields and always refreshes updated_at.
func (d *DatabaseClient) UpdateProject(ctx context.Context, projectID, userID uuid.UUID, req models.UpdateProjectRequest) (*models.Project, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	project, err := scanProject(d.db.QueryRowContext(ctx, `
		UPDATE projects
		SET name = COALESCE($3, name),
		    description = COALESCE($4, description),
		    aspect_ratio = COALESCE($5, aspect_ratio),
		    video_style = COALESCE($6, video_style),
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+projectColumns,
		projectID, userID, req.Name, req.Description, req.AspectRatio, req.VideoStyle,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", notFound(err, "project"))
	}
	return project, nil
}

// DeleteProject removes the project row only. Dependent rows are left to the
// schema's foreign key rules.
func (d *DatabaseClient) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete project: project: %w", ErrNotFound)
	}
	return nil
}

// Characters

const characterColumns = `c.id, c.project_id, c.name, c.description, c.image_url, c.created_at, c.updated_at`

func scanCharacter(row rowScanner) (*models.Character, error) {
	var ch models.Character
	err := row.Scan(&ch.ID, &ch.ProjectID, &ch.Name, &ch.Description, &ch.ImageURL, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateCharacter inserts only when the project belongs to userID.
func (d *DatabaseClient) CreateCharacter(ctx context.Context, projectID, userID uuid.UUID, req models.CharacterRequest) (*models.Character, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ch, err := scanCharacter(d.db.QueryRowContext(ctx, `
		INSERT INTO characters AS c (project_id, name, description, image_url)
		SELECT p.id, $3, $4, $5
		FROM projects p
		WHERE p.id = $1 AND p.user_id = $2
		RETURNING `+characterColumns,
		projectID, userID, req.Name, req.Description, req.ImageURL,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create character: %w", notFound(err, "project"))
	}
	return ch, nil
}

func (d *DatabaseClient) ListCharacters(ctx context.Context, projectID, userID uuid.UUID) ([]models.Character, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+characterColumns+`
		FROM characters c
		JOIN projects p ON p.id = c.project_id
		WHERE c.project_id = $1 AND p.user_id = $2
		ORDER BY c.created_at ASC
	`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	characters := make([]models.Character, 0)
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, *ch)
	}
	return characters, rows.Err()
}

func (d *DatabaseClient) UpdateCharacter(ctx context.Context, characterID, userID uuid.UUID, req models.UpdateCharacterRequest) (*models.Character, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ch, err := scanCharacter(d.db.QueryRowContext(ctx, `
		UPDATE characters AS c
		SET name = COALESCE($3, c.name),
		    description = COALESCE($4, c.description),
		    image_url = COALESCE($5, c.image_url),
		    updated_at = NOW()
		FROM projects p
		WHERE c.id = $1 AND p.id = c.project_id AND p.user_id = $2
		RETURNING `+characterColumns,
		characterID, userID, req.Name, req.Description, req.ImageURL,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update character: %w", notFound(err, "character"))
	}
	return ch, nil
}

func (d *DatabaseClient) DeleteCharacter(ctx context.Context, characterID, userID uuid.UUID) error {
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM characters c
		USING projects p
		WHERE c.id = $1 AND p.id = c.project_id AND p.user_id = $2
	`, characterID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete character: character: %w", ErrNotFound)
	}
	return nil
}

// Scenes

const sceneColumns = `s.id, s.project_id, s.scene_number, s.title, s.description, s.image_prompt,
	s.video_prompt, s.dialogue, s.image_url, s.video_url, s.duration, s.status, s.created_at, s.updated_at`

func scanScene(row rowScanner) (*models.Scene, error) {
	var s models.Scene
	err := row.Scan(&s.ID, &s.ProjectID, &s.SceneNumber, &s.Title, &s.Description, &s.ImagePrompt,
		&s.VideoPrompt, &s.Dialogue, &s.ImageURL, &s.VideoURL, &s.Duration, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DatabaseClient) CreateScene(ctx context.Context, projectID, userID uuid.UUID, req models.CreateSceneRequest) (*models.Scene, error) {
	scene, err := scanScene(d.db.QueryRowContext(ctx, `
		INSERT INTO scenes AS s (project_id, scene_number, title, description, image_prompt, video_prompt, dialogue, duration, status)
		SELECT p.id, $3, $4, $5, $6, $7, $8, $9, 'pending'
		FROM projects p
		WHERE p.id = $1 AND p.user_id = $2
		RETURNING `+sceneColumns,
		projectID, userID, req.SceneNumber, req.Title, req.Description, req.ImagePrompt,
		req.VideoPrompt, req.Dialogue, req.Duration,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create scene: %w", notFound(err, "project"))
	}
	return scene, nil
}

func (d *DatabaseClient) ListScenes(ctx context.Context, projectID, userID uuid.UUID) ([]models.Scene, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+sceneColumns+`
		FROM scenes s
		JOIN projects p ON p.id = s.project_id
		WHERE s.project_id = $1 AND p.user_id = $2
		ORDER BY s.scene_number ASC
	`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	scenes := make([]models.Scene, 0)
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, *s)
	}
	return scenes, rows.Err()
}

func (d *DatabaseClient) GetScene(ctx context.Context, sceneID, userID uuid.UUID) (*models.Scene, error) {
	scene, err := scanScene(d.db.QueryRowContext(ctx, `
		SELECT `+sceneColumns+`
		FROM scenes s
		JOIN projects p ON p.id = s.project_id
		WHERE s.id = $1 AND p.user_id = $2
	`, sceneID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", notFound(err, "scene"))
	}
	return scene, nil
}

// UpdateSceneVideo records a generated clip on its scene and marks it done.
func (d *DatabaseClient) UpdateSceneVideo(ctx context.Context, sceneID, userID uuid.UUID, videoURL string) (*models.Scene, error) {
	scene, err := scanScene(d.db.QueryRowContext(ctx, `
		UPDATE scenes AS s
		SET video_url = $3, status = 'completed', updated_at = NOW()
		FROM projects p
		WHERE s.id = $1 AND p.id = s.project_id AND p.user_id = $2
		RETURNING `+sceneColumns,
		sceneID, userID, videoURL,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update scene: %w", notFound(err, "scene"))
	}
	return scene, nil
}

// Video assets

const assetColumns = `a.id, a.project_id, a.scene_id, a.asset_type, a.file_url, a.file_size, a.duration, a.created_at`

func scanAsset(row rowScanner) (*models.VideoAsset, error) {
	var a models.VideoAsset
	err := row.Scan(&a.ID, &a.ProjectID, &a.SceneID, &a.AssetType, &a.FileURL, &a.FileSize, &a.Duration, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (d *DatabaseClient) CreateVideoAsset(ctx context.Context, userID uuid.UUID, asset models.VideoAsset) (*models.VideoAsset, error) {
	created, err := scanAsset(d.db.QueryRowContext(ctx, `
		INSERT INTO video_assets AS a (project_id, scene_id, asset_type, file_url, file_size, duration)
		SELECT p.id, $3, $4, $5, $6, $7
		FROM projects p
		WHERE p.id = $1 AND p.user_id = $2
		RETURNING `+assetColumns,
		asset.ProjectID, userID, asset.SceneID, asset.AssetType, asset.FileURL, asset.FileSize, asset.Duration,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create video asset: %w", notFound(err, "project"))
	}
	return created, nil
}

func (d *DatabaseClient) ListVideoAssets(ctx context.Context, projectID, userID uuid.UUID) ([]models.VideoAsset, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+assetColumns+`
		FROM video_assets a
		JOIN projects p ON p.id = a.project_id
		WHERE a.project_id = $1 AND p.user_id = $2
		ORDER BY a.created_at DESC
	`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list video assets: %w", err)
	}
	defer rows.Close()

	assets := make([]models.VideoAsset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// Processing jobs

const jobColumns = `id, project_id, user_id, job_type, status, progress, input_data, output_data, error_message, created_at, updated_at`

func scanJob(row rowScanner) (*models.ProcessingJob, error) {
	var j models.ProcessingJob
	var input []byte
	err := row.Scan(&j.ID, &j.ProjectID, &j.UserID, &j.JobType, &j.Status, &j.Progress,
		&input, &j.OutputData, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.InputData = json.RawMessage(input)
	return &j, nil
}

func (d *DatabaseClient) CreateProcessingJob(ctx context.Context, userID uuid.UUID, projectID uuid.NullUUID, jobType string, input any) (*models.ProcessingJob, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job input: %w", err)
	}

	job, err := scanJob(d.db.QueryRowContext(ctx, `
		INSERT INTO processing_jobs (project_id, user_id, job_type, status, progress, input_data)
		VALUES ($1, $2, $3, 'pending', 0, $4)
		RETURNING `+jobColumns,
		projectID, userID, jobType, inputJSON,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create processing job: %w", err)
	}
	return job, nil
}

func (d *DatabaseClient) GetProcessingJob(ctx context.Context, jobID, userID uuid.UUID) (*models.ProcessingJob, error) {
	job, err := scanJob(d.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM processing_jobs
		WHERE id = $1 AND user_id = $2
	`, jobID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get processing job: %w", notFound(err, "job"))
	}
	return job, nil
}

func (d *DatabaseClient) ListProcessingJobs(ctx context.Context, projectID, userID uuid.UUID) ([]models.ProcessingJob, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM processing_jobs
		WHERE project_id = $1 AND user_id = $2
		ORDER BY created_at DESC
	`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.ProcessingJob, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan processing job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// UpdateProcessingJobProgress never lowers progress and never touches a
// finished job.
func (d *DatabaseClient) UpdateProcessingJobProgress(ctx context.Context, jobID uuid.UUID, status string, progress int) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = $2, progress = GREATEST(progress, $3), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, jobID, status, progress)
	if err != nil {
		return fmt.Errorf("failed to update processing job: %w", err)
	}
	return nil
}

func (d *DatabaseClient) CompleteProcessingJob(ctx context.Context, jobID uuid.UUID, output any) error {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode job output: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = 'completed', progress = 100, output_data = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, jobID, outputJSON)
	if err != nil {
		return fmt.Errorf("failed to complete processing job: %w", err)
	}
	return nil
}

// FailProcessingJob records the error. output may be nil; batches keep their
// partial results here.
func (d *DatabaseClient) FailProcessingJob(ctx context.Context, jobID uuid.UUID, errorMsg string, output any) error {
	var outputJSON any
	if output != nil {
		encoded, err := json.Marshal(output)
		if err != nil {
			return fmt.Errorf("failed to encode job output: %w", err)
		}
		outputJSON = encoded
	}

	_, err := d.db.ExecContext(ctx, `
		UPDATE processing_jobs
		SET status = 'failed', error_message = $2, output_data = COALESCE($3, output_data), updated_at = NOW()
		WHERE id = $1
	`, jobID, errorMsg, outputJSON)
	if err != nil {
		return fmt.Errorf("failed to fail processing job: %w", err)
	}
	return nil
}
