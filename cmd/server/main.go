// @title           Banana Studio Backend API
// @version         1.0.0
// @description     Backend API for AI-assisted video production: image, video and upscale generation, video stitching, frame editing and ad package scripting. Long-running jobs report progress over server-sent events.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"banana-studio-backend/internal/adpackage"
	"banana-studio-backend/internal/ark"
	"banana-studio-backend/internal/config"
	"banana-studio-backend/internal/events"
	"banana-studio-backend/internal/fal"
	"banana-studio-backend/internal/frames"
	"banana-studio-backend/internal/gemini"
	"banana-studio-backend/internal/handlers"
	"banana-studio-backend/internal/jobs"
	"banana-studio-backend/internal/logging"
	"banana-studio-backend/internal/middleware"
	"banana-studio-backend/internal/queue"
	"banana-studio-backend/internal/ratelimit"
	"banana-studio-backend/internal/services"
	"banana-studio-backend/internal/supabase"
	"banana-studio-backend/internal/tracing"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
		logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)
	}

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database client: %w", err)
	}
	defer dbClient.Close()

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize supabase client: %w", err)
	}
	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize storage client: %w", err)
	}

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, gemini.Models{
		Image: cfg.GeminiImageModel,
		Edit:  cfg.GeminiEditModel,
		Text:  cfg.GeminiTextModel,
	}, logger)
	if err != nil {
		return err
	}

	falProvider := fal.NewProvider(fal.NewClient(cfg.FalQueueURL, cfg.FalAPIKey))
	var videoProvider jobs.Provider = falProvider
	if cfg.VideoProvider == "ark" {
		videoProvider = ark.NewProvider(ark.NewTaskAPI(cfg.ArkAPIKey, cfg.ArkBaseURL), cfg.ArkVideoModel)
	}

	orchestrators := newOrchestrators(cfg, logger, geminiClient, falProvider, videoProvider)

	hub := events.NewHub()
	go hub.Run(ctx)

	generation := services.NewGenerationService(dbClient, storageClient, hub, orchestrators, cfg.BatchConcurrency, logger)
	stopDispatch, err := wireDispatcher(ctx, cfg, generation, logger)
	if err != nil {
		return err
	}
	defer stopDispatch()

	sessions := frames.NewSessionStore()
	go handlers.SweepSessions(ctx, sessions, time.Minute, cfg.FrameSessionTTL, logger)
	extractor := frames.NewExtractor(
		frames.NewFFmpegDecoder(cfg.FFmpegPath, cfg.FFprobePath, cfg.FrameJPEGQuality, logger),
		os.TempDir(),
		logger,
	)

	gate := newGate(cfg, logger)

	projectsHandler := handlers.NewProjectsHandler(dbClient, storageClient, logger)
	charactersHandler := handlers.NewCharactersHandler(dbClient)
	scenesHandler := handlers.NewScenesHandler(dbClient)
	profilesHandler := handlers.NewProfilesHandler(supabaseClient)
	generationsHandler := handlers.NewGenerationsHandler(generation, dbClient)
	framesHandler := handlers.NewFramesHandler(extractor, sessions, geminiClient, cfg.MaxUploadBytes, logger)
	adPackagesHandler := handlers.NewAdPackagesHandler(adpackage.NewGenerator(geminiClient, logger), logger)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recovery(logger))

	router.GET("/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	limited := middleware.RateLimit(gate, logger)

	api.GET("/profile", profilesHandler.GetProfile)
	api.GET("/events", hub.Stream)

	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.PATCH("/projects/:project_id", projectsHandler.UpdateProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)

	api.POST("/projects/:project_id/characters", charactersHandler.CreateCharacter)
	api.GET("/projects/:project_id/characters", charactersHandler.ListCharacters)
	api.PATCH("/characters/:character_id", charactersHandler.UpdateCharacter)
	api.DELETE("/characters/:character_id", charactersHandler.DeleteCharacter)

	api.POST("/projects/:project_id/scenes", scenesHandler.CreateScene)
	api.GET("/projects/:project_id/scenes", scenesHandler.ListScenes)
	api.GET("/projects/:project_id/assets", scenesHandler.ListAssets)
	api.GET("/projects/:project_id/jobs", scenesHandler.ListJobs)
	api.GET("/jobs/:job_id", scenesHandler.GetJob)

	gen := api.Group("/generations", limited)
	gen.POST("/images", generationsHandler.GenerateImages)
	gen.POST("/video", generationsHandler.GenerateVideo)
	gen.POST("/video/batch", generationsHandler.GenerateVideoBatch)
	gen.POST("/upscale", generationsHandler.UpscaleImage)
	gen.POST("/stitch", generationsHandler.StitchVideos)

	api.POST("/frames/extract", framesHandler.ExtractFrames)
	api.GET("/frames/sessions/:session_id", framesHandler.GetSession)
	api.DELETE("/frames/sessions/:session_id", framesHandler.DeleteSession)
	api.POST("/frames/sessions/:session_id/frames/:index/edit", limited, framesHandler.EditFrame)
	api.DELETE("/frames/sessions/:session_id/frames/:index/edit", framesHandler.RevertFrame)
	api.POST("/frames/sessions/:session_id/analyze", limited, framesHandler.AnalyzeFrames)

	api.POST("/ad-packages", limited, adPackagesHandler.GenerateAdPackage)
	api.POST("/ad-packages/export/json", adPackagesHandler.ExportJSON)
	api.POST("/ad-packages/export/srt", adPackagesHandler.ExportSRT)
	api.GET("/ad-packages/platforms", adPackagesHandler.ListPlatforms)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment, "video_provider", cfg.VideoProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		// stop the workers before the deferred dispatcher teardown waits on them
		stop()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newOrchestrators(cfg *config.Config, logger *slog.Logger, geminiClient *gemini.Client, falProvider, videoProvider jobs.Provider) map[jobs.Kind]*jobs.Orchestrator {
	video := jobs.Policy{Interval: cfg.PollInterval, MaxAttempts: cfg.VideoMaxPollAttempts}
	upscale := jobs.Policy{Interval: cfg.PollInterval, MaxAttempts: cfg.UpscaleMaxPollAttempts}

	return map[jobs.Kind]*jobs.Orchestrator{
		// image generation never queues, the policy is unused
		jobs.KindImage:   jobs.NewOrchestrator(gemini.NewImageProvider(geminiClient), upscale, jobs.WithLogger(logger)),
		jobs.KindVideo:   jobs.NewOrchestrator(videoProvider, video, jobs.WithLogger(logger)),
		jobs.KindUpscale: jobs.NewOrchestrator(falProvider, upscale, jobs.WithLogger(logger)),
		jobs.KindStitch:  jobs.NewOrchestrator(falProvider, video, jobs.WithLogger(logger)),
	}
}

// wireDispatcher runs jobs through RabbitMQ when configured and in process
// otherwise. The returned func releases whatever was opened.
func wireDispatcher(ctx context.Context, cfg *config.Config, svc *services.GenerationService, logger *slog.Logger) (func(), error) {
	if cfg.RabbitMQURL == "" {
		local := services.NewLocalDispatcher(ctx, svc.Execute, logger)
		svc.SetDispatcher(local)
		logger.Info("dispatching generation jobs in process")
		return local.Wait, nil
	}

	conn, err := queue.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, err
	}
	publisher, err := queue.NewPublisher(conn, cfg.RabbitMQQueue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	consumer, err := queue.NewConsumer(conn, cfg.RabbitMQQueue, cfg.QueueWorkers, services.MessageHandler(svc.Execute), logger)
	if err != nil {
		publisher.Close()
		conn.Close()
		return nil, err
	}
	svc.SetDispatcher(services.NewQueueDispatcher(publisher))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil {
			logger.Error("queue consumer stopped", "error", err)
		}
	}()
	logger.Info("dispatching generation jobs over rabbitmq", "queue", cfg.RabbitMQQueue, "workers", cfg.QueueWorkers)

	return func() {
		<-done
		consumer.Close()
		publisher.Close()
		conn.Close()
	}, nil
}

func newGate(cfg *config.Config, logger *slog.Logger) ratelimit.Gate {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryGate(cfg.GenerationMinInterval)
	}
	logger.Info("rate limiting through redis", "addr", cfg.RedisAddr)
	return ratelimit.NewRedisGate(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.GenerationMinInterval)
}
