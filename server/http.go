package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"story-video-worker/config"
	"story-video-worker/constant"
	jobHandler "story-video-worker/handler"
	"story-video-worker/jobstore"
	"story-video-worker/pkg/elevenlabs"
	"story-video-worker/pkg/openai"
	"story-video-worker/pkg/rabbitmq"
	"story-video-worker/pkg/replicate"
	"story-video-worker/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
		return
	}

	// Scene generation fans out inside each pipeline; size the shared pool
	// for several scenes per concurrently executing job.
	pool, err := ants.NewPool(cfg.Server.Workers * 8)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create worker pool")
		return
	}
	defer pool.Release()

	store := jobstore.NewStore(cfg.Store)
	publisher := rabbitmq.NewPublisher(conn, cfg.Queue)

	var uploader service.Uploader
	if cfg.Storage != nil && cfg.MinIOBucket != "" {
		uploader = service.NewMinIOUploader(cfg.Storage, cfg.MinIOBucket)
	}

	executor := service.NewPipeline(
		store,
		openai.NewClient(cfg.Script),
		replicate.NewClient(cfg.Image),
		elevenlabs.NewClient(cfg.Voice),
		service.NewFFmpegComposer(),
		uploader,
		pool,
		cfg.WorkDir,
	)

	serviceDeps := jobHandler.ServiceDependencies{
		Pipeline: executor,
	}

	consumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.JobHandler)
	go func() {
		if err := consumer.Consume(ctx, serviceDeps); err != nil && !errors.Is(err, context.Canceled) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("generation consumer error")
		}
	}()

	r := gin.Default()
	api := NewAPI(store, publisher, cfg.WorkDir)
	api.RegisterRoutes(r)
	addHealth(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
