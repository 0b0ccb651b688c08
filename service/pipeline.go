package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"story-video-worker/constant"
	"story-video-worker/dto"
	"story-video-worker/entities"
	"story-video-worker/jobstore"
)

// ScriptGenerator produces the ordered scene sequence for one job. Failures
// here are job-fatal, unlike the per-scene collaborators below.
type ScriptGenerator interface {
	Generate(ctx context.Context, story string, durationMinutes int, shortForm bool) (*entities.Script, error)
}

type ImageSynthesizer interface {
	Synthesize(ctx context.Context, description string, width, height int) ([]byte, error)
}

type SpeechSynthesizer interface {
	Speak(ctx context.Context, text string) (audio []byte, durationSeconds float64, err error)
}

type Executor interface {
	Process(ctx context.Context, message dto.JobMessage) error
}

type pipeline struct {
	store    jobstore.Store
	scripts  ScriptGenerator
	images   ImageSynthesizer
	voices   SpeechSynthesizer
	composer MediaComposer
	uploader Uploader
	pool     *ants.Pool
	workDir  string
}

func NewPipeline(
	store jobstore.Store,
	scripts ScriptGenerator,
	images ImageSynthesizer,
	voices SpeechSynthesizer,
	composer MediaComposer,
	uploader Uploader,
	pool *ants.Pool,
	workDir string,
) Executor {
	return &pipeline{
		store:    store,
		scripts:  scripts,
		images:   images,
		voices:   voices,
		composer: composer,
		uploader: uploader,
		pool:     pool,
		workDir:  workDir,
	}
}

// Process runs the stage sequence for one job: script, images, voice,
// composition, optional upload. A checkpoint is persisted after every stage;
// stage failures terminate the job as failed with progress left at the last
// checkpoint. A non-nil return means infrastructure trouble (store or
// filesystem), which the queue layer retries; collaborator failures never
// propagate past this function.
func (p *pipeline) Process(ctx context.Context, message dto.JobMessage) error {
	id := message.JobId.String()
	logger := zerolog.Ctx(ctx).With().Str("job_id", id).Logger()
	ctx = logger.WithContext(ctx)

	job, err := p.store.Get(ctx, id)
	if errors.Is(err, jobstore.ErrNotFound) {
		logger.Warn().Msg("job record expired or missing, dropping task")
		return nil
	}
	if err != nil {
		return err
	}

	// A job id maps to exactly one execution attempt. Redelivered tasks for
	// a job that already left queued are dropped, so a run that died mid-flight
	// stays in processing until the record's TTL clears it.
	if job.Status != constant.JobStatusQueued {
		logger.Info().Str("status", string(job.Status)).Msg("job is not queued, skipping")
		return nil
	}

	logger.Info().Str("story", job.Story).Msg("starting video generation")
	if err := p.checkpoint(ctx, id, constant.ProgressStarted); err != nil {
		return err
	}

	scratch := filepath.Join(p.workDir, "jobs", id)
	if err := os.MkdirAll(scratch, os.ModePerm); err != nil {
		return p.fail(ctx, id, fmt.Errorf("failed to create scratch directory: %w", err))
	}
	defer os.RemoveAll(scratch)

	script, err := p.scripts.Generate(ctx, job.Story, job.Duration, job.TikTok)
	if err != nil {
		return p.fail(ctx, id, newStageError(constant.StageScript, err))
	}
	logger.Info().Int("scenes", len(script.Scenes)).Msg("script generated")
	if err := p.checkpoint(ctx, id, constant.CheckpointFor(constant.StageScript)); err != nil {
		return err
	}

	frame := job.Frame()

	images := p.synthesizeImages(ctx, script, frame, scratch)
	if err := p.checkpoint(ctx, id, constant.CheckpointFor(constant.StageImages)); err != nil {
		return err
	}

	audio := p.synthesizeVoiceovers(ctx, script, scratch)
	if err := p.checkpoint(ctx, id, constant.CheckpointFor(constant.StageVoice)); err != nil {
		return err
	}

	segments := p.composeSegments(ctx, script, images, audio, frame, scratch)
	if len(segments) == 0 {
		return p.fail(ctx, id, newStageError(constant.StageComposition, ErrNoPlayableSegments))
	}
	if err := p.checkpoint(ctx, id, constant.CheckpointFor(constant.StageComposition)); err != nil {
		return err
	}

	artifact := ArtifactPath(p.workDir, id)
	if err := os.MkdirAll(filepath.Dir(artifact), os.ModePerm); err != nil {
		return p.fail(ctx, id, fmt.Errorf("failed to create artifact directory: %w", err))
	}
	if err := p.composer.Concatenate(ctx, segments, artifact); err != nil {
		return p.fail(ctx, id, newStageError(constant.StageComposition, err))
	}
	if err := p.checkpoint(ctx, id, constant.ProgressConcatenated); err != nil {
		return err
	}

	// Upload is best effort: the local artifact stays the source of truth
	// for download, so a storage failure must not fail the job.
	if p.uploader != nil {
		if err := p.uploader.Upload(ctx, artifact, "videos/"+id+".mp4"); err != nil {
			logger.Error().Err(err).Msg("failed to upload artifact to object storage")
		} else {
			logger.Info().Msg("artifact uploaded to object storage")
		}
	}

	if err := p.store.Update(ctx, id, func(j *entities.Job) {
		j.Status = constant.JobStatusCompleted
		j.Progress = constant.CheckpointFor(constant.StageUpload)
	}); err != nil {
		return err
	}

	logger.Info().Int("segments", len(segments)).Msg("video generation completed")
	return nil
}

// synthesizeImages renders one image per scene, in parallel across the shared
// worker pool. Per-scene failures record a skipped asset; the stage itself
// never fails. Results land in a scene-indexed slice, so completion order
// cannot leak into the output ordering.
func (p *pipeline) synthesizeImages(ctx context.Context, script *entities.Script, frame constant.Dimensions, scratch string) []entities.SceneAsset {
	logger := zerolog.Ctx(ctx)
	assets := make([]entities.SceneAsset, len(script.Scenes))

	var wg sync.WaitGroup
	for i := range script.Scenes {
		idx := i
		scene := script.Scenes[i]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			data, err := p.images.Synthesize(ctx, scene.ImageDescription, frame.Width, frame.Height)
			if err != nil {
				logger.Warn().Err(err).Int("scene", scene.SceneNumber).Msg("image generation failed for scene")
				assets[idx] = entities.SkippedAsset(scene.SceneNumber, err.Error())
				return
			}

			path := filepath.Join(scratch, fmt.Sprintf("scene_%03d.png", scene.SceneNumber))
			if err := os.WriteFile(path, data, 0644); err != nil {
				logger.Warn().Err(err).Int("scene", scene.SceneNumber).Msg("failed to write scene image")
				assets[idx] = entities.SkippedAsset(scene.SceneNumber, err.Error())
				return
			}

			logger.Debug().Int("scene", scene.SceneNumber).Msg("scene image generated")
			assets[idx] = entities.ProducedAsset(scene.SceneNumber, path, scene.Duration)
		})
		if err != nil {
			assets[idx] = entities.SkippedAsset(scene.SceneNumber, err.Error())
			wg.Done()
		}
	}
	wg.Wait()

	return assets
}

// synthesizeVoiceovers mirrors synthesizeImages for narration audio.
func (p *pipeline) synthesizeVoiceovers(ctx context.Context, script *entities.Script, scratch string) []entities.SceneAsset {
	logger := zerolog.Ctx(ctx)
	assets := make([]entities.SceneAsset, len(script.Scenes))

	var wg sync.WaitGroup
	for i := range script.Scenes {
		idx := i
		scene := script.Scenes[i]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			data, duration, err := p.voices.Speak(ctx, scene.Narration)
			if err != nil {
				logger.Warn().Err(err).Int("scene", scene.SceneNumber).Msg("voice generation failed for scene")
				assets[idx] = entities.SkippedAsset(scene.SceneNumber, err.Error())
				return
			}

			path := filepath.Join(scratch, fmt.Sprintf("scene_%03d.mp3", scene.SceneNumber))
			if err := os.WriteFile(path, data, 0644); err != nil {
				logger.Warn().Err(err).Int("scene", scene.SceneNumber).Msg("failed to write scene audio")
				assets[idx] = entities.SkippedAsset(scene.SceneNumber, err.Error())
				return
			}

			logger.Debug().Int("scene", scene.SceneNumber).Msg("scene voiceover generated")
			assets[idx] = entities.ProducedAsset(scene.SceneNumber, path, duration)
		})
		if err != nil {
			assets[idx] = entities.SkippedAsset(scene.SceneNumber, err.Error())
			wg.Done()
		}
	}
	wg.Wait()

	return assets
}

// composeSegments renders a sub-clip for every scene that has both an image
// and an audio asset, walking scenes in script order. Degraded scenes are
// omitted; a render failure degrades the scene rather than the job.
func (p *pipeline) composeSegments(ctx context.Context, script *entities.Script, images, audio []entities.SceneAsset, frame constant.Dimensions, scratch string) []string {
	logger := zerolog.Ctx(ctx)
	segments := make([]string, 0, len(script.Scenes))

	for i := range script.Scenes {
		scene := script.Scenes[i]
		img, aud := images[i], audio[i]

		if !img.Produced() {
			logger.Info().Int("scene", scene.SceneNumber).Str("reason", img.SkipReason).Msg("skipping scene without image")
			continue
		}
		if !aud.Produced() {
			logger.Info().Int("scene", scene.SceneNumber).Str("reason", aud.SkipReason).Msg("skipping scene without audio")
			continue
		}

		segPath := filepath.Join(scratch, fmt.Sprintf("segment_%03d.mp4", scene.SceneNumber))
		if err := p.composer.ComposeSegment(ctx, img.Path, aud.Path, frame, segPath); err != nil {
			logger.Warn().Err(err).Int("scene", scene.SceneNumber).Msg("failed to render scene segment")
			continue
		}

		segments = append(segments, segPath)
	}

	return segments
}

// checkpoint persists a processing update. Progress never moves backwards
// within an attempt.
func (p *pipeline) checkpoint(ctx context.Context, id string, progress int) error {
	return p.store.Update(ctx, id, func(j *entities.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = constant.JobStatusProcessing
		if progress > j.Progress {
			j.Progress = progress
		}
	})
}

// fail records a terminal failure, leaving progress at its last checkpoint.
// Only a store error propagates, so the queue can redeliver.
func (p *pipeline) fail(ctx context.Context, id string, cause error) error {
	zerolog.Ctx(ctx).Error().Err(cause).Msg("video generation failed")

	return p.store.Update(ctx, id, func(j *entities.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = constant.JobStatusFailed
		j.Error = cause.Error()
	})
}
