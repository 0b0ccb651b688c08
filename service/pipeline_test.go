package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"story-video-worker/constant"
	"story-video-worker/dto"
	"story-video-worker/entities"
	"story-video-worker/jobstore"
)

type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*entities.Job
	progress map[string][]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     make(map[string]*entities.Job),
		progress: make(map[string][]int),
	}
}

func (s *fakeStore) Create(_ context.Context, job *entities.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Status = constant.JobStatusQueued
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*entities.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, jobstore.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) Update(_ context.Context, id string, mutate func(job *entities.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return jobstore.ErrNotFound
	}
	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	s.progress[id] = append(s.progress[id], job.Progress)
	return nil
}

type fakeScripts struct {
	scenes int
	err    error
}

func (f *fakeScripts) Generate(_ context.Context, story string, _ int, _ bool) (*entities.Script, error) {
	if f.err != nil {
		return nil, f.err
	}
	script := &entities.Script{Title: story}
	for i := 0; i < f.scenes; i++ {
		script.Scenes = append(script.Scenes, entities.Scene{
			Duration:         30,
			Narration:        fmt.Sprintf("narration %d", i+1),
			ImageDescription: fmt.Sprintf("scene %d", i+1),
		})
	}
	script.Normalize()
	return script, nil
}

// fakeImages can fail selected scenes and delay completions to scramble the
// order in which parallel scene tasks finish.
type fakeImages struct {
	failScenes map[string]bool
	delays     map[string]time.Duration
}

func (f *fakeImages) Synthesize(_ context.Context, description string, _, _ int) ([]byte, error) {
	if d, ok := f.delays[description]; ok {
		time.Sleep(d)
	}
	if f.failScenes[description] {
		return nil, errors.New("image service unavailable")
	}
	return []byte("png"), nil
}

type fakeVoices struct {
	failScenes map[string]bool
}

func (f *fakeVoices) Speak(_ context.Context, text string) ([]byte, float64, error) {
	if f.failScenes[text] {
		return nil, 0, errors.New("voice service unavailable")
	}
	return []byte("mp3"), 3.5, nil
}

type fakeComposer struct {
	mu           sync.Mutex
	composed     []string
	concatenated []string
	segmentErr   error
	concatErr    error
}

func (f *fakeComposer) ComposeSegment(_ context.Context, _, _ string, _ constant.Dimensions, outputPath string) error {
	if f.segmentErr != nil {
		return f.segmentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.composed = append(f.composed, outputPath)
	return nil
}

func (f *fakeComposer) Concatenate(_ context.Context, segmentPaths []string, _ string) error {
	if f.concatErr != nil {
		return f.concatErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.concatenated = append([]string{}, segmentPaths...)
	return nil
}

type fakeUploader struct {
	uploads []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, _, objectName string) error {
	if f.err != nil {
		return f.err
	}
	f.uploads = append(f.uploads, objectName)
	return nil
}

type pipelineFixture struct {
	store    *fakeStore
	scripts  *fakeScripts
	images   *fakeImages
	voices   *fakeVoices
	composer *fakeComposer
	uploader *fakeUploader
	executor Executor
}

func newFixture(t *testing.T, scenes int) *pipelineFixture {
	t.Helper()
	pool, err := ants.NewPool(8)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	fx := &pipelineFixture{
		store:    newFakeStore(),
		scripts:  &fakeScripts{scenes: scenes},
		images:   &fakeImages{failScenes: map[string]bool{}, delays: map[string]time.Duration{}},
		voices:   &fakeVoices{failScenes: map[string]bool{}},
		composer: &fakeComposer{},
		uploader: &fakeUploader{},
	}
	fx.executor = NewPipeline(fx.store, fx.scripts, fx.images, fx.voices, fx.composer, fx.uploader, pool, t.TempDir())
	return fx
}

func (fx *pipelineFixture) submit(t *testing.T) dto.JobMessage {
	t.Helper()
	msg := dto.JobMessage{
		JobId:      uuid.New(),
		Story:      "Noah's Ark",
		Duration:   15,
		Resolution: "Full HD",
	}
	err := fx.store.Create(context.Background(), &entities.Job{
		ID:         msg.JobId.String(),
		Story:      msg.Story,
		Duration:   msg.Duration,
		Resolution: msg.Resolution,
	})
	require.NoError(t, err)
	return msg
}

func testCtx() context.Context {
	logger := zerolog.Nop()
	return logger.WithContext(context.Background())
}

func TestProcessCompletesJob(t *testing.T) {
	fx := newFixture(t, 3)
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Empty(t, job.Error)
	assert.Len(t, fx.composer.concatenated, 3)
	assert.Equal(t, []string{"videos/" + msg.JobId.String() + ".mp4"}, fx.uploader.uploads)
}

func TestProcessProgressIsMonotonic(t *testing.T) {
	fx := newFixture(t, 2)
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	writes := fx.store.progress[msg.JobId.String()]
	require.NotEmpty(t, writes)
	for i := 1; i < len(writes); i++ {
		assert.GreaterOrEqual(t, writes[i], writes[i-1])
	}
	assert.Equal(t, 100, writes[len(writes)-1])
}

func TestProcessScriptFailureFailsJob(t *testing.T) {
	fx := newFixture(t, 3)
	fx.scripts.err = errors.New("model overloaded")
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFailed, job.Status)
	assert.Equal(t, constant.ProgressStarted, job.Progress)
	assert.Contains(t, job.Error, "script_generation")
	assert.Contains(t, job.Error, "model overloaded")
}

func TestProcessPartialDegradationStillCompletes(t *testing.T) {
	fx := newFixture(t, 4)
	fx.images.failScenes["scene 2"] = true
	fx.voices.failScenes["narration 3"] = true
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	// Scenes 2 and 3 are degraded; 1 and 4 survive, in order.
	require.Len(t, fx.composer.concatenated, 2)
	assert.Contains(t, fx.composer.concatenated[0], "segment_001")
	assert.Contains(t, fx.composer.concatenated[1], "segment_004")
}

func TestProcessAllScenesDegradedFailsJob(t *testing.T) {
	fx := newFixture(t, 3)
	for i := 1; i <= 3; i++ {
		fx.images.failScenes[fmt.Sprintf("scene %d", i)] = true
	}
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "no playable segments")
	// Voice stage completed, so progress rests at its checkpoint.
	assert.Equal(t, constant.CheckpointFor(constant.StageVoice), job.Progress)
}

func TestProcessSceneOrderSurvivesConcurrency(t *testing.T) {
	fx := newFixture(t, 5)
	// Make earlier scenes finish last.
	fx.images.delays["scene 1"] = 40 * time.Millisecond
	fx.images.delays["scene 2"] = 30 * time.Millisecond
	fx.images.delays["scene 3"] = 20 * time.Millisecond
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	require.Len(t, fx.composer.concatenated, 5)
	for i, path := range fx.composer.concatenated {
		assert.Contains(t, path, fmt.Sprintf("segment_%03d", i+1))
	}
}

func TestProcessSegmentRenderFailureDegradesScene(t *testing.T) {
	fx := newFixture(t, 2)
	fx.composer.segmentErr = errors.New("ffmpeg exploded")
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "no playable segments")
}

func TestProcessConcatenationFailureFailsJob(t *testing.T) {
	fx := newFixture(t, 2)
	fx.composer.concatErr = errors.New("demuxer error")
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFailed, job.Status)
	assert.Equal(t, constant.CheckpointFor(constant.StageComposition), job.Progress)
	assert.Contains(t, job.Error, "demuxer error")
}

func TestProcessUploadFailureDoesNotFailJob(t *testing.T) {
	fx := newFixture(t, 2)
	fx.uploader.err = errors.New("bucket gone")
	msg := fx.submit(t)

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestProcessSkipsJobThatAlreadyStarted(t *testing.T) {
	fx := newFixture(t, 2)
	msg := fx.submit(t)
	require.NoError(t, fx.store.Update(context.Background(), msg.JobId.String(), func(j *entities.Job) {
		j.Status = constant.JobStatusProcessing
		j.Progress = 40
	}))

	require.NoError(t, fx.executor.Process(testCtx(), msg))

	job, err := fx.store.Get(context.Background(), msg.JobId.String())
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusProcessing, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Empty(t, fx.composer.concatenated)
}

func TestProcessDropsExpiredJob(t *testing.T) {
	fx := newFixture(t, 2)
	msg := dto.JobMessage{JobId: uuid.New(), Story: "Noah's Ark", Duration: 15, Resolution: "HD"}

	require.NoError(t, fx.executor.Process(testCtx(), msg))
	assert.Empty(t, fx.composer.concatenated)
}
