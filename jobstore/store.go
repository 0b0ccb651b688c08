package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"story-video-worker/constant"
	"story-video-worker/entities"
)

var ErrNotFound = errors.New("job not found")

// Store is the durable, expiring record of job state. Only the API surface
// creates records; only the pipeline executor mutates them afterwards, and a
// job id maps to at most one execution attempt, so last-writer-wins suffices.
type Store interface {
	Create(ctx context.Context, job *entities.Job) error
	Get(ctx context.Context, id string) (*entities.Job, error)
	Update(ctx context.Context, id string, mutate func(job *entities.Job)) error
}

type store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client) Store {
	return &store{
		rdb: rdb,
		ttl: constant.JobTTL,
	}
}

func key(id string) string {
	return "job:" + id
}

func (s *store) Create(ctx context.Context, job *entities.Job) error {
	now := time.Now().UTC()
	job.Status = constant.JobStatusQueued
	job.Progress = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	return s.write(ctx, job)
}

func (s *store) Get(ctx context.Context, id string) (*entities.Job, error) {
	data, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var job entities.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// Update is a read-modify-write against the live record. An unknown or
// expired id fails with ErrNotFound rather than resurrecting the key.
func (s *store) Update(ctx context.Context, id string, mutate func(job *entities.Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	mutate(job)
	job.UpdatedAt = time.Now().UTC()

	return s.write(ctx, job)
}

// write refreshes the retention window together with the payload; the TTL is
// applied atomically with every SET.
func (s *store) write(ctx context.Context, job *entities.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return s.rdb.Set(ctx, key(job.ID), data, s.ttl).Err()
}
