// Package redis provides Redis persistence for jobs. Each job is a JSON string
// key; a sorted set scored by creation time indexes all of them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "concilium:job:"
	indexKey   = "concilium:jobs"
	maxRetries = 100
)

// Persistence implements persistence.JobRepository on top of go-redis.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewPersistence connects to the server described by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger = logger.With("component", "redis_persistence")
	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Persistence{client: client, logger: logger}, nil
}

func (p *Persistence) Create(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return persistence.NewJobError("Create", job.ID, err)
	}

	created, err := p.client.SetNX(ctx, keyPrefix+job.ID, data, 0).Result()
	if err != nil {
		return persistence.NewJobError("Create", job.ID, err)
	}

	if !created {
		return persistence.NewJobError("Create", job.ID, persistence.ErrJobAlreadyExists)
	}

	err = p.client.ZAdd(ctx, indexKey, redis.Z{Score: float64(job.CreatedAt.UnixMilli()), Member: job.ID}).Err()
	if err != nil {
		return persistence.NewJobError("Create", job.ID, err)
	}

	return nil
}

func (p *Persistence) Get(ctx context.Context, id string) (*models.Job, error) {
	data, err := p.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewJobError("Get", id, persistence.ErrJobNotFound)
	}

	if err != nil {
		return nil, persistence.NewJobError("Get", id, err)
	}

	return decode("Get", id, data)
}

// Update is an optimistic transaction: WATCH the key, apply fn, write in
// MULTI/EXEC, and start over if another writer got there first.
func (p *Persistence) Update(ctx context.Context, id string, fn persistence.UpdateFunc) (*models.Job, error) {
	key := keyPrefix + id

	var updated *models.Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return persistence.NewJobError("Update", id, persistence.ErrJobNotFound)
		}

		if err != nil {
			return err
		}

		job, err := decode("Update", id, data)
		if err != nil {
			return err
		}

		err = fn(job)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(job)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)

			return nil
		})
		if err != nil {
			return err
		}

		updated = job

		return nil
	}

	for range maxRetries {
		err := p.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err != nil {
			return nil, err
		}

		return updated, nil
	}

	return nil, persistence.NewJobError("Update", id, fmt.Errorf("gave up after %d conflicting writes", maxRetries))
}

func (p *Persistence) List(ctx context.Context, opts persistence.ListJobsOptions) (*persistence.JobListResult, error) {
	opts, err := persistence.NormalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	ids, err := p.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job index: %w", err)
	}

	jobs := make([]*models.Job, 0, len(ids))
	if len(ids) == 0 {
		return persistence.Page(jobs, opts), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		job, err := decode("List", ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}

		jobs = append(jobs, job)
	}

	return persistence.Page(jobs, opts), nil
}

func (p *Persistence) Delete(ctx context.Context, id string) error {
	removed, err := p.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return persistence.NewJobError("Delete", id, err)
	}

	err = p.client.ZRem(ctx, indexKey, id).Err()
	if err != nil {
		return persistence.NewJobError("Delete", id, err)
	}

	if removed == 0 {
		return persistence.NewJobError("Delete", id, persistence.ErrJobNotFound)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func decode(op, id string, data []byte) (*models.Job, error) {
	var job models.Job

	err := json.Unmarshal(data, &job)
	if err != nil {
		return nil, &persistence.JobError{Op: op, JobID: id, Err: err, Message: "corrupt job record"}
	}

	return &job, nil
}
