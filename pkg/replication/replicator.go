package replication

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/store"
)

const (
	batchSize  = 100
	numWorkers = 5
)

// Config wires the replication dependencies.
type Config struct {
	Source store.Store
	Target store.Store
}

// Replicator copies every episode from one store into another, e.g. a legacy
// episodes.json into SQLite or SQLite into Postgres.
//
// Copying goes through the target's Upsert, so it is idempotent and never
// overwrites an episode the target already holds.
type Replicator struct {
	source store.Store
	target store.Store
}

// Result counts what a copy did.
type Result struct {
	Processed int
	Inserted  int
	Skipped   int
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, eris.New("replication: source store is required")
	}
	if cfg.Target == nil {
		return nil, eris.New("replication: target store is required")
	}
	return &Replicator{source: cfg.Source, target: cfg.Target}, nil
}

// Copy reads all episodes from the source and upserts them into the target
// in parallel batches.
func (r *Replicator) Copy(ctx context.Context) (Result, error) {
	episodes, err := r.source.All(ctx)
	if err != nil {
		return Result{}, eris.Wrap(err, "replication: read source")
	}

	zap.L().Info("replication: loaded source episodes", zap.Int("episodes", len(episodes)))

	res, err := r.processBatches(ctx, episodes)
	if err != nil {
		return res, err
	}

	zap.L().Info("replication complete",
		zap.Int("processed", res.Processed),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// processBatches fans batches out to workers and fails fast on the first error.
func (r *Replicator) processBatches(ctx context.Context, episodes []domain.Episode) (Result, error) {
	type batchJob struct {
		batch []domain.Episode
		start int
		end   int
	}

	type batchResult struct {
		Result
		err error
	}

	numBatches := (len(episodes) + batchSize - 1) / batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start := 0; start < len(episodes); start += batchSize {
		end := min(start+batchSize, len(episodes))
		jobs <- batchJob{batch: episodes[start:end], start: start, end: end}
	}
	close(jobs)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if workCtx.Err() != nil {
					results <- batchResult{err: workCtx.Err()}
					continue
				}
				res, err := r.processBatch(workCtx, job.batch)
				if err != nil {
					err = eris.Wrapf(err, "replication: batch [%d:%d]", job.start, job.end)
				}
				results <- batchResult{Result: res, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total Result
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		total.Processed += res.Processed
		total.Inserted += res.Inserted
		total.Skipped += res.Skipped
		if total.Processed%1000 == 0 || total.Processed == len(episodes) {
			zap.L().Info("replication progress",
				zap.Int("processed", total.Processed),
				zap.Int("total", len(episodes)),
				zap.Int("inserted", total.Inserted),
			)
		}
	}

	return total, firstErr
}

func (r *Replicator) processBatch(ctx context.Context, batch []domain.Episode) (Result, error) {
	var res Result
	for i := range batch {
		outcome, err := r.target.Upsert(ctx, &batch[i])
		if err != nil {
			return res, err
		}
		res.Processed++
		if outcome == store.Inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}
