package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"podcast-search/pkg/classifier"
	"podcast-search/pkg/domain"
)

// ReclassifyReport summarizes a reclassification pass.
type ReclassifyReport struct {
	RunID      string
	Candidates int
	Updated    int
	Degraded   int
	Cancelled  bool
}

// Reclassify classifies stored episodes again and rewrites their categories.
// By default only unclassified episodes are considered; all widens the pass
// to every episode. A degraded classification leaves the record untouched.
func (p *Pipeline) Reclassify(ctx context.Context, all bool) (*ReclassifyReport, error) {
	report := &ReclassifyReport{RunID: uuid.NewString()}
	logger := zap.L().With(zap.String("run_id", report.RunID))

	var (
		episodes []domain.Episode
		err      error
	)
	if all {
		episodes, err = p.store.All(ctx)
	} else {
		episodes, err = p.store.Unclassified(ctx)
	}
	if err != nil {
		return report, eris.Wrap(err, "pipeline: load episodes to reclassify")
	}
	report.Candidates = len(episodes)
	logger.Info("reclassification started", zap.Int("candidates", len(episodes)), zap.Bool("all", all))

	type result struct {
		key        domain.EpisodeKey
		categories []string
		ok         bool
	}

	work := context.WithoutCancel(ctx)
	slots := make(chan chan result, len(episodes))
	sem := semaphore.NewWeighted(int64(p.workerCount))

	var g errgroup.Group
	go func() {
		defer close(slots)
		for _, ep := range episodes {
			if !admit(ctx, sem) {
				return
			}
			slot := make(chan result, 1)
			slots <- slot
			g.Go(func() error {
				defer sem.Release(1)
				tags, err := p.classifier.Classify(work, ep.Title, ep.Description, ep.Contributors)
				if err != nil {
					logger.Warn("reclassification degraded",
						zap.String("podcast", ep.PodcastID),
						zap.String("episode_id", ep.ID),
						zap.Error(err),
					)
					slot <- result{key: ep.Key()}
					return nil
				}
				slot <- result{key: ep.Key(), categories: classifier.ValidateTags(tags), ok: true}
				return nil
			})
		}
	}()

	var commitErr error
	for slot := range slots {
		res := <-slot
		if commitErr != nil {
			continue
		}
		if !res.ok {
			report.Degraded++
			continue
		}
		if err := p.store.Reclassify(work, res.key, res.categories); err != nil {
			commitErr = eris.Wrapf(err, "pipeline: reclassify %s", res.key)
			continue
		}
		report.Updated++
	}
	_ = g.Wait()

	logger.Info("reclassification finished",
		zap.Int("updated", report.Updated),
		zap.Int("degraded", report.Degraded),
	)

	if commitErr != nil {
		return report, commitErr
	}
	if err := ctx.Err(); err != nil {
		report.Cancelled = true
		return report, err
	}
	return report, nil
}
