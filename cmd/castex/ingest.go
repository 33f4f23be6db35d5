package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"podcast-search/pkg/pipeline"
	"podcast-search/pkg/podcasts"
)

var (
	ingestPodcasts []string
	ingestLimit    int
	ingestWorkers  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch feeds and store new episodes",
	Long: "Fetches every selected podcast's feed, parses and enriches new items, " +
		"classifies them and commits them to the store oldest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		lock := flock.New(cfg.LockPath())
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return errors.New("another ingestion is already running on this data directory")
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				zap.L().Warn("release ingest lock", zap.Error(err))
			}
		}()

		selected, err := podcasts.Default(fetchers(cfg.Ingest)).Select(ingestPodcasts...)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore(st)

		p, cleanup, err := newPipeline(st, ingestWorkers, ingestLimit)
		if err != nil {
			return err
		}
		defer cleanup()

		report, runErr := p.Run(ctx, selected)
		if report != nil {
			fmt.Fprintln(cmd.OutOrStdout(), renderIngestReport(report))
		}
		if runErr != nil {
			if report != nil && report.Cancelled {
				return fmt.Errorf("ingestion interrupted: %w", runErr)
			}
			return fmt.Errorf("ingestion failed: %w", runErr)
		}
		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d podcast(s) could not be fetched", len(failed))
		}
		return nil
	},
}

func renderIngestReport(r *pipeline.Report) string {
	headers := []string{"Podcast", "Feed", "New", "Inserted", "Skipped", "Enriched", "Unclassified", "Error"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(r.Podcasts))
	for _, p := range r.Podcasts {
		errText := ""
		if p.Err != nil {
			errText = p.Err.Error()
		}
		rows = append(rows, []string{
			p.PodcastID,
			strconv.Itoa(p.FeedItems),
			strconv.Itoa(p.Candidates),
			strconv.Itoa(p.Inserted),
			strconv.Itoa(p.Skipped),
			strconv.Itoa(p.Enriched),
			strconv.Itoa(p.Degraded),
			errText,
		})
	}

	return fmt.Sprintf("run %s (%s)\n%s", r.RunID, r.Duration.Round(time.Millisecond), renderTable(headers, rows, aligns))
}

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestPodcasts, "podcast", "p", nil, "podcast ids to ingest (default all)")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "max new episodes per podcast (0 = no limit)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent items (default ingest.workers)")
	rootCmd.AddCommand(ingestCmd)
}
