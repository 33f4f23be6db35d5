package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podcast-search/pkg/feed"
	"podcast-search/pkg/podcasts"
)

var feedPodcast string

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Fetch and snapshot a podcast feed without ingesting it",
	Long: "Fetches the merged current and historic feed, writes the snapshot to the data " +
		"directory and lists the items, marking those already stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pod, err := podcasts.Default(fetchers(cfg.Ingest)).Get(feedPodcast)
		if err != nil {
			return fmt.Errorf("podcast %q: %w", feedPodcast, err)
		}

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore(st)

		p, cleanup, err := newPipeline(st, 1, 0)
		if err != nil {
			return err
		}
		defer cleanup()

		items, err := p.Feed(ctx, pod)
		if err != nil {
			return err
		}
		known, err := st.Keys(ctx, pod.ID)
		if err != nil {
			return err
		}

		feed.SortNewestFirst(items)
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			stored := ""
			if known[item.EpisodeID()] {
				stored = "yes"
			}
			rows = append(rows, []string{
				item.Published.Format("2006-01-02"),
				item.EpisodeID(),
				stored,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Date", "Episode", "Stored"}, rows, nil))
		fmt.Fprintf(cmd.OutOrStdout(), "%d items, snapshot at %s\n", len(items), feed.CurrentPath(cfg.FeedDir(), pod.ID))
		return nil
	},
}

func init() {
	feedCmd.Flags().StringVarP(&feedPodcast, "podcast", "p", "in_our_time", "podcast id")
	rootCmd.AddCommand(feedCmd)
}
