package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reclassifyAll     bool
	reclassifyWorkers int
)

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Classify stored episodes again",
	Long:  "Runs the classifier over unclassified episodes, or every episode with --all.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore(st)

		p, cleanup, err := newPipeline(st, reclassifyWorkers, 0)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := p.Reclassify(ctx, reclassifyAll)
		if report != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d candidates, %d updated, %d still unclassified\n",
				paint(successStyle, "reclassified:"), report.Candidates, report.Updated, report.Degraded)
		}
		return err
	},
}

func init() {
	reclassifyCmd.Flags().BoolVar(&reclassifyAll, "all", false, "reclassify every episode, not only unclassified ones")
	reclassifyCmd.Flags().IntVar(&reclassifyWorkers, "workers", 0, "concurrent classifications (default ingest.workers)")
	rootCmd.AddCommand(reclassifyCmd)
}
