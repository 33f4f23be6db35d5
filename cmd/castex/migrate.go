package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podcast-search/pkg/replication"
	"podcast-search/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "One-off maintenance of the episode store",
}

var braggoscopeCmd = &cobra.Command{
	Use:   "braggoscope",
	Short: "Rewrite braggoscope links to the date-based form",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore(st)

		n, err := st.UpdateBraggoscopeURLs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d episodes\n", paint(successStyle, "updated"), n)
		return nil
	},
}

var (
	copyFrom    string
	copyFromDSN string
	copyTo      string
	copyToDSN   string
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy every episode from one store backend into another",
	Long: "Copies episodes between backends, e.g. a legacy episodes.json into SQLite. " +
		"Episodes the target already holds are left untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		from := cfg.Store
		from.Driver, from.DSN = copyFrom, copyFromDSN
		to := cfg.Store
		to.Driver, to.DSN = copyTo, copyToDSN

		source, err := store.Open(ctx, from, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open source %s: %w", copyFrom, err)
		}
		defer closeStore(source)

		target, err := store.Open(ctx, to, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open target %s: %w", copyTo, err)
		}
		defer closeStore(target)

		r, err := replication.NewReplicator(replication.Config{Source: source, Target: target})
		if err != nil {
			return err
		}
		res, err := r.Copy(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d episodes: %d inserted, %d already present\n",
			paint(successStyle, "copied"), res.Processed, res.Inserted, res.Skipped)
		return nil
	},
}

func init() {
	copyCmd.Flags().StringVar(&copyFrom, "from", "json", "source driver")
	copyCmd.Flags().StringVar(&copyFromDSN, "from-dsn", "", "source DSN or path (default per driver)")
	copyCmd.Flags().StringVar(&copyTo, "to", "sqlite", "target driver")
	copyCmd.Flags().StringVar(&copyToDSN, "to-dsn", "", "target DSN or path (default per driver)")

	migrateCmd.AddCommand(braggoscopeCmd, copyCmd)
	rootCmd.AddCommand(migrateCmd)
}
