package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/httpclient"
	"podcast-search/pkg/podcasts/inourtime"
)

var fetchEpisodeCmd = &cobra.Command{
	Use:   "fetch-episode <url>",
	Short: "Parse one programme page and print the extracted fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := httpclient.New(httpclient.Options{
			Type:        httpclient.BotClient,
			UserAgent:   cfg.Ingest.UserAgent,
			MaxAttempts: 2,
		})

		page, err := client.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fields, err := inourtime.NewEnricher(client).ParsePage(page)
		if err != nil {
			return err
		}

		printFields(cmd.OutOrStdout(), fields)
		return nil
	},
}

func printFields(w io.Writer, f domain.PartialFields) {
	fmt.Fprintln(w, paint(titleStyle, "Contributors"))
	for _, c := range f.Contributors {
		fmt.Fprintln(w, "  "+c)
	}
	fmt.Fprintln(w, paint(titleStyle, "Reading list"))
	for _, r := range f.ReadingList {
		fmt.Fprintln(w, "  "+r)
	}
	fmt.Fprintln(w, paint(titleStyle, "Description"))
	if f.Description == "" {
		fmt.Fprintln(w, paint(dimStyle, "  (none)"))
		return
	}
	fmt.Fprintln(w, "  "+strings.TrimSpace(f.Description))
}

func init() {
	rootCmd.AddCommand(fetchEpisodeCmd)
}
