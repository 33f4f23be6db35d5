package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/search"
)

var (
	searchJSON  bool
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search the episode archive",
	Long: "Ranks episodes by how many query terms they match, then by where they match " +
		"(title, categories, contributors, description, reading list).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore(st)

		engine := search.NewEngine(st, search.NewParser(cfg.Search.RichGrammar))
		if _, err := engine.Rebuild(ctx); err != nil {
			return fmt.Errorf("build index: %w", err)
		}

		query := strings.Join(args, " ")
		result := engine.Search(query)
		if searchLimit > 0 && len(result.Episodes) > searchLimit {
			result.Episodes = result.Episodes[:searchLimit]
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Episodes)
		}
		printResults(out, query, result)
		return nil
	},
}

func printResults(w io.Writer, query string, result search.Result) {
	if len(result.Episodes) == 0 {
		fmt.Fprintln(w, paint(errorStyle, "no episodes match ")+fmt.Sprintf("%q", query))
		return
	}

	fmt.Fprintln(w, paint(dimStyle, fmt.Sprintf("showing %d of %d episodes", len(result.Episodes), result.Total)))
	for i := range result.Episodes {
		fmt.Fprintln(w)
		fmt.Fprint(w, formatEpisode(&result.Episodes[i]))
	}
}

// formatEpisode renders one result as a short multi-line block.
func formatEpisode(ep *domain.Episode) string {
	var b strings.Builder

	b.WriteString(paint(titleStyle, ep.Title))
	b.WriteString("  ")
	b.WriteString(paint(dateStyle, ep.BroadcastDate.Format("2006-01-02")))
	b.WriteString(paint(dimStyle, "  "+ep.PodcastID))
	b.WriteString("\n")

	if len(ep.Categories) > 0 {
		b.WriteString("  ")
		b.WriteString(paint(tagStyle, strings.Join(ep.Categories, " · ")))
		b.WriteString("\n")
	}
	if len(ep.Contributors) > 0 {
		b.WriteString("  with ")
		b.WriteString(strings.Join(ep.Contributors, "; "))
		b.WriteString("\n")
	}

	link := ep.BraggoscopeURL
	if link == "" {
		link = ep.SourceURL
	}
	if link != "" {
		b.WriteString("  ")
		b.WriteString(paint(linkStyle, link))
		b.WriteString("\n")
	}

	return b.String()
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "results to show (0 = all returned)")
	rootCmd.AddCommand(searchCmd)
}
