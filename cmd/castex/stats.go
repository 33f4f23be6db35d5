package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"podcast-search/pkg/domain"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the episode store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore(st)

		episodes, err := st.All(ctx)
		if err != nil {
			return err
		}

		s := summarize(episodes)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d episodes, %d unclassified\n\n", s.episodes, s.unclassified)
		fmt.Fprintln(out, renderCounts("Podcast", s.podcasts))
		fmt.Fprintln(out, renderCounts("Category", s.categories))
		return nil
	},
}

type storeStats struct {
	episodes     int
	unclassified int
	podcasts     map[string]int
	categories   map[string]int
}

func summarize(episodes []domain.Episode) storeStats {
	s := storeStats{
		episodes:   len(episodes),
		podcasts:   make(map[string]int),
		categories: make(map[string]int),
	}
	for i := range episodes {
		ep := &episodes[i]
		s.podcasts[ep.PodcastID]++
		if !ep.Classified() {
			s.unclassified++
		}
		for _, c := range ep.Categories {
			s.categories[c]++
		}
	}
	return s
}

// renderCounts prints counts largest first, names breaking ties. Categories
// are annotated with their facet.
func renderCounts(label string, counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		facet := ""
		if f, ok := domain.FacetOf(name); ok {
			facet = string(f)
		}
		rows = append(rows, []string{name, facet, strconv.Itoa(counts[name])})
	}
	return renderTable([]string{label, "Facet", "Episodes"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
