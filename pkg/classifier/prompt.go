package classifier

import (
	"strings"

	"podcast-search/pkg/domain"
)

const (
	noDescription  = "(No description available)"
	noContributors = "(No contributors listed)"
)

// BuildPrompt renders the classification prompt for one episode.
func BuildPrompt(title, description string, contributors []string) string {
	if strings.TrimSpace(description) == "" {
		description = noDescription
	}
	people := noContributors
	if len(contributors) > 0 {
		people = strings.Join(contributors, ", ")
	}

	var b strings.Builder
	b.WriteString("Classify this podcast episode into categories.\n\n")
	b.WriteString("Title: " + title + "\n")
	b.WriteString("Description: " + description + "\n")
	b.WriteString("Contributors: " + people + "\n\n")
	b.WriteString("Assign 3-7 tags from these options:\n\n")
	for _, facet := range domain.Facets() {
		b.WriteString(string(facet) + ": " + strings.Join(domain.Tags(facet), ", ") + "\n\n")
	}
	b.WriteString(`Return only a JSON array of tag strings, e.g. ["History", "Medieval", "France"]`)
	return b.String()
}
