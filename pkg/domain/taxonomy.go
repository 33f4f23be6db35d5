package domain

// Facet names one of the three disjoint tag families of the taxonomy.
type Facet string

const (
	Discipline Facet = "Discipline"
	Era        Facet = "Era"
	Region     Facet = "Region"
)

var facetOrder = []Facet{Discipline, Era, Region}

var taxonomy = map[Facet][]string{
	Discipline: {
		"History", "Philosophy", "Science", "Mathematics", "Literature", "Poetry",
		"Religion", "Theology", "Art", "Architecture", "Music", "Politics",
		"Economics", "Law", "Medicine", "Technology", "Archaeology", "Linguistics",
		"Psychology",
	},
	Era: {
		"Ancient", "Classical", "Medieval", "Renaissance", "Early Modern",
		"Enlightenment", "19th Century", "20th Century", "Contemporary",
	},
	Region: {
		"Britain", "Ireland", "France", "Germany", "Italy", "Greece", "Rome",
		"Spain", "Netherlands", "Scandinavia", "Eastern Europe", "Russia",
		"Middle East", "Persia", "India", "China", "Japan", "Africa", "Americas",
	},
}

var tagFacets = func() map[string]Facet {
	m := make(map[string]Facet)
	for facet, tags := range taxonomy {
		for _, tag := range tags {
			m[tag] = facet
		}
	}
	return m
}()

// Facets returns the facets in prompt order.
func Facets() []Facet {
	return append([]Facet(nil), facetOrder...)
}

// Tags returns a copy of the tags belonging to facet.
func Tags(facet Facet) []string {
	return append([]string(nil), taxonomy[facet]...)
}

// AllTags returns every taxonomy tag, facet by facet.
func AllTags() []string {
	var all []string
	for _, f := range facetOrder {
		all = append(all, taxonomy[f]...)
	}
	return all
}

// IsValidTag reports whether tag is a taxonomy entry. Matching is exact and
// case-sensitive.
func IsValidTag(tag string) bool {
	_, ok := tagFacets[tag]
	return ok
}

// FacetOf returns the facet a tag belongs to.
func FacetOf(tag string) (Facet, bool) {
	f, ok := tagFacets[tag]
	return f, ok
}
