// Package search is an in-memory inverted index over stored episodes.
package search

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"podcast-search/pkg/domain"
)

// Field identifies an indexed text field of a document.
type Field uint8

const (
	FieldTitle Field = 1 << iota
	FieldCategories
	FieldContributors
	FieldDescription
	FieldReadingList
)

// Weights are frozen: the ranking tests depend on them.
var fieldWeights = map[Field]int{
	FieldTitle:        8,
	FieldCategories:   5,
	FieldContributors: 3,
	FieldDescription:  1,
	FieldReadingList:  1,
}

var allFields = []Field{FieldTitle, FieldCategories, FieldContributors, FieldDescription, FieldReadingList}

// Weight returns the score contributed by a match in any of the given fields.
func Weight(fields Field) int {
	total := 0
	for _, f := range allFields {
		if fields&f != 0 {
			total += fieldWeights[f]
		}
	}
	return total
}

// Document is the indexed projection of an episode. It holds text only; the
// episode itself is resolved through Key.
type Document struct {
	Key          domain.EpisodeKey
	Title        string
	Description  string
	Contributors string
	Categories   string
	ReadingList  string
}

// NewDocument projects an episode into its searchable fields.
func NewDocument(ep *domain.Episode) Document {
	return Document{
		Key:          ep.Key(),
		Title:        ep.Title,
		Description:  ep.Description,
		Contributors: strings.Join(ep.Contributors, " "),
		Categories:   strings.Join(ep.Categories, " "),
		ReadingList:  strings.Join(ep.ReadingList, " "),
	}
}

func (d Document) fields() map[Field]string {
	return map[Field]string{
		FieldTitle:        d.Title,
		FieldCategories:   d.Categories,
		FieldContributors: d.Contributors,
		FieldDescription:  d.Description,
		FieldReadingList:  d.ReadingList,
	}
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or a digit.
//
//	"Anne Smith, Oxford" -> [anne smith oxford]
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Stem reduces a lowercase token to its English stem. Index and query terms
// both go through it, so inflected forms match: "romans" and "roman" are
// the same term.
func Stem(token string) string {
	return english.Stem(token, false)
}

// Terms tokenizes text and stems every token.
func Terms(text string) []string {
	tokens := Tokenize(text)
	for i, t := range tokens {
		tokens[i] = Stem(t)
	}
	return tokens
}
