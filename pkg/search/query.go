package search

import "strings"

// Query is a parsed search request. Terms are stems, OR-ed and ranked; the
// other members filter the candidate set before ranking.
type Query struct {
	Terms []string

	// RequireCategories and ExcludeCategories hold taxonomy tags, compared
	// case-insensitively against episode categories.
	RequireCategories []string
	ExcludeCategories []string
	Sources           []string

	// Rejected counts tokens no rule accepted.
	Rejected int
}

// Rule claims a raw query token. Accept returns false to let the next rule
// try; a token no rule accepts is dropped.
type Rule interface {
	Accept(token string, q *Query) bool
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(token string, q *Query) bool

func (f RuleFunc) Accept(token string, q *Query) bool { return f(token, q) }

// Parser turns a raw query string into a Query by offering every
// whitespace-separated token to its rules in order.
type Parser struct {
	rules []Rule
}

// NewParser returns the baseline parser, or with rich the parser that also
// understands +tag, -tag and source=podcast. Multi-word tags are written
// with underscores: +early_modern.
func NewParser(rich bool) *Parser {
	var rules []Rule
	if rich {
		rules = append(rules, RuleFunc(requireCategory), RuleFunc(excludeCategory), RuleFunc(sourceFilter))
	}
	rules = append(rules, RuleFunc(plainTerm))
	return &Parser{rules: rules}
}

// Parse never fails: malformed tokens are counted in Rejected and otherwise
// ignored.
func (p *Parser) Parse(raw string) Query {
	var q Query
	for _, token := range strings.Fields(raw) {
		accepted := false
		for _, rule := range p.rules {
			if rule.Accept(token, &q) {
				accepted = true
				break
			}
		}
		if !accepted {
			q.Rejected++
		}
	}
	return q
}

// plainTerm accepts tokens made only of ASCII letters and digits. Terms
// are kept stemmed, so "roman romans" is a single term.
func plainTerm(token string, q *Query) bool {
	if !isAlnum(token) {
		return false
	}
	q.Terms = appendUnique(q.Terms, Stem(strings.ToLower(token)))
	return true
}

func requireCategory(token string, q *Query) bool {
	tag, ok := tagOperand(token, "+")
	if ok {
		q.RequireCategories = appendUnique(q.RequireCategories, tag)
	}
	return ok
}

func excludeCategory(token string, q *Query) bool {
	tag, ok := tagOperand(token, "-")
	if ok {
		q.ExcludeCategories = appendUnique(q.ExcludeCategories, tag)
	}
	return ok
}

func sourceFilter(token string, q *Query) bool {
	id, ok := strings.CutPrefix(token, "source=")
	if !ok || id == "" {
		return false
	}
	q.Sources = appendUnique(q.Sources, id)
	return true
}

// tagOperand strips prefix and decodes underscores. The operand must be
// alphanumeric apart from the underscores.
func tagOperand(token, prefix string) (string, bool) {
	operand, ok := strings.CutPrefix(token, prefix)
	if !ok || operand == "" || !isAlnum(strings.ReplaceAll(operand, "_", "")) {
		return "", false
	}
	return strings.ReplaceAll(operand, "_", " "), true
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
