package classifier

import (
	"encoding/json"
	"errors"
	"strings"

	"podcast-search/pkg/domain"
)

// ErrNoTagArray is returned when a reply contains no JSON array of strings.
var ErrNoTagArray = errors.New("no JSON array of strings in reply")

// ExtractTags finds the first JSON array of strings in a model reply. Models
// often wrap the array in prose or code fences, so every bracketed span is
// tried in order.
func ExtractTags(reply string) ([]string, error) {
	reply = strings.TrimSpace(reply)

	var tags []string
	if err := json.Unmarshal([]byte(reply), &tags); err == nil && tags != nil {
		return tags, nil
	}

	for start := strings.IndexByte(reply, '['); start >= 0; {
		if end := matchingBracket(reply, start); end > start {
			var candidate []string
			if err := json.Unmarshal([]byte(reply[start:end+1]), &candidate); err == nil && candidate != nil {
				return candidate, nil
			}
		}
		next := strings.IndexByte(reply[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, ErrNoTagArray
}

// matchingBracket returns the index of the ']' closing the '[' at start,
// skipping brackets inside JSON strings, or -1.
func matchingBracket(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ValidateTags keeps the taxonomy members of tags, in reply order and without
// duplicates. Matching is exact and case-sensitive; anything else is dropped.
func ValidateTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	valid := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !domain.IsValidTag(tag) || seen[tag] {
			continue
		}
		seen[tag] = true
		valid = append(valid, tag)
	}
	return valid
}
