package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Soft cardinality band for a classification. Results outside it are kept.
const (
	MinTags = 3
	MaxTags = 7
)

// Completer sends one prompt to a language model and returns its raw text
// reply. Implementations must request deterministic (temperature zero) output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DegradedError reports that an episode could not be classified: the model
// was unreachable or its reply held no tag array. It is not fatal; the
// episode is stored without categories and picked up by a later reclassify pass.
type DegradedError struct {
	Reason string
	Err    error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("classification degraded (%s): %v", e.Reason, e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// Classifier assigns taxonomy tags to episodes with one model call each.
type Classifier struct {
	completer Completer
}

// New creates a classifier backed by completer.
func New(completer Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Classify returns the validated taxonomy tags for an episode. The returned
// tags are always taxonomy members; on failure the tag set is empty and the
// error is a *DegradedError.
func (c *Classifier) Classify(ctx context.Context, title, description string, contributors []string) ([]string, error) {
	prompt := BuildPrompt(title, description, contributors)

	reply, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return []string{}, &DegradedError{Reason: "transport", Err: err}
	}

	raw, err := ExtractTags(reply)
	if err != nil {
		return []string{}, &DegradedError{Reason: "unparsable reply", Err: err}
	}

	tags := ValidateTags(raw)
	if len(tags) < MinTags || len(tags) > MaxTags {
		zap.L().Debug("classifier: tag count outside soft band",
			zap.String("title", title),
			zap.Int("returned", len(raw)),
			zap.Int("valid", len(tags)),
		)
	}
	return tags, nil
}
