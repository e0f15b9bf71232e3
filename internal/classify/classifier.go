// Package classify turns a fetched message into a triage decision:
// which category it belongs to and, for messages that warrant one, a
// drafted reply.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mail-triage/internal/model"
)

// Error indicates that classification could not produce a usable
// verdict. Callers treat it as "unknown", not as a reason to stop
// processing the message.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classify: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("classify: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsClassifyError reports whether err (or any error in its chain) is a
// classification Error.
func IsClassifyError(err error) bool {
	var cErr *Error
	return errors.As(err, &cErr)
}

// Result is a complete triage verdict for one message.
type Result struct {
	// Category decides what happens to the message next.
	Category model.Category

	// Topic is a reporting label. It never affects what happens
	// to the message.
	Topic model.Topic

	// Draft is the reply text. Set only when Category is reply_needed.
	Draft string
}

// Classifier produces a verdict for one message's content.
type Classifier interface {
	Classify(ctx context.Context, content *model.Content) (*Result, error)
}
