package pipeline

import "github.com/nhle/mail-triage/internal/model"

// Path is the branch a record takes after classification.
type Path int

const (
	// PathNoReply skips straight to cleanup.
	PathNoReply Path = iota

	// PathReply sends the drafted reply first, then cleans up.
	PathReply
)

func (p Path) String() string {
	if p == PathReply {
		return "reply"
	}
	return "no_reply"
}

// Route maps a category to the branch that follows it. The mapping is
// total: every known category is matched explicitly and anything else
// falls through to the no-reply arm, so no record can leave the
// pipeline neither replied-to nor cleaned up.
func Route(category model.Category) Path {
	switch category {
	case model.CategoryReplyNeeded:
		return PathReply
	case model.CategorySpam, model.CategoryNotification, model.CategoryUnclassified:
		return PathNoReply
	default:
		return PathNoReply
	}
}
