package classify

import (
	"strings"

	"github.com/nhle/mail-triage/internal/model"
)

// noReplySenders are sender local-part prefixes that mark automated
// mail which must never be answered.
var noReplySenders = []string{
	"noreply",
	"no-reply",
	"no_reply",
	"donotreply",
	"do-not-reply",
	"mailer-daemon",
	"postmaster",
	"bounce",
	"notifications",
}

// autoSubjects are subject markers of automatic responses.
var autoSubjects = []string{
	"automatic reply",
	"auto-reply",
	"autoreply",
	"out of office",
	"delivery status notification",
}

// Preclassify applies cheap local rules before any model call.
// It returns a verdict and true when a rule fires; otherwise false and
// the model stays authoritative.
func Preclassify(content *model.Content) (*Result, bool) {
	sender := strings.ToLower(strings.TrimSpace(content.Sender))
	if addr := extractAddress(sender); addr != "" {
		sender = addr
	}
	local := sender
	if at := strings.Index(sender, "@"); at > 0 {
		local = sender[:at]
	}

	for _, prefix := range noReplySenders {
		if strings.HasPrefix(local, prefix) {
			return &Result{
				Category: model.CategoryNotification,
				Topic:    model.TopicOther,
			}, true
		}
	}

	subject := strings.ToLower(content.Subject)
	for _, marker := range autoSubjects {
		if strings.Contains(subject, marker) {
			return &Result{
				Category: model.CategoryNotification,
				Topic:    model.TopicOther,
			}, true
		}
	}

	return nil, false
}

// extractAddress pulls the bare address out of a "Name <addr>" sender.
func extractAddress(sender string) string {
	open := strings.LastIndex(sender, "<")
	end := strings.LastIndex(sender, ">")
	if open >= 0 && end > open {
		return strings.TrimSpace(sender[open+1 : end])
	}
	return ""
}
