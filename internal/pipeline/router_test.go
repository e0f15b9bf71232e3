package pipeline

import (
	"testing"

	"github.com/nhle/mail-triage/internal/model"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		category model.Category
		want     Path
	}{
		{model.CategorySpam, PathNoReply},
		{model.CategoryNotification, PathNoReply},
		{model.CategoryReplyNeeded, PathReply},
		{model.CategoryUnclassified, PathNoReply},
		{model.Category("garbage"), PathNoReply},
		{model.Category(""), PathNoReply},
	}

	for _, tt := range tests {
		if got := Route(tt.category); got != tt.want {
			t.Errorf("Route(%q) = %v, want %v", tt.category, got, tt.want)
		}
	}
}

func TestPathString(t *testing.T) {
	if got := PathReply.String(); got != "reply" {
		t.Errorf("PathReply.String() = %q", got)
	}
	if got := PathNoReply.String(); got != "no_reply" {
		t.Errorf("PathNoReply.String() = %q", got)
	}
}
