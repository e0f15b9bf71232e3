package classify

import (
	"testing"

	"github.com/nhle/mail-triage/internal/model"
)

func TestPreclassify(t *testing.T) {
	tests := []struct {
		name    string
		sender  string
		subject string
		fires   bool
	}{
		{"noreply address", "noreply@github.com", "PR merged", true},
		{"no-reply in display form", "GitHub Alerts <no-reply@github.com>", "Security alert", true},
		{"do not reply", "Do-Not-Reply@bank.example", "Statement ready", true},
		{"mailer daemon", "MAILER-DAEMON@mx.example.com", "Undelivered mail", true},
		{"postmaster", "postmaster@example.com", "Delivery report", true},
		{"bounce prefix", "bounces+1234@sendgrid.example", "bounced", true},
		{"auto reply subject", "colleague@example.com", "Automatic Reply: Re: standup", true},
		{"out of office subject", "colleague@example.com", "Out of Office until Monday", true},
		{"delivery status subject", "mx@example.com", "Delivery Status Notification (Failure)", true},
		{"human sender", "boss@example.com", "Budget question", false},
		{"human display form", "Alice Smith <alice@example.com>", "Lunch?", false},
		{"empty content", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := Preclassify(&model.Content{
				Sender:  tt.sender,
				Subject: tt.subject,
				Body:    "body",
			})
			if ok != tt.fires {
				t.Fatalf("Preclassify fired = %v, want %v", ok, tt.fires)
			}
			if !tt.fires {
				if result != nil {
					t.Errorf("result = %+v, want nil when no rule fires", result)
				}
				return
			}
			if result.Category != model.CategoryNotification {
				t.Errorf("Category = %q, want notification", result.Category)
			}
			if result.Draft != "" {
				t.Errorf("Draft = %q, want empty", result.Draft)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice smith <alice@example.com>", "alice@example.com"},
		{"<bob@example.com>", "bob@example.com"},
		{"carol@example.com", ""},
		{"broken <carol@example.com", ""},
		{"nested <a> <b@example.com>", "b@example.com"},
	}

	for _, tt := range tests {
		if got := extractAddress(tt.in); got != tt.want {
			t.Errorf("extractAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
