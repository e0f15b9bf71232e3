package gmailstore

import (
	"encoding/base64"
	"strings"
	"testing"

	gmail "google.golang.org/api/gmail/v1"
)

func TestHeaderValue(t *testing.T) {
	payload := &gmail.MessagePart{
		Headers: []*gmail.MessagePartHeader{
			{Name: "From", Value: "Alice <alice@example.com>"},
			{Name: "subject", Value: "Hello"},
		},
	}

	if got := headerValue(payload, "from"); got != "Alice <alice@example.com>" {
		t.Errorf("headerValue(from) = %q", got)
	}
	if got := headerValue(payload, "Subject"); got != "Hello" {
		t.Errorf("headerValue(Subject) = %q", got)
	}
	if got := headerValue(payload, "Message-ID"); got != "" {
		t.Errorf("headerValue(Message-ID) = %q, want empty", got)
	}
	if got := headerValue(nil, "From"); got != "" {
		t.Errorf("headerValue(nil) = %q, want empty", got)
	}
}

func TestExtractBody(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/plain",
				Body: &gmail.MessagePartBody{
					Data: base64.URLEncoding.EncodeToString([]byte("plain body")),
				},
			},
			{
				MimeType: "text/html",
				Body: &gmail.MessagePartBody{
					Data: base64.RawURLEncoding.EncodeToString([]byte("<p>html body</p>")),
				},
			},
		},
	}

	text, html := extractBody(payload)
	if text != "plain body" {
		t.Errorf("text = %q, want plain body", text)
	}
	if html != "<p>html body</p>" {
		t.Errorf("html = %q, want the html part", html)
	}
}

func TestExtractBodyKeepsFirstPart(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/plain",
				Body: &gmail.MessagePartBody{
					Data: base64.RawURLEncoding.EncodeToString([]byte("first")),
				},
			},
			{
				MimeType: "text/plain",
				Body: &gmail.MessagePartBody{
					Data: base64.RawURLEncoding.EncodeToString([]byte("second")),
				},
			},
		},
	}

	text, _ := extractBody(payload)
	if text != "first" {
		t.Errorf("text = %q, want the first part", text)
	}
}

func TestExtractBodyNested(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body: &gmail.MessagePartBody{
							Data: base64.RawURLEncoding.EncodeToString([]byte("nested body")),
						},
					},
				},
			},
		},
	}

	text, _ := extractBody(payload)
	if text != "nested body" {
		t.Errorf("text = %q, want nested body", text)
	}
}

func TestSenderAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice Smith <alice@example.com>", "alice@example.com"},
		{"bob@example.com", "bob@example.com"},
		{"<carol@example.com>", "carol@example.com"},
		{"  not an address  ", "not an address"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := senderAddress(tt.in); got != tt.want {
			t.Errorf("senderAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildReplyRaw(t *testing.T) {
	raw := buildReplyRaw(
		"alice@example.com",
		"Re: Question",
		"<orig123@mail.gmail.com>",
		"Sure thing.",
	)

	wantLines := []string{
		"To: alice@example.com\r\n",
		"Subject: Re: Question\r\n",
		"In-Reply-To: <orig123@mail.gmail.com>\r\n",
		"References: <orig123@mail.gmail.com>\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n",
	}
	for _, line := range wantLines {
		if !strings.Contains(raw, line) {
			t.Errorf("message missing %q\nmessage:\n%s", line, raw)
		}
	}
	if !strings.HasSuffix(raw, "\r\n\r\nSure thing.") {
		t.Errorf("body not separated from headers:\n%s", raw)
	}
}

func TestBuildReplyRawWithoutMessageID(t *testing.T) {
	raw := buildReplyRaw("alice@example.com", "Re: Question", "", "Hi.")
	if strings.Contains(raw, "In-Reply-To") || strings.Contains(raw, "References") {
		t.Errorf("threading headers present without a Message-ID:\n%s", raw)
	}
}
