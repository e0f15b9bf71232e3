package imapstore

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mail-triage/internal/model"
)

func TestEnvelopeFromBuffer(t *testing.T) {
	date := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)
	buf := &imapclient.FetchMessageBuffer{
		UID: imap.UID(42),
		Envelope: &imap.Envelope{
			Date:      date,
			Subject:   "Hello",
			MessageID: "id-1@example.com",
			From: []imap.Address{
				{Name: "Alice", Mailbox: "alice", Host: "example.com"},
			},
		},
	}

	env := envelopeFromBuffer(buf)

	if env.UID != 42 {
		t.Errorf("UID = %d, want 42", env.UID)
	}
	if env.Subject != "Hello" || env.MessageID != "id-1@example.com" {
		t.Errorf("envelope = %+v", env)
	}
	if env.From != "Alice <alice@example.com>" {
		t.Errorf("From = %q, want display form", env.From)
	}
	if env.FromAddr != "alice@example.com" {
		t.Errorf("FromAddr = %q", env.FromAddr)
	}
	if !env.Date.Equal(date) {
		t.Errorf("Date = %v, want %v", env.Date, date)
	}
}

func TestEnvelopeFromBufferBareAddress(t *testing.T) {
	buf := &imapclient.FetchMessageBuffer{
		UID: imap.UID(7),
		Envelope: &imap.Envelope{
			From: []imap.Address{{Mailbox: "bob", Host: "example.com"}},
		},
	}

	env := envelopeFromBuffer(buf)
	if env.From != "bob@example.com" {
		t.Errorf("From = %q, want bare address", env.From)
	}
}

func TestEnvelopeFromBufferMissingEnvelope(t *testing.T) {
	env := envelopeFromBuffer(&imapclient.FetchMessageBuffer{UID: imap.UID(3)})
	if env.UID != 3 || env.From != "" || env.Subject != "" {
		t.Errorf("envelope = %+v, want only the UID set", env)
	}
}

func TestParseMIMEBodyMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: alice@example.com",
		"To: me@example.com",
		"Subject: Test",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html body</p>",
		"--BOUNDARY--",
		"",
	}, "\r\n")

	text, html := parseMIMEBody([]byte(raw))

	if strings.TrimSpace(text) != "plain body" {
		t.Errorf("text = %q, want plain body", text)
	}
	if strings.TrimSpace(html) != "<p>html body</p>" {
		t.Errorf("html = %q, want the html part", html)
	}
}

func TestParseMIMEBodySinglePart(t *testing.T) {
	raw := strings.Join([]string{
		"From: alice@example.com",
		"Subject: Test",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"just text",
	}, "\r\n")

	text, html := parseMIMEBody([]byte(raw))

	if strings.TrimSpace(text) != "just text" {
		t.Errorf("text = %q, want just text", text)
	}
	if html != "" {
		t.Errorf("html = %q, want empty", html)
	}
}

func TestParseMIMEBodyUnparseable(t *testing.T) {
	raw := "not a mime message at all"

	text, html := parseMIMEBody([]byte(raw))
	if text != raw {
		t.Errorf("text = %q, want the raw input back", text)
	}
	if html != "" {
		t.Errorf("html = %q, want empty", html)
	}
}

func TestParseUID(t *testing.T) {
	uid, err := parseUID("42")
	if err != nil {
		t.Fatalf("parseUID(42): %v", err)
	}
	if uid != imap.UID(42) {
		t.Errorf("uid = %d, want 42", uid)
	}

	for _, bad := range []string{"", "abc", "-1", "4294967296"} {
		if _, err := parseUID(bad); err == nil {
			t.Errorf("parseUID(%q) accepted", bad)
		}
	}
}

func TestNewGatewayFallbacks(t *testing.T) {
	g := New(model.IMAPConfig{
		Host:     "mail.example.com",
		Port:     993,
		Username: "robot@example.com",
		Mailbox:  "INBOX",
		SMTPPort: 587,
	}, "imap-pass", "smtp-pass")

	if g.smtp.Host != "mail.example.com" {
		t.Errorf("smtp host = %q, want fallback to IMAP host", g.smtp.Host)
	}
	if g.smtp.From != "robot@example.com" {
		t.Errorf("smtp from = %q, want fallback to username", g.smtp.From)
	}
	if g.Name() != "imap" {
		t.Errorf("Name = %q, want imap", g.Name())
	}
}
