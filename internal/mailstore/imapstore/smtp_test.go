package imapstore

import (
	"strings"
	"testing"
)

func TestComposeReply(t *testing.T) {
	cfg := SMTPConfig{From: "me@example.com"}
	original := &ParsedMessage{
		Envelope: Envelope{
			FromAddr:  "alice@example.com",
			Subject:   "Question about the report",
			MessageID: "abc123@mail.example.com",
		},
	}

	to, msg, err := composeReply(cfg, original, "Sure, sending it over.")
	if err != nil {
		t.Fatalf("composeReply: %v", err)
	}

	if to != "alice@example.com" {
		t.Errorf("to = %q, want alice@example.com", to)
	}

	wantLines := []string{
		"From: me@example.com\r\n",
		"To: alice@example.com\r\n",
		"Subject: Re: Question about the report\r\n",
		"In-Reply-To: <abc123@mail.example.com>\r\n",
		"References: <abc123@mail.example.com>\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
	}
	for _, line := range wantLines {
		if !strings.Contains(msg, line) {
			t.Errorf("message missing %q\nmessage:\n%s", line, msg)
		}
	}

	if !strings.HasSuffix(msg, "\r\n\r\nSure, sending it over.") {
		t.Errorf("message body not separated from headers:\n%s", msg)
	}
}

func TestComposeReplyWithoutMessageID(t *testing.T) {
	cfg := SMTPConfig{From: "me@example.com"}
	original := &ParsedMessage{
		Envelope: Envelope{FromAddr: "bob@example.com", Subject: "Hi"},
	}

	_, msg, err := composeReply(cfg, original, "Hello.")
	if err != nil {
		t.Fatalf("composeReply: %v", err)
	}

	if strings.Contains(msg, "In-Reply-To") || strings.Contains(msg, "References") {
		t.Errorf("threading headers present without a Message-ID:\n%s", msg)
	}
}

func TestComposeReplyKeepsExistingPrefix(t *testing.T) {
	cfg := SMTPConfig{From: "me@example.com"}
	original := &ParsedMessage{
		Envelope: Envelope{FromAddr: "bob@example.com", Subject: "Re: Hi"},
	}

	_, msg, err := composeReply(cfg, original, "Hello again.")
	if err != nil {
		t.Fatalf("composeReply: %v", err)
	}
	if !strings.Contains(msg, "Subject: Re: Hi\r\n") {
		t.Errorf("subject double-prefixed:\n%s", msg)
	}
}

func TestComposeReplyWithoutSender(t *testing.T) {
	cfg := SMTPConfig{From: "me@example.com"}
	original := &ParsedMessage{Envelope: Envelope{Subject: "Orphan"}}

	if _, _, err := composeReply(cfg, original, "body"); err == nil {
		t.Fatal("composeReply accepted a message with no sender address")
	}
}
